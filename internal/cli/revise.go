package cli

import (
	"context"
	"fmt"

	"artyats/internal/common"
	"artyats/internal/types"

	"github.com/spf13/cobra"
)

var reviseCmd = &cobra.Command{
	Use:   "revise [resume-file] [job-description-file]",
	Short: "Rewrite the professional summary for a job description",
	Args:  cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := common.ValidateCommunicationStyle(reviseStyle); err != nil {
			return err
		}
		return resolveFormat(cmd, &reviseConfig)
	},
	RunE: runRevise,
}

var (
	reviseConfig common.CommandConfig
	reviseName   string
	reviseStyle  string
)

func init() {
	addOutputFlags(reviseCmd, &reviseConfig)
	reviseCmd.Flags().StringVar(&reviseName, "name", "", "Candidate name")
	reviseCmd.Flags().StringVar(&reviseStyle, "style", string(types.StyleFormal), "Communication style: casual or formal")
	_ = reviseCmd.MarkFlagRequired("name")
}

func runRevise(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	createInput := func(texts []string) (types.RevisionRequest, error) {
		if len(texts) != 2 {
			return types.RevisionRequest{}, fmt.Errorf("expected 2 file paths, got %d", len(texts))
		}
		style, err := common.ValidateCommunicationStyle(reviseStyle)
		if err != nil {
			return types.RevisionRequest{}, err
		}
		return types.RevisionRequest{
			CandidateName:      reviseName,
			ResumeText:         texts[0],
			JobDescriptionText: texts[1],
			CommunicationStyle: style,
		}, nil
	}

	reviseOperation := func(ctx context.Context, req types.RevisionRequest) (*types.RevisionResult, error) {
		return a.orchestrator.ReviseSummary(ctx, req)
	}

	return common.RunDocumentCommand(
		cmd.Context(),
		logger,
		a.extractor,
		reviseConfig,
		args,
		createInput,
		reviseOperation,
		nil,
	)
}
