package cli

import (
	"context"

	"artyats/internal/common"
	"artyats/internal/types"

	"github.com/spf13/cobra"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback [resume-file] [job-description-file]",
	Short: "Analyze a resume and write short personal feedback",
	Long: `Run the ATS analysis, then turn its scores and rating explanation into a
few short, personal feedback bullets addressed to the candidate.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &feedbackConfig)
	},
	RunE: runFeedback,
}

var (
	feedbackConfig    common.CommandConfig
	feedbackCandidate candidateFlags
)

func init() {
	addOutputFlags(feedbackCmd, &feedbackConfig)
	feedbackCandidate.register(feedbackCmd)
	_ = feedbackCmd.MarkFlagRequired("name")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	feedbackOperation := func(ctx context.Context, req types.AnalysisRequest) (*types.FeedbackResult, error) {
		result, err := a.orchestrator.RunAnalysis(ctx, req)
		if err != nil {
			return nil, err
		}
		return a.orchestrator.GenerateFeedback(ctx, feedbackRequest(req.CandidateName, result))
	}

	return common.RunDocumentCommand(
		cmd.Context(),
		logger,
		a.extractor,
		feedbackConfig,
		args,
		feedbackCandidate.request,
		feedbackOperation,
		nil,
	)
}

// feedbackRequest carries a finished analysis into the feedback prompt.
func feedbackRequest(name string, result *types.AnalysisResult) types.FeedbackRequest {
	return types.FeedbackRequest{
		CandidateName:       name,
		ResumeText:          result.ResumeText,
		JobDescriptionText:  result.JobDescriptionText,
		ATSPassScore:        result.Scores.ATSPassScore,
		HumanRecruiterScore: result.Scores.HumanRecruiterScore,
		Strengths:           result.RatingExplanation.PositiveFactors,
		Weaknesses:          result.RatingExplanation.NegativeFactors,
	}
}
