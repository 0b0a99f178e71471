package cli

import (
	"context"
	"fmt"

	"artyats/internal/common"
	"artyats/internal/types"

	"github.com/spf13/cobra"
)

// candidateFlags are shared by the commands that run an analysis.
type candidateFlags struct {
	name   string
	status string
	goals  string
}

func (f *candidateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Candidate name")
	cmd.Flags().StringVar(&f.status, "status", string(types.EmploymentEmployed), "Employment status: employed, unemployed or student")
	cmd.Flags().StringVar(&f.goals, "goals", "", "What the candidate is looking for (replaces the default user info)")
}

func (f *candidateFlags) request(texts []string) (types.AnalysisRequest, error) {
	if len(texts) != 2 {
		return types.AnalysisRequest{}, fmt.Errorf("expected 2 file paths, got %d", len(texts))
	}
	status, err := common.ValidateEmploymentStatus(f.status)
	if err != nil {
		return types.AnalysisRequest{}, err
	}
	return types.AnalysisRequest{
		CandidateName:      f.name,
		EmploymentStatus:   status,
		ResumeText:         texts[0],
		JobDescriptionText: texts[1],
		Goals:              f.goals,
	}, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file] [job-description-file]",
	Short: "Score a resume against a job description",
	Long: `Score a resume the way an ATS and a human recruiter would, then explain
the score and suggest concrete before/after edits.

The analysis includes:
- ATS pass, human recruiter and combined ATS real scores
- What is working and what is holding the resume back
- Suggested edits that respect the candidate's employment status`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &analyzeConfig)
	},
	RunE: runAnalyze,
}

var (
	analyzeConfig    common.CommandConfig
	analyzeCandidate candidateFlags
)

func init() {
	addOutputFlags(analyzeCmd, &analyzeConfig)
	analyzeCandidate.register(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logDetails := func(req types.AnalysisRequest, cfg common.CommandConfig) {
		logger.Info("Starting ATS analysis",
			"resume_chars", len(req.ResumeText),
			"job_chars", len(req.JobDescriptionText),
			"employment_status", string(req.EmploymentStatus),
			"output_format", cfg.OutputFormat)
	}

	analyzeOperation := func(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
		return a.orchestrator.RunAnalysis(ctx, req)
	}

	err = common.RunDocumentCommand(
		cmd.Context(),
		logger,
		a.extractor,
		analyzeConfig,
		args,
		analyzeCandidate.request,
		analyzeOperation,
		logDetails,
	)
	if err != nil {
		return err
	}
	logger.Info("ATS analysis completed successfully")
	return nil
}
