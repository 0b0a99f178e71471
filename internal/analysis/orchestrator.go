// Package analysis sequences the generation calls behind a resume analysis:
// scoring first, then suggestions and rationale side by side.
package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"artyats/internal/ai"
	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/prompts"
	"artyats/internal/types"

	"golang.org/x/sync/errgroup"
)

// FailurePrefix starts every user-facing analysis failure.
const FailurePrefix = "AI analysis failed. "

// AnalysisError is the single failure returned by an analysis operation. It
// unwraps to the typed cause.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return FailurePrefix + UserMessage(e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// UserMessage renders err for end users, preferring the AppError message
// over the internal cause chain.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Fail wraps err as an AnalysisError unless it already is one.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return err
	}
	return &AnalysisError{Err: err}
}

// Recorder receives business metrics for finished operations.
type Recorder interface {
	RecordAnalysis(ctx context.Context, operation string, duration time.Duration, err error, scores *types.ScoreResult)
}

// Orchestrator runs analyses against a Generator.
type Orchestrator struct {
	gen      ai.Generator
	cfg      config.AnalysisConfig
	logger   *errors.Logger
	recorder Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator creates an orchestrator. A nil logger discards output.
func NewOrchestrator(gen ai.Generator, cfg config.AnalysisConfig, logger *errors.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = errors.Nop()
	}
	o := &Orchestrator{gen: gen, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAnalysis scores the resume, then asks for suggestions and a rationale
// concurrently. Any failure fails the whole analysis; partial results are
// never returned.
func (o *Orchestrator) RunAnalysis(ctx context.Context, req types.AnalysisRequest) (result *types.AnalysisResult, err error) {
	start := time.Now()
	defer func() {
		var scores *types.ScoreResult
		if result != nil {
			scores = &result.Scores
		}
		o.record(ctx, "analyze", start, err, scores)
	}()

	req, err = o.normalize(req)
	if err != nil {
		return nil, Fail(err)
	}

	scores, err := ai.Call[types.ScoreResult](ctx, o.gen, prompts.NameScore, types.ScoreInput{
		ResumeText:         req.ResumeText,
		JobDescriptionText: req.JobDescriptionText,
	})
	if err != nil {
		o.logger.LogError(err, "Scoring failed, skipping suggestions and rationale")
		return nil, Fail(err)
	}

	var (
		suggestions types.SuggestionResult
		rationale   types.RatingExplanation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := ai.Call[types.SuggestionResult](gctx, o.gen, prompts.NameSuggest, types.SuggestInput{
			ResumeText:          req.ResumeText,
			JobDescriptionText:  req.JobDescriptionText,
			ATSPassScore:        scores.ATSPassScore,
			HumanRecruiterScore: scores.HumanRecruiterScore,
			UserInfo:            o.userInfo(req),
			EmploymentStatus:    req.EmploymentStatus,
			CandidateName:       req.CandidateName,
		})
		suggestions = out
		return err
	})
	g.Go(func() error {
		out, err := ai.Call[types.RatingExplanation](gctx, o.gen, prompts.NameRationale, types.RationaleInput{
			ResumeText:         req.ResumeText,
			JobDescriptionText: req.JobDescriptionText,
			ATSRealScore:       scores.ATSRealScore,
		})
		rationale = out
		return err
	})
	if err := g.Wait(); err != nil {
		o.logger.LogError(err, "Analysis fan-out failed")
		return nil, Fail(err)
	}

	result = &types.AnalysisResult{
		Scores:             scores,
		Suggestions:        suggestions,
		RatingExplanation:  rationale,
		ResumeText:         req.ResumeText,
		JobDescriptionText: req.JobDescriptionText,
		ScoreConsistent:    true,
	}
	if warning, ok := CheckScoreConsistency(scores, o.tolerance()); !ok {
		result.ScoreConsistent = false
		result.Warnings = append(result.Warnings, warning)
		o.logger.Warn("Combined score does not match its components",
			"ats_pass_score", scores.ATSPassScore,
			"human_recruiter_score", scores.HumanRecruiterScore,
			"ats_real_score", scores.ATSRealScore)
	}

	o.logger.Info("Analysis completed",
		"ats_real_score", scores.ATSRealScore,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// GenerateFeedback produces short personal feedback bullets.
func (o *Orchestrator) GenerateFeedback(ctx context.Context, req types.FeedbackRequest) (result *types.FeedbackResult, err error) {
	start := time.Now()
	defer func() { o.record(ctx, "feedback", start, err, nil) }()

	req.CandidateName = strings.TrimSpace(req.CandidateName)
	req.ResumeText = strings.TrimSpace(req.ResumeText)
	req.JobDescriptionText = strings.TrimSpace(req.JobDescriptionText)
	if err := requireTexts(req.ResumeText, req.JobDescriptionText); err != nil {
		return nil, Fail(err)
	}
	if req.CandidateName == "" {
		return nil, Fail(errors.NewValidationError(errors.ErrCodeInvalidInput, "candidate name is required", nil))
	}

	out, err := ai.Call[types.FeedbackResult](ctx, o.gen, prompts.NameFeedback, req)
	if err != nil {
		return nil, Fail(err)
	}
	return &out, nil
}

// ReviseSummary rewrites the professional summary in the requested tone.
func (o *Orchestrator) ReviseSummary(ctx context.Context, req types.RevisionRequest) (result *types.RevisionResult, err error) {
	start := time.Now()
	defer func() { o.record(ctx, "revise", start, err, nil) }()

	req.CandidateName = strings.TrimSpace(req.CandidateName)
	req.ResumeText = strings.TrimSpace(req.ResumeText)
	req.JobDescriptionText = strings.TrimSpace(req.JobDescriptionText)
	if req.CommunicationStyle == "" {
		req.CommunicationStyle = types.StyleFormal
	}
	if err := requireTexts(req.ResumeText, req.JobDescriptionText); err != nil {
		return nil, Fail(err)
	}
	if req.CandidateName == "" {
		return nil, Fail(errors.NewValidationError(errors.ErrCodeInvalidInput, "candidate name is required", nil))
	}

	out, err := ai.Call[types.RevisionResult](ctx, o.gen, prompts.NameRevise, req)
	if err != nil {
		return nil, Fail(err)
	}
	return &out, nil
}

// CheckScoreConsistency compares atsRealScore with the weighted components.
// It returns a warning and false when they differ by more than tolerance.
func CheckScoreConsistency(s types.ScoreResult, tolerance float64) (string, bool) {
	expected := math.Round(s.ATSPassScore*0.4 + s.HumanRecruiterScore*0.6)
	if math.Abs(s.ATSRealScore-expected) <= tolerance {
		return "", true
	}
	return fmt.Sprintf("combined score %g differs from 0.4 x %g + 0.6 x %g = %g",
		s.ATSRealScore, s.ATSPassScore, s.HumanRecruiterScore, expected), false
}

func (o *Orchestrator) normalize(req types.AnalysisRequest) (types.AnalysisRequest, error) {
	req.CandidateName = strings.TrimSpace(req.CandidateName)
	req.ResumeText = strings.TrimSpace(req.ResumeText)
	req.JobDescriptionText = strings.TrimSpace(req.JobDescriptionText)
	req.Goals = strings.TrimSpace(req.Goals)

	if err := requireTexts(req.ResumeText, req.JobDescriptionText); err != nil {
		return req, err
	}
	if n := utf8.RuneCountInString(req.JobDescriptionText); n < o.cfg.MinJobDescriptionLength {
		return req, errors.NewValidationError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("job description is too short (%d characters, at least %d required)", n, o.cfg.MinJobDescriptionLength), nil)
	}
	if !req.EmploymentStatus.Valid() {
		return req, errors.NewValidationError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("employment status must be employed, unemployed or student, got %q", req.EmploymentStatus), nil)
	}
	return req, nil
}

func requireTexts(resume, jobDescription string) error {
	if resume == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidInput, "resume text is empty", nil)
	}
	if jobDescription == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidInput, "job description text is empty", nil)
	}
	return nil
}

func (o *Orchestrator) userInfo(req types.AnalysisRequest) string {
	if req.Goals != "" {
		return req.Goals
	}
	if o.cfg.DefaultUserInfo != "" {
		return o.cfg.DefaultUserInfo
	}
	return "Looking for a new role."
}

func (o *Orchestrator) tolerance() float64 {
	if o.cfg.ScoreTolerance > 0 {
		return o.cfg.ScoreTolerance
	}
	return 1.0
}

func (o *Orchestrator) record(ctx context.Context, operation string, start time.Time, err error, scores *types.ScoreResult) {
	if o.recorder != nil {
		o.recorder.RecordAnalysis(ctx, operation, time.Since(start), err, scores)
	}
}
