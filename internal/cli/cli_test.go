package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/types"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAsker struct {
	questions []string
	fail      map[string]error
}

func (a *scriptedAsker) AskFollowUp(ctx context.Context, question string) (types.ChatTurn, error) {
	a.questions = append(a.questions, question)
	if err := a.fail[question]; err != nil {
		return types.ChatTurn{}, err
	}
	return types.ChatTurn{Role: types.RoleAssistant, Content: "answer to " + question}, nil
}

func TestChatLoop(t *testing.T) {
	asker := &scriptedAsker{fail: map[string]error{
		"break": errors.NewBackendUnavailableError(errors.ErrCodeBackendTimeout, "chat request timed out", nil),
	}}
	in := strings.NewReader("first\n\n  break \nsecond\nexit\nnever\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), asker, in, &out))
	assert.Equal(t, []string{"first", "break", "second"}, asker.questions)
	assert.Contains(t, out.String(), "answer to first")
	assert.Contains(t, out.String(), "Error: AI analysis failed. chat request timed out")
	assert.Contains(t, out.String(), "answer to second")
	assert.NotContains(t, out.String(), "never")
}

func TestChatLoopEndsOnEOF(t *testing.T) {
	asker := &scriptedAsker{}
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), asker, strings.NewReader("only"), &out))
	assert.Equal(t, []string{"only"}, asker.questions)
}

func TestChatLoopStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	asker := &scriptedAsker{fail: map[string]error{"q": context.Canceled}}

	err := chatLoop(ctx, asker, strings.NewReader("q\nq\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, asker.questions, 1)
}

func TestCandidateFlagsRequest(t *testing.T) {
	f := candidateFlags{name: "Sam", status: "student", goals: "Internship"}
	req, err := f.request([]string{"resume", "jd"})
	require.NoError(t, err)
	assert.Equal(t, types.EmploymentStudent, req.EmploymentStatus)
	assert.Equal(t, "resume", req.ResumeText)
	assert.Equal(t, "jd", req.JobDescriptionText)
	assert.Equal(t, "Internship", req.Goals)

	f.status = "retired"
	_, err = f.request([]string{"resume", "jd"})
	assert.Error(t, err)

	_, err = (&candidateFlags{status: "employed"}).request([]string{"resume"})
	assert.Error(t, err)
}

func TestFeedbackRequestCarriesAnalysis(t *testing.T) {
	result := &types.AnalysisResult{
		Scores:             types.ScoreResult{ATSPassScore: 60, HumanRecruiterScore: 70, ATSRealScore: 66},
		RatingExplanation:  types.RatingExplanation{PositiveFactors: "+", NegativeFactors: "-"},
		ResumeText:         "resume",
		JobDescriptionText: "jd",
	}
	req := feedbackRequest("Sam", result)
	assert.Equal(t, types.FeedbackRequest{
		CandidateName:       "Sam",
		ResumeText:          "resume",
		JobDescriptionText:  "jd",
		ATSPassScore:        60,
		HumanRecruiterScore: 70,
		Strengths:           "+",
		Weaknesses:          "-",
	}, req)
}

func TestApplyServeFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("port", "", "")
	cmd.Flags().String("host", "", "")
	require.NoError(t, cmd.Flags().Set("port", "9090"))

	port, host := "8080", "0.0.0.0"
	applyServeFlags(cmd, map[string]*string{"port": &port, "host": &host})
	assert.Equal(t, "9090", port)
	assert.Equal(t, "0.0.0.0", host, "unset flags keep the configured value")
}

func runRoot(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := Execute(context.Background(), cfg, errors.Nop())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, &config.Config{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "artyats version dev")
}

func TestExtractCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte("Sam Doe\r\n\r\n\r\nPython engineer\r\n"), 0o600))
	cfg := &config.Config{Extract: config.ExtractConfig{MaxDocumentSize: 1 << 20, MaxPDFPages: 10}}

	out, err := runRoot(t, cfg, "extract", path)
	require.NoError(t, err)
	assert.Equal(t, "Sam Doe\n\nPython engineer\n", out)

	_, err = runRoot(t, cfg, "extract", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := &config.Config{App: config.AppConfig{DefaultFormat: "json", SupportedFormats: []string{"json", "text", "markdown"}}}

	_, err := runRoot(t, cfg, "analyze", "resume.txt", "jd.txt")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.KindOf(err))
}

func TestAnalyzeRejectsUnsupportedFormat(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{DefaultFormat: "json", SupportedFormats: []string{"json"}}}
	_, err := runRoot(t, cfg, "analyze", "--format", "markdown", "resume.txt", "jd.txt")
	assert.ErrorContains(t, err, "unsupported output format 'markdown'")
	analyzeConfig.OutputFormat = ""
}
