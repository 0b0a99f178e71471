package formatters

import (
	"fmt"
	"strings"

	"artyats/internal/types"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")

	styleHeader = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	styleLabel  = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleWarn   = lipgloss.NewStyle().Foreground(colorYellow)
)

// header renders an upper-case section title with a dim underline.
func header(title string) string {
	upper := strings.ToUpper(title)
	return styleHeader.Render(upper) + "\n" + styleDim.Render(strings.Repeat("─", len(upper))) + "\n"
}

// scoreStyle colours a score: green from 75, yellow from 50, red below.
func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 75:
		return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	case score >= 50:
		return lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	}
}

func scoreLine(label string, score float64) string {
	return fmt.Sprintf("%s %s\n", styleLabel.Render(label+":"), scoreStyle(score).Render(fmt.Sprintf("%.0f/100", score)))
}

// AnalysisTextFormatter renders an analysis for the terminal.
type AnalysisTextFormatter struct{}

func (f *AnalysisTextFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.AnalysisResult)
	if !ok {
		return "", fmt.Errorf("expected *AnalysisResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString(header("ATS scores"))
	output.WriteString(scoreLine("ATS pass score", result.Scores.ATSPassScore))
	output.WriteString(scoreLine("Human recruiter score", result.Scores.HumanRecruiterScore))
	output.WriteString(scoreLine("ATS real score", result.Scores.ATSRealScore))
	for _, w := range result.Warnings {
		output.WriteString(styleWarn.Render("! "+w) + "\n")
	}
	output.WriteString("\n")

	output.WriteString(header("What is working"))
	output.WriteString(result.RatingExplanation.PositiveFactors)
	output.WriteString("\n\n")

	output.WriteString(header("What is holding you back"))
	output.WriteString(result.RatingExplanation.NegativeFactors)
	output.WriteString("\n\n")

	output.WriteString(header("Suggested edits"))
	output.WriteString(result.Suggestions.SuggestedEdits)
	output.WriteString("\n")

	return output.String(), nil
}

func (f *AnalysisTextFormatter) SupportedType() string {
	return "AnalysisResult"
}

// FeedbackTextFormatter renders personal feedback for the terminal.
type FeedbackTextFormatter struct{}

func (f *FeedbackTextFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.FeedbackResult)
	if !ok {
		return "", fmt.Errorf("expected *FeedbackResult, got %T", data)
	}
	return header("Feedback") + result.Feedback + "\n", nil
}

func (f *FeedbackTextFormatter) SupportedType() string {
	return "FeedbackResult"
}

// RevisionTextFormatter renders a revised summary for the terminal.
type RevisionTextFormatter struct{}

func (f *RevisionTextFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.RevisionResult)
	if !ok {
		return "", fmt.Errorf("expected *RevisionResult, got %T", data)
	}

	var output strings.Builder
	output.WriteString(header("Revised summary"))
	output.WriteString(result.RevisedSummary)
	output.WriteString("\n\n")
	if len(result.EnhancedKeyTerms) > 0 {
		output.WriteString(styleLabel.Render("Key terms:") + " " + strings.Join(result.EnhancedKeyTerms, ", ") + "\n\n")
	}
	output.WriteString(header("Why"))
	output.WriteString(result.Explanation)
	output.WriteString("\n")
	return output.String(), nil
}

func (f *RevisionTextFormatter) SupportedType() string {
	return "RevisionResult"
}

// ChatTurn renders one chat message for the interactive loop.
func ChatTurn(turn types.ChatTurn) string {
	label := "You"
	style := styleLabel
	if turn.Role == types.RoleAssistant {
		label = "Arty"
		style = styleHeader
	}
	return style.Render(label+":") + " " + turn.Content
}
