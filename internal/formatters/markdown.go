package formatters

import (
	"fmt"
	"strings"

	"artyats/internal/types"
)

// AnalysisMarkdownFormatter handles markdown formatting for analysis results
type AnalysisMarkdownFormatter struct{}

func (f *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.AnalysisResult)
	if !ok {
		return "", fmt.Errorf("expected *AnalysisResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# ATS Analysis\n\n")
	output.WriteString("| Score | Value |\n|---|---|\n")
	output.WriteString(fmt.Sprintf("| ATS pass | %.0f |\n", result.Scores.ATSPassScore))
	output.WriteString(fmt.Sprintf("| Human recruiter | %.0f |\n", result.Scores.HumanRecruiterScore))
	output.WriteString(fmt.Sprintf("| **ATS real** | **%.0f** |\n\n", result.Scores.ATSRealScore))

	if len(result.Warnings) > 0 {
		for _, w := range result.Warnings {
			output.WriteString("> **Warning:** " + w + "\n")
		}
		output.WriteString("\n")
	}

	output.WriteString("## What Is Working\n\n")
	output.WriteString(result.RatingExplanation.PositiveFactors)
	output.WriteString("\n\n")
	output.WriteString("## What Is Holding You Back\n\n")
	output.WriteString(result.RatingExplanation.NegativeFactors)
	output.WriteString("\n\n")
	output.WriteString("## Suggested Edits\n\n")
	output.WriteString(result.Suggestions.SuggestedEdits)
	output.WriteString("\n")

	return output.String(), nil
}

func (f *AnalysisMarkdownFormatter) SupportedType() string {
	return "AnalysisResult"
}

// FeedbackMarkdownFormatter handles markdown formatting for feedback
type FeedbackMarkdownFormatter struct{}

func (f *FeedbackMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.FeedbackResult)
	if !ok {
		return "", fmt.Errorf("expected *FeedbackResult, got %T", data)
	}
	return "# Feedback\n\n" + result.Feedback + "\n", nil
}

func (f *FeedbackMarkdownFormatter) SupportedType() string {
	return "FeedbackResult"
}

// RevisionMarkdownFormatter handles markdown formatting for summary revisions
type RevisionMarkdownFormatter struct{}

func (f *RevisionMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(*types.RevisionResult)
	if !ok {
		return "", fmt.Errorf("expected *RevisionResult, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Revised Summary\n\n")
	output.WriteString(result.RevisedSummary)
	output.WriteString("\n\n")
	if len(result.EnhancedKeyTerms) > 0 {
		output.WriteString("## Key Terms\n\n")
		for _, term := range result.EnhancedKeyTerms {
			output.WriteString("- " + term + "\n")
		}
		output.WriteString("\n")
	}
	output.WriteString("## Why\n\n")
	output.WriteString(result.Explanation)
	output.WriteString("\n")
	return output.String(), nil
}

func (f *RevisionMarkdownFormatter) SupportedType() string {
	return "RevisionResult"
}
