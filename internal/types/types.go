package types

// EmploymentStatus describes the candidate's current situation
type EmploymentStatus string

const (
	EmploymentEmployed   EmploymentStatus = "employed"
	EmploymentUnemployed EmploymentStatus = "unemployed"
	EmploymentStudent    EmploymentStatus = "student"
)

// Valid reports whether s is a known status.
func (s EmploymentStatus) Valid() bool {
	switch s {
	case EmploymentEmployed, EmploymentUnemployed, EmploymentStudent:
		return true
	}
	return false
}

// CommunicationStyle sets the tone of a rewritten summary
type CommunicationStyle string

const (
	StyleCasual CommunicationStyle = "casual"
	StyleFormal CommunicationStyle = "formal"
)

// Role identifies who authored a chat turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AnalysisRequest represents a resume and job description submitted for analysis
type AnalysisRequest struct {
	CandidateName      string           `json:"candidateName"`
	EmploymentStatus   EmploymentStatus `json:"employmentStatus"`
	ResumeText         string           `json:"resumeText"`
	JobDescriptionText string           `json:"jobDescriptionText"`
	Goals              string           `json:"goals,omitempty"`
}

// ScoreResult holds the three backend-provided scores, each in [0,100]
type ScoreResult struct {
	ATSPassScore        float64 `json:"atsPassScore"`
	HumanRecruiterScore float64 `json:"humanRecruiterScore"`
	ATSRealScore        float64 `json:"atsRealScore"`
}

// SuggestionResult holds markdown before/after edit pairs
type SuggestionResult struct {
	SuggestedEdits string `json:"suggestedEdits"`
}

// RatingExplanation explains what lifts and lowers the combined score
type RatingExplanation struct {
	PositiveFactors string `json:"positiveFactors"`
	NegativeFactors string `json:"negativeFactors"`
}

// AnalysisResult is the aggregate of one successful analysis
type AnalysisResult struct {
	Scores             ScoreResult       `json:"scores"`
	Suggestions        SuggestionResult  `json:"suggestions"`
	RatingExplanation  RatingExplanation `json:"ratingExplanation"`
	ResumeText         string            `json:"resumeText"`
	JobDescriptionText string            `json:"jobDescriptionText"`
	// ScoreConsistent is false when atsRealScore does not match the weighted
	// pass and recruiter scores. The scores are reported unchanged either way.
	ScoreConsistent bool     `json:"scoreConsistent"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ChatTurn is one message in a follow-up conversation
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FeedbackRequest asks for short personal feedback on a scored resume
type FeedbackRequest struct {
	CandidateName       string  `json:"candidateName"`
	ResumeText          string  `json:"resumeText"`
	JobDescriptionText  string  `json:"jobDescriptionText"`
	ATSPassScore        float64 `json:"atsPassScore"`
	HumanRecruiterScore float64 `json:"humanRecruiterScore"`
	Strengths           string  `json:"strengths"`
	Weaknesses          string  `json:"weaknesses"`
}

// FeedbackResult holds 2-3 markdown bullets
type FeedbackResult struct {
	Feedback string `json:"feedback"`
}

// RevisionRequest asks for a rewritten professional summary
type RevisionRequest struct {
	CandidateName      string             `json:"candidateName"`
	ResumeText         string             `json:"resumeText"`
	JobDescriptionText string             `json:"jobDescriptionText"`
	CommunicationStyle CommunicationStyle `json:"communicationStyle"`
}

// RevisionResult holds the rewritten summary
type RevisionResult struct {
	RevisedSummary   string   `json:"revisedSummary"`
	EnhancedKeyTerms []string `json:"enhancedKeyTerms"`
	Explanation      string   `json:"explanation"`
}

// ScoreInput is the input of the score template
type ScoreInput struct {
	ResumeText         string `json:"resumeText"`
	JobDescriptionText string `json:"jobDescriptionText"`
}

// SuggestInput is the input of the suggest template
type SuggestInput struct {
	ResumeText          string           `json:"resumeText"`
	JobDescriptionText  string           `json:"jobDescriptionText"`
	ATSPassScore        float64          `json:"atsPassScore"`
	HumanRecruiterScore float64          `json:"humanRecruiterScore"`
	UserInfo            string           `json:"userInfo"`
	EmploymentStatus    EmploymentStatus `json:"employmentStatus"`
	CandidateName       string           `json:"candidateName"`
}

// RationaleInput is the input of the rationale template
type RationaleInput struct {
	ResumeText         string  `json:"resumeText"`
	JobDescriptionText string  `json:"jobDescriptionText"`
	ATSRealScore       float64 `json:"atsRealScore"`
}

// ChatInput is the input of the chat template
type ChatInput struct {
	ResumeText         string     `json:"resumeText"`
	JobDescriptionText string     `json:"jobDescriptionText"`
	Question           string     `json:"question"`
	History            []ChatTurn `json:"history"`
}

// ChatOutput is the output of the chat template
type ChatOutput struct {
	Answer string `json:"answer"`
}
