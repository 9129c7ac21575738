package models

import "time"

type AssessmentStatus string

const (
	AssessmentPending       AssessmentStatus = "pending"
	AssessmentAssessed      AssessmentStatus = "assessed"
	AssessmentHumanReviewed AssessmentStatus = "human_reviewed"
)

// MTError is one issue found in a machine translation.
type MTError struct {
	ErrorType     string `json:"error_type"`
	Severity      string `json:"severity"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
	TextSpan      string `json:"text_span"`
	Description   string `json:"description"`
	SuggestedFix  string `json:"suggested_fix,omitempty"`
}

// MTQualityAssessment holds the single active assessment of a sentence's machine translation.
type MTQualityAssessment struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	SentenceID            uint             `gorm:"not null;uniqueIndex" json:"sentence_id"`
	Sentence              *Sentence        `gorm:"foreignKey:SentenceID" json:"sentence,omitempty"`
	RequestedBy           uint             `gorm:"not null;index" json:"evaluator_id"`
	ReviewerID            *uint            `gorm:"index" json:"reviewer_id,omitempty"`
	FluencyScore          float64          `json:"fluency_score"`
	AdequacyScore         float64          `json:"adequacy_score"`
	OverallQualityScore   float64          `json:"overall_quality_score"`
	HumanFluencyScore     *float64         `json:"human_fluency_score,omitempty"`
	HumanAdequacyScore    *float64         `json:"human_adequacy_score,omitempty"`
	HumanOverallScore     *float64         `json:"human_overall_score,omitempty"`
	SyntaxErrors          []MTError        `gorm:"serializer:json;type:text" json:"syntax_errors"`
	SemanticErrors        []MTError        `gorm:"serializer:json;type:text" json:"semantic_errors"`
	QualityExplanation    string           `gorm:"type:text" json:"quality_explanation"`
	CorrectionSuggestions []string         `gorm:"serializer:json;type:text" json:"correction_suggestions"`
	ModelConfidence       float64          `json:"model_confidence"`
	ProcessingTimeMS      int64            `json:"processing_time_ms"`
	TimeSpentSeconds      *int             `json:"time_spent_seconds,omitempty"`
	HumanFeedback         string           `gorm:"type:text" json:"human_feedback,omitempty"`
	CorrectionNotes       string           `gorm:"type:text" json:"correction_notes,omitempty"`
	Status                AssessmentStatus `gorm:"size:20;not null;index" json:"evaluation_status"`
	LastError             string           `gorm:"type:text" json:"last_error,omitempty"`
	AssessedAt            *time.Time       `json:"assessed_at,omitempty"`
	ReviewedAt            *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// HumanOverride reports whether a reviewer disagreed with the automated pass.
func (a *MTQualityAssessment) HumanOverride() bool {
	return a.HumanFeedback != "" || a.CorrectionNotes != "" ||
		a.HumanFluencyScore != nil || a.HumanAdequacyScore != nil || a.HumanOverallScore != nil
}
