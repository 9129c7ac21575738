package models

import "time"

type EvaluationStatus string

const EvaluationCompleted EvaluationStatus = "completed"

type Evaluation struct {
	ID                     uint             `gorm:"primaryKey" json:"id"`
	AnnotationID           uint             `gorm:"not null;uniqueIndex:idx_evaluation_unique" json:"annotation_id"`
	Annotation             *Annotation      `gorm:"foreignKey:AnnotationID" json:"annotation,omitempty"`
	EvaluatorID            uint             `gorm:"not null;uniqueIndex:idx_evaluation_unique;index" json:"evaluator_id"`
	Evaluator              *User            `gorm:"foreignKey:EvaluatorID" json:"evaluator,omitempty"`
	AnnotationQualityScore *int             `json:"annotation_quality_score"`
	AccuracyScore          *int             `json:"accuracy_score"`
	CompletenessScore      *int             `json:"completeness_score"`
	OverallEvaluationScore *int             `json:"overall_evaluation_score"`
	Feedback               string           `gorm:"type:text" json:"feedback,omitempty"`
	EvaluationNotes        string           `gorm:"type:text" json:"evaluation_notes,omitempty"`
	TimeSpentSeconds       *int             `json:"time_spent_seconds,omitempty"`
	Status                 EvaluationStatus `gorm:"size:20;not null" json:"evaluation_status"`
	AnnotationDeleted      bool             `gorm:"not null" json:"annotation_deleted"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}
