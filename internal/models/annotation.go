package models

import "time"

// AnnotationStatus is the persisted lifecycle state. Drafts live only on the client.
type AnnotationStatus string

const (
	AnnotationSubmitted AnnotationStatus = "submitted"
	AnnotationEvaluated AnnotationStatus = "evaluated"
	AnnotationArchived  AnnotationStatus = "archived"
	AnnotationDeleted   AnnotationStatus = "deleted"
)

type Annotation struct {
	ID                     uint             `gorm:"primaryKey" json:"id"`
	SentenceID             uint             `gorm:"not null;index" json:"sentence_id"`
	Sentence               *Sentence        `gorm:"foreignKey:SentenceID" json:"sentence,omitempty"`
	AnnotatorID            uint             `gorm:"not null;index" json:"annotator_id"`
	Annotator              *User            `gorm:"foreignKey:AnnotatorID" json:"annotator,omitempty"`
	FluencyScore           *int             `json:"fluency_score"`
	AdequacyScore          *int             `json:"adequacy_score"`
	OverallQuality         *int             `json:"overall_quality"`
	ErrorsFound            string           `gorm:"type:text" json:"errors_found,omitempty"`
	SuggestedCorrection    string           `gorm:"type:text" json:"suggested_correction,omitempty"`
	Comments               string           `gorm:"type:text" json:"comments,omitempty"`
	FinalForm              string           `gorm:"type:text" json:"final_form,omitempty"`
	VoiceRecordingURL      string           `gorm:"size:500" json:"voice_recording_url,omitempty"`
	VoiceRecordingDuration *int             `json:"voice_recording_duration,omitempty"`
	TimeSpentSeconds       *int             `json:"time_spent_seconds,omitempty"`
	Status                 AnnotationStatus `gorm:"size:20;not null;index" json:"annotation_status"`
	Highlights             []TextHighlight  `gorm:"foreignKey:AnnotationID;constraint:OnDelete:CASCADE" json:"highlights"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
	DeletedAt              *time.Time       `json:"deleted_at,omitempty"`
}

// Editable reports whether the owner may still change content.
func (a *Annotation) Editable() bool {
	return a.Status == AnnotationSubmitted
}

type HighlightErrorType string

const (
	ErrorMinorStructural HighlightErrorType = "MI_ST"
	ErrorMinorSemantic   HighlightErrorType = "MI_SE"
	ErrorMajorStructural HighlightErrorType = "MA_ST"
	ErrorMajorSemantic   HighlightErrorType = "MA_SE"
)

func (t HighlightErrorType) Valid() bool {
	switch t {
	case ErrorMinorStructural, ErrorMinorSemantic, ErrorMajorStructural, ErrorMajorSemantic:
		return true
	}
	return false
}

type TextHighlight struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	AnnotationID    uint               `gorm:"not null;index" json:"annotation_id"`
	HighlightedText string             `gorm:"type:text;not null" json:"highlighted_text"`
	StartIndex      int                `gorm:"not null" json:"start_index"`
	EndIndex        int                `gorm:"not null" json:"end_index"`
	TextType        string             `gorm:"size:20;not null" json:"text_type"`
	Comment         string             `gorm:"type:text" json:"comment"`
	ErrorType       HighlightErrorType `gorm:"size:10;not null" json:"error_type"`
	CreatedAt       time.Time          `json:"created_at"`
}
