package models

import (
	"time"

	"gorm.io/gorm"
)

type LanguageProficiencyQuestion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Language      string    `gorm:"size:50;not null;index" json:"language"`
	Type          string    `gorm:"size:30;not null" json:"type"`
	Question      string    `gorm:"type:text;not null" json:"question"`
	Options       []string  `gorm:"serializer:json;type:text;not null" json:"options"`
	CorrectAnswer int       `gorm:"not null" json:"correct_answer"`
	Explanation   string    `gorm:"type:text" json:"explanation"`
	Difficulty    string    `gorm:"size:20;not null" json:"difficulty"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedBy     *uint     `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (q *LanguageProficiencyQuestion) BeforeSave(tx *gorm.DB) error {
	q.Language = NormalizeLanguage(q.Language)
	return nil
}

// PublicQuestion is what a test taker sees: no answer, no explanation.
type PublicQuestion struct {
	ID         uint     `json:"id"`
	Language   string   `json:"language"`
	Type       string   `json:"type"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty"`
}

func (q *LanguageProficiencyQuestion) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Language:   q.Language,
		Type:       q.Type,
		Question:   q.Question,
		Options:    q.Options,
		Difficulty: q.Difficulty,
	}
}

type TestStatus string

const (
	TestInProgress TestStatus = "in_progress"
	TestSubmitted  TestStatus = "submitted"
)

type LanguageResult struct {
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	Score   float64 `json:"score"`
	Passed  bool    `json:"passed"`
}

// OnboardingTest is immutable once submitted.
type OnboardingTest struct {
	ID                uint                      `gorm:"primaryKey" json:"id"`
	UserID            uint                      `gorm:"not null;index" json:"user_id"`
	SessionID         string                    `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	Languages         []string                  `gorm:"serializer:json;type:text;not null" json:"languages"`
	QuestionIDs       []uint                    `gorm:"serializer:json;type:text;not null" json:"question_ids"`
	Status            TestStatus                `gorm:"size:20;not null;index" json:"status"`
	Score             *float64                  `json:"score,omitempty"`
	Passed            bool                      `gorm:"not null" json:"passed"`
	TotalQuestions    int                       `gorm:"not null" json:"total_questions"`
	CorrectAnswers    int                       `gorm:"not null" json:"correct_answers"`
	ResultsByLanguage map[string]LanguageResult `gorm:"serializer:json;type:text" json:"results_by_language,omitempty"`
	StartedAt         time.Time                 `gorm:"autoCreateTime" json:"started_at"`
	CompletedAt       *time.Time                `json:"completed_at,omitempty"`
}

func (t *OnboardingTest) BeforeSave(tx *gorm.DB) error {
	t.Languages = NormalizeLanguages(t.Languages)
	return nil
}

type UserQuestionAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	TestID         uint      `gorm:"not null;uniqueIndex:idx_test_question" json:"test_id"`
	QuestionID     uint      `gorm:"not null;uniqueIndex:idx_test_question" json:"question_id"`
	TestSessionID  string    `gorm:"size:64;index" json:"test_session_id"`
	SelectedAnswer int       `gorm:"not null" json:"selected_answer"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	AnsweredAt     time.Time `json:"answered_at"`
}
