package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"lakra-backend/internal/models"

	"gorm.io/gorm"
)

var (
	questionTypes = []string{"grammar", "vocabulary", "translation", "cultural", "comprehension"}
	difficulties  = []string{"basic", "intermediate", "advanced"}
)

type QuestionInput struct {
	Language      string   `json:"language" binding:"required"`
	Type          string   `json:"type" binding:"required"`
	Question      string   `json:"question" binding:"required"`
	Options       []string `json:"options" binding:"required"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	IsActive      *bool    `json:"is_active"`
}

type QuestionPatch struct {
	Language      *string   `json:"language"`
	Type          *string   `json:"type"`
	Question      *string   `json:"question"`
	Options       *[]string `json:"options"`
	CorrectAnswer *int      `json:"correct_answer"`
	Explanation   *string   `json:"explanation"`
	Difficulty    *string   `json:"difficulty"`
	IsActive      *bool     `json:"is_active"`
}

func validateQuestion(q *models.LanguageProficiencyQuestion) error {
	q.Language = models.NormalizeLanguage(q.Language)
	q.Type = strings.ToLower(strings.TrimSpace(q.Type))
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	if q.Difficulty == "" {
		q.Difficulty = "basic"
	}
	switch {
	case !models.IsTargetLanguage(q.Language):
		return NewValidationError("unsupported language %q", q.Language)
	case !slices.Contains(questionTypes, q.Type):
		return NewValidationError("type must be one of %s", strings.Join(questionTypes, ", "))
	case !slices.Contains(difficulties, q.Difficulty):
		return NewValidationError("difficulty must be one of %s", strings.Join(difficulties, ", "))
	case strings.TrimSpace(q.Question) == "":
		return NewValidationError("question text is required")
	case len(q.Options) < 2:
		return NewValidationError("a question needs at least two options")
	case q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options):
		return NewValidationError("correct_answer must index one of the options")
	}
	return nil
}

// ListQuestions returns active questions without answers. Language names are matched
// after normalization, so "Tagalog" and "tagalog" select the same rows.
func (s *ProficiencyService) ListQuestions(ctx context.Context, languages []string) ([]models.PublicQuestion, error) {
	q := s.db.WithContext(ctx).Where("is_active = ?", true).Order("language ASC, id ASC")
	if langs := models.NormalizeLanguages(languages); len(langs) > 0 {
		q = q.Where("language IN ?", langs)
	}
	var rows []models.LanguageProficiencyQuestion
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.PublicQuestion, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Public())
	}
	return out, nil
}

// ListAllQuestions is the admin view, answers included.
func (s *ProficiencyService) ListAllQuestions(ctx context.Context, language string, page Page) ([]models.LanguageProficiencyQuestion, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if lang := models.NormalizeLanguage(language); lang != "" {
		q = q.Where("language = ?", lang)
	}
	var out []models.LanguageProficiencyQuestion
	err := page.apply(q).Find(&out).Error
	return out, err
}

func (s *ProficiencyService) CreateQuestion(ctx context.Context, createdBy uint, in QuestionInput) (*models.LanguageProficiencyQuestion, error) {
	q := models.LanguageProficiencyQuestion{
		Language:      in.Language,
		Type:          in.Type,
		Question:      in.Question,
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
		Explanation:   in.Explanation,
		Difficulty:    in.Difficulty,
		IsActive:      in.IsActive == nil || *in.IsActive,
		CreatedBy:     &createdBy,
	}
	if err := validateQuestion(&q); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &q, nil
}

func (s *ProficiencyService) UpdateQuestion(ctx context.Context, id uint, patch QuestionPatch) (*models.LanguageProficiencyQuestion, error) {
	db := s.db.WithContext(ctx)
	var q models.LanguageProficiencyQuestion
	if err := db.First(&q, id).Error; err != nil {
		return nil, notFoundOr(err, "question")
	}

	if patch.Language != nil {
		q.Language = *patch.Language
	}
	if patch.Type != nil {
		q.Type = *patch.Type
	}
	if patch.Question != nil {
		q.Question = *patch.Question
	}
	if patch.Options != nil {
		q.Options = *patch.Options
	}
	if patch.CorrectAnswer != nil {
		q.CorrectAnswer = *patch.CorrectAnswer
	}
	if patch.Explanation != nil {
		q.Explanation = *patch.Explanation
	}
	if patch.Difficulty != nil {
		q.Difficulty = *patch.Difficulty
	}
	if patch.IsActive != nil {
		q.IsActive = *patch.IsActive
	}
	if err := validateQuestion(&q); err != nil {
		return nil, err
	}
	if err := db.Save(&q).Error; err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	return &q, nil
}

// DeleteQuestion deactivates a question that has recorded answers and removes it otherwise.
// It reports whether the row was removed.
func (s *ProficiencyService) DeleteQuestion(ctx context.Context, id uint) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.LanguageProficiencyQuestion
		if err := tx.First(&q, id).Error; err != nil {
			return notFoundOr(err, "question")
		}
		var answers int64
		if err := tx.Model(&models.UserQuestionAnswer{}).Where("question_id = ?", id).Count(&answers).Error; err != nil {
			return err
		}
		if answers > 0 {
			return tx.Model(&q).Update("is_active", false).Error
		}
		removed = true
		return tx.Delete(&q).Error
	})
	return removed, err
}
