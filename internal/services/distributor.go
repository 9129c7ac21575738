package services

import (
	"context"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"

	"gorm.io/gorm"
)

// DistributorService picks the sentence a user should work on next. It only reads;
// AnnotationService.Create re-validates uniqueness on write.
type DistributorService struct {
	db             *gorm.DB
	maxPerSentence int
	metrics        *metrics.Metrics
}

func NewDistributorService(db *gorm.DB, maxPerSentence int, m *metrics.Metrics) *DistributorService {
	return &DistributorService{db: db, maxPerSentence: maxPerSentence, metrics: m}
}

// NextSentenceFor returns nil without error when nothing is left for the user.
func (s *DistributorService) NextSentenceFor(ctx context.Context, userID uint) (*models.Sentence, error) {
	list, err := s.candidates(ctx, userID, Page{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		s.metrics.DistributorServed.WithLabelValues("exhausted").Inc()
		return nil, nil
	}
	s.metrics.DistributorServed.WithLabelValues("served").Inc()
	return &list[0], nil
}

// ListUnannotated pages through the same candidate ordering as NextSentenceFor.
func (s *DistributorService) ListUnannotated(ctx context.Context, userID uint, page Page) ([]models.Sentence, error) {
	return s.candidates(ctx, userID, page)
}

func (s *DistributorService) candidates(ctx context.Context, userID uint, page Page) ([]models.Sentence, error) {
	db := s.db.WithContext(ctx)
	user, err := loadUser(db, userID)
	if err != nil {
		return nil, err
	}
	langs := eligibleLanguages(user)
	if len(langs) == 0 {
		return nil, nil
	}

	q := db.Model(&models.Sentence{}).
		Select("sentences.*").
		Joins("LEFT JOIN annotations a ON a.sentence_id = sentences.id AND a.status <> ?", models.AnnotationDeleted).
		Where("sentences.is_active = ?", true).
		Where("sentences.source_language = ?", models.SourceLanguageEnglish).
		Where("sentences.target_language IN ?", langs).
		Where(`NOT EXISTS (SELECT 1 FROM annotations mine
			WHERE mine.sentence_id = sentences.id AND mine.annotator_id = ? AND mine.status <> ?)`,
			userID, models.AnnotationDeleted).
		Group("sentences.id")
	if s.maxPerSentence > 0 {
		q = q.Having("COUNT(a.id) < ?", s.maxPerSentence)
	}

	var out []models.Sentence
	err = page.apply(q.Order("COUNT(a.id) ASC, sentences.id ASC")).
		Find(&out).Error
	return out, err
}
