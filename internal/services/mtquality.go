package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"
	"lakra-backend/internal/scoring"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MTQualityService runs automated machine-translation assessment and records human review.
type MTQualityService struct {
	db          *gorm.DB
	scorer      scoring.Scorer
	batchLimit  int
	concurrency int
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewMTQualityService(db *gorm.DB, scorer scoring.Scorer, batchLimit, concurrency int, m *metrics.Metrics) *MTQualityService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &MTQualityService{
		db:          db,
		scorer:      scorer,
		batchLimit:  batchLimit,
		concurrency: concurrency,
		metrics:     m,
		log:         slog.Default().With("service", "mt_quality"),
	}
}

// Assess scores a sentence and stores the result as its single assessment. Running it
// again replaces the automated result and clears any earlier human review.
func (s *MTQualityService) Assess(ctx context.Context, actorID, sentenceID uint) (*models.MTQualityAssessment, error) {
	db := s.db.WithContext(ctx)

	var sentence models.Sentence
	if err := db.First(&sentence, sentenceID).Error; err != nil {
		return nil, notFoundOr(err, "sentence")
	}

	pending := models.MTQualityAssessment{
		SentenceID:  sentenceID,
		RequestedBy: actorID,
		Status:      models.AssessmentPending,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sentence_id"}},
		DoNothing: true,
	}).Create(&pending).Error; err != nil {
		return nil, fmt.Errorf("reserve assessment: %w", err)
	}

	start := time.Now()
	res, err := s.scorer.Score(ctx, scoring.InputFrom(&sentence))
	s.metrics.ScorerLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.AssessmentsTotal.WithLabelValues("failed").Inc()
		if uerr := db.Model(&models.MTQualityAssessment{}).
			Where("sentence_id = ?", sentenceID).
			Update("last_error", err.Error()).Error; uerr != nil {
			s.log.Warn("failed to record scorer error", "sentence_id", sentenceID, "error", uerr)
		}
		s.log.Warn("mt assessment failed", "sentence_id", sentenceID, "error", err)
		return nil, NewUnavailableError("quality scorer failed", err)
	}

	now := time.Now()
	row := models.MTQualityAssessment{
		SentenceID:            sentenceID,
		RequestedBy:           actorID,
		FluencyScore:          res.FluencyScore,
		AdequacyScore:         res.AdequacyScore,
		OverallQualityScore:   res.OverallQuality,
		SyntaxErrors:          nonNilErrors(res.SyntaxErrors),
		SemanticErrors:        nonNilErrors(res.SemanticErrors),
		QualityExplanation:    res.QualityExplanation,
		CorrectionSuggestions: nonNilStrings(res.CorrectionSuggestions),
		ModelConfidence:       res.ModelConfidence,
		ProcessingTimeMS:      res.ProcessingTime.Milliseconds(),
		Status:                models.AssessmentAssessed,
		AssessedAt:            &now,
	}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sentence_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"requested_by", "fluency_score", "adequacy_score", "overall_quality_score",
			"syntax_errors", "semantic_errors", "quality_explanation", "correction_suggestions",
			"model_confidence", "processing_time_ms", "status", "last_error", "assessed_at",
			"reviewer_id", "human_fluency_score", "human_adequacy_score", "human_overall_score",
			"human_feedback", "correction_notes", "time_spent_seconds", "reviewed_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("store assessment: %w", err)
	}
	s.metrics.AssessmentsTotal.WithLabelValues("assessed").Inc()

	return s.bySentence(db, sentenceID)
}

type BatchFailure struct {
	SentenceID uint   `json:"id"`
	Reason     string `json:"reason"`
}

type BatchResult struct {
	Succeeded []models.MTQualityAssessment `json:"succeeded"`
	Failed    []BatchFailure               `json:"failed"`
}

// BatchAssess assesses each sentence independently. One failure never aborts the others,
// and items finished before a cancellation stay committed.
func (s *MTQualityService) BatchAssess(ctx context.Context, actorID uint, sentenceIDs []uint) (*BatchResult, error) {
	var ids []uint
	for _, id := range sentenceIDs {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, NewValidationError("sentence_ids must not be empty")
	}
	if len(ids) > s.batchLimit {
		return nil, NewValidationError("at most %d sentences per batch", s.batchLimit)
	}

	results := make([]*models.MTQualityAssessment, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i], errs[i] = s.Assess(ctx, actorID, id)
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{Succeeded: []models.MTQualityAssessment{}, Failed: []BatchFailure{}}
	for i, id := range ids {
		if errs[i] != nil {
			out.Failed = append(out.Failed, BatchFailure{SentenceID: id, Reason: failureReason(errs[i])})
			continue
		}
		out.Succeeded = append(out.Succeeded, *results[i])
	}

	s.log.Info("batch assessment finished",
		"actor_id", actorID, "requested", len(ids), "succeeded", len(out.Succeeded), "failed", len(out.Failed))
	return out, nil
}

func failureReason(err error) string {
	if se, ok := AsServiceError(err); ok {
		return se.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return err.Error()
}

// MTReview is a complete human review. A later review replaces the earlier one.
type MTReview struct {
	HumanFluencyScore  *float64 `json:"human_fluency_score"`
	HumanAdequacyScore *float64 `json:"human_adequacy_score"`
	HumanOverallScore  *float64 `json:"human_overall_score"`
	HumanFeedback      string   `json:"human_feedback"`
	CorrectionNotes    string   `json:"correction_notes"`
	TimeSpentSeconds   *int     `json:"time_spent_seconds"`
}

func (r *MTReview) validate() error {
	for name, v := range map[string]*float64{
		"human_fluency_score":  r.HumanFluencyScore,
		"human_adequacy_score": r.HumanAdequacyScore,
		"human_overall_score":  r.HumanOverallScore,
	} {
		if v != nil && (*v < 1 || *v > 5) {
			return NewValidationError("%s must be between 1 and 5", name)
		}
	}
	return nil
}

func (s *MTQualityService) UpdateAssessment(ctx context.Context, reviewerID, id uint, review MTReview) (*models.MTQualityAssessment, error) {
	if err := review.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	now := time.Now()
	res := db.Model(&models.MTQualityAssessment{}).
		Where("id = ? AND status IN ?", id, []models.AssessmentStatus{models.AssessmentAssessed, models.AssessmentHumanReviewed}).
		Updates(map[string]interface{}{
			"human_fluency_score":  review.HumanFluencyScore,
			"human_adequacy_score": review.HumanAdequacyScore,
			"human_overall_score":  review.HumanOverallScore,
			"human_feedback":       review.HumanFeedback,
			"correction_notes":     review.CorrectionNotes,
			"time_spent_seconds":   review.TimeSpentSeconds,
			"reviewer_id":          reviewerID,
			"reviewed_at":          now,
			"status":               models.AssessmentHumanReviewed,
			"updated_at":           now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var a models.MTQualityAssessment
		if err := db.First(&a, id).Error; err != nil {
			return nil, notFoundOr(err, "assessment")
		}
		return nil, NewInvalidStateError("assessment is %s and cannot be reviewed yet", a.Status)
	}
	s.metrics.AssessmentsTotal.WithLabelValues("reviewed").Inc()

	var a models.MTQualityAssessment
	if err := db.Preload("Sentence").First(&a, id).Error; err != nil {
		return nil, notFoundOr(err, "assessment")
	}
	return &a, nil
}

// AssessmentLookup separates "no assessment yet" from a failed lookup.
type AssessmentLookup struct {
	Found      bool                        `json:"found"`
	Assessment *models.MTQualityAssessment `json:"assessment"`
}

func (s *MTQualityService) GetBySentence(ctx context.Context, sentenceID uint) (AssessmentLookup, error) {
	a, err := s.bySentence(s.db.WithContext(ctx), sentenceID)
	if errors.Is(err, ErrNotFound) {
		return AssessmentLookup{}, nil
	}
	if err != nil {
		return AssessmentLookup{}, err
	}
	return AssessmentLookup{Found: true, Assessment: a}, nil
}

// ListPending returns active sentences that still lack a completed assessment, limited to
// the actor's declared languages unless the actor is an admin.
func (s *MTQualityService) ListPending(ctx context.Context, actorID uint, page Page) ([]models.Sentence, error) {
	db := s.db.WithContext(ctx)
	actor, err := loadUser(db, actorID)
	if err != nil {
		return nil, err
	}

	q := db.Model(&models.Sentence{}).
		Where("is_active = ?", true).
		Where(`NOT EXISTS (SELECT 1 FROM mt_quality_assessments m
			WHERE m.sentence_id = sentences.id AND m.status IN ?)`,
			[]models.AssessmentStatus{models.AssessmentAssessed, models.AssessmentHumanReviewed}).
		Order("id ASC")
	if !actor.IsAdmin {
		langs := actor.LanguageNames()
		if len(langs) == 0 {
			return nil, nil
		}
		q = q.Where("target_language IN ?", langs)
	}

	var out []models.Sentence
	err = page.apply(q).Find(&out).Error
	return out, err
}

// ListMine returns assessments the actor requested or reviewed.
func (s *MTQualityService) ListMine(ctx context.Context, actorID uint, page Page) ([]models.MTQualityAssessment, error) {
	var out []models.MTQualityAssessment
	q := s.db.WithContext(ctx).Preload("Sentence").
		Where("requested_by = ? OR reviewer_id = ?", actorID, actorID).
		Order("updated_at DESC, id DESC")
	err := page.apply(q).Find(&out).Error
	return out, err
}

func (s *MTQualityService) ListAll(ctx context.Context, status models.AssessmentStatus, page Page) ([]models.MTQualityAssessment, error) {
	var out []models.MTQualityAssessment
	q := s.db.WithContext(ctx).Preload("Sentence").Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := page.apply(q).Find(&out).Error
	return out, err
}

func (s *MTQualityService) bySentence(db *gorm.DB, sentenceID uint) (*models.MTQualityAssessment, error) {
	var a models.MTQualityAssessment
	if err := db.Preload("Sentence").Where("sentence_id = ?", sentenceID).First(&a).Error; err != nil {
		return nil, notFoundOr(err, "assessment")
	}
	return &a, nil
}

func nonNilErrors(in []models.MTError) []models.MTError {
	if in == nil {
		return []models.MTError{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
