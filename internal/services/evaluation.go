package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"

	"gorm.io/gorm"
)

// EvaluationService handles peer review of annotations.
type EvaluationService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewEvaluationService(db *gorm.DB, m *metrics.Metrics) *EvaluationService {
	return &EvaluationService{db: db, metrics: m, log: slog.Default().With("service", "evaluation")}
}

type EvaluationInput struct {
	AnnotationID           uint   `json:"annotation_id" binding:"required"`
	AnnotationQualityScore *int   `json:"annotation_quality_score"`
	AccuracyScore          *int   `json:"accuracy_score"`
	CompletenessScore      *int   `json:"completeness_score"`
	OverallEvaluationScore *int   `json:"overall_evaluation_score"`
	Feedback               string `json:"feedback"`
	EvaluationNotes        string `json:"evaluation_notes"`
	TimeSpentSeconds       *int   `json:"time_spent_seconds"`
}

type EvaluationPatch struct {
	AnnotationQualityScore *int    `json:"annotation_quality_score"`
	AccuracyScore          *int    `json:"accuracy_score"`
	CompletenessScore      *int    `json:"completeness_score"`
	OverallEvaluationScore *int    `json:"overall_evaluation_score"`
	Feedback               *string `json:"feedback"`
	EvaluationNotes        *string `json:"evaluation_notes"`
	TimeSpentSeconds       *int    `json:"time_spent_seconds"`
}

func canEvaluate(u *models.User) bool {
	return u.IsActive && (u.IsEvaluator || u.IsAdmin)
}

func (s *EvaluationService) Create(ctx context.Context, evaluatorID uint, in EvaluationInput) (*models.Evaluation, error) {
	db := s.db.WithContext(ctx)
	evaluator, err := loadUser(db, evaluatorID)
	if err != nil {
		return nil, err
	}
	if !canEvaluate(evaluator) {
		s.metrics.EvaluationsTotal.WithLabelValues("forbidden").Inc()
		return nil, NewForbiddenError("evaluator role required")
	}

	scores := map[string]*int{
		"annotation_quality_score": in.AnnotationQualityScore,
		"accuracy_score":           in.AccuracyScore,
		"completeness_score":       in.CompletenessScore,
		"overall_evaluation_score": in.OverallEvaluationScore,
	}
	for name, v := range scores {
		if v == nil {
			return nil, NewValidationError("%s is required", name)
		}
	}
	if err := validScores(scores); err != nil {
		return nil, err
	}

	ev := models.Evaluation{
		AnnotationID:           in.AnnotationID,
		EvaluatorID:            evaluatorID,
		AnnotationQualityScore: in.AnnotationQualityScore,
		AccuracyScore:          in.AccuracyScore,
		CompletenessScore:      in.CompletenessScore,
		OverallEvaluationScore: in.OverallEvaluationScore,
		Feedback:               in.Feedback,
		EvaluationNotes:        in.EvaluationNotes,
		TimeSpentSeconds:       in.TimeSpentSeconds,
		Status:                 models.EvaluationCompleted,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var a models.Annotation
		if err := tx.First(&a, in.AnnotationID).Error; err != nil {
			return notFoundOr(err, "annotation")
		}
		if a.Status == models.AnnotationDeleted {
			return NewNotFoundError("annotation")
		}
		if a.AnnotatorID == evaluatorID {
			return NewForbiddenError("you cannot evaluate your own annotation")
		}

		if err := tx.Create(&ev).Error; err != nil {
			if isUniqueViolation(err) {
				return NewDuplicateEvaluationError()
			}
			return fmt.Errorf("create evaluation: %w", err)
		}

		return tx.Model(&models.Annotation{}).
			Where("id = ? AND status = ?", a.ID, models.AnnotationSubmitted).
			Updates(map[string]interface{}{"status": models.AnnotationEvaluated, "updated_at": time.Now()}).Error
	})
	if err != nil {
		switch {
		case isKind(err, KindDuplicateEvaluation):
			s.metrics.EvaluationsTotal.WithLabelValues("duplicate").Inc()
		case isKind(err, KindForbidden):
			s.metrics.EvaluationsTotal.WithLabelValues("forbidden").Inc()
		}
		return nil, err
	}

	s.metrics.EvaluationsTotal.WithLabelValues("created").Inc()
	s.log.Info("evaluation created", "evaluation_id", ev.ID, "annotation_id", ev.AnnotationID, "evaluator_id", evaluatorID)
	return s.load(db, ev.ID)
}

func (s *EvaluationService) Update(ctx context.Context, evaluatorID, id uint, patch EvaluationPatch) (*models.Evaluation, error) {
	if err := validScores(map[string]*int{
		"annotation_quality_score": patch.AnnotationQualityScore,
		"accuracy_score":           patch.AccuracyScore,
		"completeness_score":       patch.CompletenessScore,
		"overall_evaluation_score": patch.OverallEvaluationScore,
	}); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		var ev models.Evaluation
		if err := tx.Preload("Annotation").First(&ev, id).Error; err != nil {
			return notFoundOr(err, "evaluation")
		}
		if ev.EvaluatorID != evaluatorID {
			return NewForbiddenError("you can only update your own evaluations")
		}
		if ev.AnnotationDeleted || ev.Annotation == nil || ev.Annotation.Status == models.AnnotationDeleted {
			return NewInvalidStateError("the evaluated annotation was deleted")
		}

		updates := map[string]interface{}{"updated_at": time.Now()}
		for col, v := range map[string]*int{
			"annotation_quality_score": patch.AnnotationQualityScore,
			"accuracy_score":           patch.AccuracyScore,
			"completeness_score":       patch.CompletenessScore,
			"overall_evaluation_score": patch.OverallEvaluationScore,
			"time_spent_seconds":       patch.TimeSpentSeconds,
		} {
			if v != nil {
				updates[col] = *v
			}
		}
		if patch.Feedback != nil {
			updates["feedback"] = *patch.Feedback
		}
		if patch.EvaluationNotes != nil {
			updates["evaluation_notes"] = *patch.EvaluationNotes
		}

		res := tx.Model(&models.Evaluation{}).
			Where("id = ? AND annotation_deleted = ?", id, false).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return NewInvalidStateError("the evaluated annotation was deleted")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(db, id)
}

func (s *EvaluationService) ListMine(ctx context.Context, evaluatorID uint, page Page) ([]models.Evaluation, error) {
	var out []models.Evaluation
	q := s.db.WithContext(ctx).
		Preload("Annotation").Preload("Annotation.Sentence").
		Where("evaluator_id = ?", evaluatorID).
		Order("created_at DESC, id DESC")
	err := page.apply(q).Find(&out).Error
	return out, err
}

// ListPending returns live annotations by other users that the evaluator has not reviewed.
func (s *EvaluationService) ListPending(ctx context.Context, evaluatorID uint, page Page) ([]models.Annotation, error) {
	var out []models.Annotation
	q := s.db.WithContext(ctx).
		Preload("Sentence").Preload("Annotator").Preload("Highlights").
		Where("status IN ?", []models.AnnotationStatus{models.AnnotationSubmitted, models.AnnotationEvaluated}).
		Where("annotator_id <> ?", evaluatorID).
		Where("NOT EXISTS (SELECT 1 FROM evaluations e WHERE e.annotation_id = annotations.id AND e.evaluator_id = ?)", evaluatorID).
		Order("created_at ASC, id ASC")
	err := page.apply(q).Find(&out).Error
	return out, err
}

// ListForAnnotation includes evaluations of deleted annotations.
func (s *EvaluationService) ListForAnnotation(ctx context.Context, actorID, annotationID uint) ([]models.Evaluation, error) {
	db := s.db.WithContext(ctx)
	actor, err := loadUser(db, actorID)
	if err != nil {
		return nil, err
	}
	var a models.Annotation
	if err := db.First(&a, annotationID).Error; err != nil {
		return nil, notFoundOr(err, "annotation")
	}
	if a.AnnotatorID != actorID && !canEvaluate(actor) {
		return nil, NewForbiddenError("not authorized to view these evaluations")
	}

	var out []models.Evaluation
	err = db.Preload("Evaluator").
		Where("annotation_id = ?", annotationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (s *EvaluationService) load(db *gorm.DB, id uint) (*models.Evaluation, error) {
	var ev models.Evaluation
	if err := db.Preload("Annotation").First(&ev, id).Error; err != nil {
		return nil, notFoundOr(err, "evaluation")
	}
	return &ev, nil
}
