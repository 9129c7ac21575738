package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"lakra-backend/internal/models"

	"gorm.io/gorm"
)

// ExportRow is one annotation flattened for dataset export.
type ExportRow struct {
	AnnotationID        uint                    `json:"annotation_id"`
	SentenceID          uint                    `json:"sentence_id"`
	SourceText          string                  `json:"source_text"`
	MachineTranslation  string                  `json:"machine_translation"`
	TargetLanguage      string                  `json:"target_language"`
	Domain              string                  `json:"domain,omitempty"`
	Annotator           string                  `json:"annotator"`
	FluencyScore        *int                    `json:"fluency_score"`
	AdequacyScore       *int                    `json:"adequacy_score"`
	OverallQuality      *int                    `json:"overall_quality"`
	FinalForm           string                  `json:"final_form,omitempty"`
	SuggestedCorrection string                  `json:"suggested_correction,omitempty"`
	Comments            string                  `json:"comments,omitempty"`
	Highlights          []models.TextHighlight  `json:"highlights"`
	Status              models.AnnotationStatus `json:"annotation_status"`
	EvaluationCount     int64                   `json:"evaluation_count"`
	AvgEvaluationScore  *float64                `json:"avg_evaluation_score"`
	CreatedAt           time.Time               `json:"created_at"`
}

// ErrorTypes joins the distinct highlight error types in first-seen order.
func (r *ExportRow) ErrorTypes() string {
	var seen []string
	for _, h := range r.Highlights {
		t := string(h.ErrorType)
		if !slices.Contains(seen, t) {
			seen = append(seen, t)
		}
	}
	return strings.Join(seen, ";")
}

const exportBatchSize = 200

// Export walks every matching annotation in id order. The Page of the filter is ignored.
func (s *AnnotationService) Export(ctx context.Context, f AnnotationFilter) ([]ExportRow, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Annotation{}).
		Preload("Sentence").Preload("Annotator").Preload("Highlights")
	if f.Status != "" {
		q = q.Where("annotations.status = ?", f.Status)
	} else {
		q = q.Where("annotations.status <> ?", models.AnnotationDeleted)
	}
	if lang := models.NormalizeLanguage(f.Language); lang != "" {
		q = q.Joins("JOIN sentences ON sentences.id = annotations.sentence_id").
			Where("sentences.target_language = ?", lang)
	}

	rows := []ExportRow{}
	var batch []models.Annotation
	res := q.FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
		summaries, err := evaluationSummaries(db, batch)
		if err != nil {
			return err
		}
		for i := range batch {
			rows = append(rows, exportRow(&batch[i], summaries[batch[i].ID]))
		}
		return nil
	})
	if res.Error != nil {
		return nil, res.Error
	}
	s.log.Info("annotations exported", "rows", len(rows), "status", f.Status, "language", f.Language)
	return rows, nil
}

type evaluationSummary struct {
	AnnotationID uint
	Count        int64
	AvgScore     *float64
}

func evaluationSummaries(db *gorm.DB, batch []models.Annotation) (map[uint]evaluationSummary, error) {
	ids := make([]uint, len(batch))
	for i, a := range batch {
		ids[i] = a.ID
	}
	var list []evaluationSummary
	err := db.Model(&models.Evaluation{}).
		Select("annotation_id, COUNT(*) AS count, AVG(overall_evaluation_score) AS avg_score").
		Where("annotation_id IN ?", ids).
		Group("annotation_id").
		Scan(&list).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]evaluationSummary, len(list))
	for _, sm := range list {
		if sm.AvgScore != nil {
			v := round2(*sm.AvgScore)
			sm.AvgScore = &v
		}
		out[sm.AnnotationID] = sm
	}
	return out, nil
}

func exportRow(a *models.Annotation, sm evaluationSummary) ExportRow {
	row := ExportRow{
		AnnotationID:        a.ID,
		SentenceID:          a.SentenceID,
		FluencyScore:        a.FluencyScore,
		AdequacyScore:       a.AdequacyScore,
		OverallQuality:      a.OverallQuality,
		FinalForm:           a.FinalForm,
		SuggestedCorrection: a.SuggestedCorrection,
		Comments:            a.Comments,
		Highlights:          a.Highlights,
		Status:              a.Status,
		EvaluationCount:     sm.Count,
		AvgEvaluationScore:  sm.AvgScore,
		CreatedAt:           a.CreatedAt,
	}
	if row.Highlights == nil {
		row.Highlights = []models.TextHighlight{}
	}
	if a.Sentence != nil {
		row.SourceText = a.Sentence.SourceText
		row.MachineTranslation = a.Sentence.MachineTranslation
		row.TargetLanguage = a.Sentence.TargetLanguage
		row.Domain = a.Sentence.Domain
	}
	if a.Annotator != nil {
		row.Annotator = a.Annotator.Username
	}
	return row
}
