package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"lakra-backend/internal/models"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// StatsService computes read-only aggregates. Platform-wide numbers are cached for a
// short TTL, so they may trail concurrent writes.
type StatsService struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewStatsService(db *gorm.DB, ttl time.Duration) *StatsService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsService{db: db, cache: cache.New(ttl, 2*ttl)}
}

// cached returns the stored value for key or computes and stores it.
func cached[T any](s *StatsService, key string, compute func() (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(T), nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	s.cache.SetDefault(key, v)
	return v, nil
}

// Invalidate drops every cached aggregate.
func (s *StatsService) Invalidate() {
	s.cache.Flush()
}

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return round2(*v)
}

type AdminStats struct {
	TotalUsers           int64            `json:"total_users"`
	ActiveUsers          int64            `json:"active_users"`
	Evaluators           int64            `json:"evaluators"`
	TotalSentences       int64            `json:"total_sentences"`
	ActiveSentences      int64            `json:"active_sentences"`
	TotalAnnotations     int64            `json:"total_annotations"`
	CompletedAnnotations int64            `json:"completed_annotations"`
	DeletedAnnotations   int64            `json:"deleted_annotations"`
	TotalEvaluations     int64            `json:"total_evaluations"`
	TotalAssessments     int64            `json:"total_assessments"`
	HumanReviewed        int64            `json:"human_reviewed_assessments"`
	CompletionRate       float64          `json:"completion_rate"`
	SentencesByLanguage  map[string]int64 `json:"sentences_by_language"`
}

func (s *StatsService) AdminStats(ctx context.Context) (*AdminStats, error) {
	return cached(s, "admin_stats", func() (*AdminStats, error) {
		db := s.db.WithContext(ctx)
		st := &AdminStats{}
		live := []models.AnnotationStatus{models.AnnotationSubmitted, models.AnnotationEvaluated, models.AnnotationArchived}

		counts := []struct {
			dst *int64
			q   *gorm.DB
		}{
			{&st.TotalUsers, db.Model(&models.User{})},
			{&st.ActiveUsers, db.Model(&models.User{}).Where("is_active = ?", true)},
			{&st.Evaluators, db.Model(&models.User{}).Where("is_evaluator = ?", true)},
			{&st.TotalSentences, db.Model(&models.Sentence{})},
			{&st.ActiveSentences, db.Model(&models.Sentence{}).Where("is_active = ?", true)},
			{&st.TotalAnnotations, db.Model(&models.Annotation{}).Where("status IN ?", live)},
			{&st.CompletedAnnotations, db.Model(&models.Annotation{}).Where("status IN ?", live[1:])},
			{&st.DeletedAnnotations, db.Model(&models.Annotation{}).Where("status = ?", models.AnnotationDeleted)},
			{&st.TotalEvaluations, db.Model(&models.Evaluation{})},
			{&st.TotalAssessments, db.Model(&models.MTQualityAssessment{})},
			{&st.HumanReviewed, db.Model(&models.MTQualityAssessment{}).Where("status = ?", models.AssessmentHumanReviewed)},
		}
		for _, c := range counts {
			if err := c.q.Count(c.dst).Error; err != nil {
				return nil, fmt.Errorf("count: %w", err)
			}
		}

		var covered int64
		if err := db.Model(&models.Sentence{}).
			Where("is_active = ?", true).
			Where("EXISTS (SELECT 1 FROM annotations a WHERE a.sentence_id = sentences.id AND a.status IN ?)", live).
			Count(&covered).Error; err != nil {
			return nil, err
		}
		st.CompletionRate = ratio(covered, st.ActiveSentences)

		byLang, err := s.sentenceCounts(db)
		if err != nil {
			return nil, err
		}
		st.SentencesByLanguage = byLang
		return st, nil
	})
}

// SentenceCountsByLanguage counts active sentences per target language.
func (s *StatsService) SentenceCountsByLanguage(ctx context.Context) (map[string]int64, error) {
	return cached(s, "sentence_counts", func() (map[string]int64, error) {
		return s.sentenceCounts(s.db.WithContext(ctx))
	})
}

func (s *StatsService) sentenceCounts(db *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		TargetLanguage string
		Count          int64
	}
	if err := db.Model(&models.Sentence{}).
		Select("target_language, COUNT(*) AS count").
		Where("is_active = ?", true).
		Group("target_language").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(models.TargetLanguages))
	for _, l := range models.TargetLanguages {
		out[l] = 0
	}
	for _, r := range rows {
		out[r.TargetLanguage] = r.Count
	}
	return out, nil
}

type UserStats struct {
	TotalAnnotations     int64   `json:"total_annotations"`
	EvaluatedAnnotations int64   `json:"evaluated_annotations"`
	AverageFluency       float64 `json:"average_fluency"`
	AverageAdequacy      float64 `json:"average_adequacy"`
	AverageOverall       float64 `json:"average_overall"`
	TotalTimeSpent       int64   `json:"total_time_spent_seconds"`
	EvaluationsReceived  int64   `json:"evaluations_received"`
	AverageEvaluation    float64 `json:"average_evaluation_score"`
}

func (s *StatsService) UserStats(ctx context.Context, userID uint) (*UserStats, error) {
	db := s.db.WithContext(ctx)
	var row struct {
		Total     int64
		Evaluated int64
		Fluency   *float64
		Adequacy  *float64
		Overall   *float64
		TimeSpent *int64
	}
	err := db.Model(&models.Annotation{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status IN ('evaluated', 'archived') THEN 1 ELSE 0 END), 0) AS evaluated,
			AVG(fluency_score) AS fluency, AVG(adequacy_score) AS adequacy,
			AVG(overall_quality) AS overall, SUM(time_spent_seconds) AS time_spent`).
		Where("annotator_id = ? AND status <> ?", userID, models.AnnotationDeleted).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var ev struct {
		Received int64
		Average  *float64
	}
	err = db.Model(&models.Evaluation{}).
		Select("COUNT(*) AS received, AVG(evaluations.overall_evaluation_score) AS average").
		Joins("JOIN annotations ON annotations.id = evaluations.annotation_id").
		Where("annotations.annotator_id = ? AND evaluations.annotation_deleted = ?", userID, false).
		Scan(&ev).Error
	if err != nil {
		return nil, err
	}

	st := &UserStats{
		TotalAnnotations:     row.Total,
		EvaluatedAnnotations: row.Evaluated,
		AverageFluency:       deref(row.Fluency),
		AverageAdequacy:      deref(row.Adequacy),
		AverageOverall:       deref(row.Overall),
		EvaluationsReceived:  ev.Received,
		AverageEvaluation:    deref(ev.Average),
	}
	if row.TimeSpent != nil {
		st.TotalTimeSpent = *row.TimeSpent
	}
	return st, nil
}

type EvaluatorStats struct {
	TotalEvaluations     int64   `json:"total_evaluations"`
	CompletedEvaluations int64   `json:"completed_evaluations"`
	PendingEvaluations   int64   `json:"pending_evaluations"`
	AverageTimeSeconds   float64 `json:"average_time_per_evaluation"`
	AverageOverallScore  float64 `json:"average_overall_score"`
}

func (s *StatsService) EvaluatorStats(ctx context.Context, evaluatorID uint) (*EvaluatorStats, error) {
	db := s.db.WithContext(ctx)
	var row struct {
		Total     int64
		Completed int64
		AvgTime   *float64
		AvgScore  *float64
	}
	err := db.Model(&models.Evaluation{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
			AVG(time_spent_seconds) AS avg_time, AVG(overall_evaluation_score) AS avg_score`,
			models.EvaluationCompleted).
		Where("evaluator_id = ?", evaluatorID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var pending int64
	err = db.Model(&models.Annotation{}).
		Where("status IN ?", []models.AnnotationStatus{models.AnnotationSubmitted, models.AnnotationEvaluated}).
		Where("annotator_id <> ?", evaluatorID).
		Where("NOT EXISTS (SELECT 1 FROM evaluations e WHERE e.annotation_id = annotations.id AND e.evaluator_id = ?)", evaluatorID).
		Count(&pending).Error
	if err != nil {
		return nil, err
	}

	return &EvaluatorStats{
		TotalEvaluations:     row.Total,
		CompletedEvaluations: row.Completed,
		PendingEvaluations:   pending,
		AverageTimeSeconds:   deref(row.AvgTime),
		AverageOverallScore:  deref(row.AvgScore),
	}, nil
}

type MTEvaluatorStats struct {
	TotalAssessments       int64   `json:"total_assessments"`
	HumanReviewed          int64   `json:"human_reviewed"`
	AverageFluency         float64 `json:"average_fluency_score"`
	AverageAdequacy        float64 `json:"average_adequacy_score"`
	AverageOverall         float64 `json:"average_overall_score"`
	TotalSyntaxErrors      int     `json:"total_syntax_errors"`
	TotalSemanticErrors    int     `json:"total_semantic_errors"`
	AverageModelConfidence float64 `json:"average_model_confidence"`
	HumanAgreementRate     float64 `json:"human_agreement_rate"`
	AverageTimeSeconds     float64 `json:"average_time_per_assessment"`
}

// MTEvaluatorStats covers assessments the actor requested or reviewed. A human score within
// one point of the automated overall score counts as agreement.
func (s *StatsService) MTEvaluatorStats(ctx context.Context, actorID uint) (*MTEvaluatorStats, error) {
	var rows []models.MTQualityAssessment
	if err := s.db.WithContext(ctx).
		Where("requested_by = ? OR reviewer_id = ?", actorID, actorID).
		Where("status <> ?", models.AssessmentPending).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	st := &MTEvaluatorStats{TotalAssessments: int64(len(rows)), HumanAgreementRate: 1}
	if len(rows) == 0 {
		return st, nil
	}

	var fluency, adequacy, overall, confidence, timeSpent float64
	var timed, compared, agreed int
	for _, a := range rows {
		fluency += a.FluencyScore
		adequacy += a.AdequacyScore
		overall += a.OverallQualityScore
		confidence += a.ModelConfidence
		st.TotalSyntaxErrors += len(a.SyntaxErrors)
		st.TotalSemanticErrors += len(a.SemanticErrors)
		if a.Status == models.AssessmentHumanReviewed {
			st.HumanReviewed++
		}
		if a.TimeSpentSeconds != nil {
			timeSpent += float64(*a.TimeSpentSeconds)
			timed++
		}
		if a.HumanOverallScore != nil {
			compared++
			if math.Abs(*a.HumanOverallScore-a.OverallQualityScore) <= 1 {
				agreed++
			}
		}
	}
	n := float64(len(rows))
	st.AverageFluency = round2(fluency / n)
	st.AverageAdequacy = round2(adequacy / n)
	st.AverageOverall = round2(overall / n)
	st.AverageModelConfidence = round2(confidence / n)
	if timed > 0 {
		st.AverageTimeSeconds = round2(timeSpent / float64(timed))
	}
	if compared > 0 {
		st.HumanAgreementRate = ratio(int64(agreed), int64(compared))
	}
	return st, nil
}

type DayCount struct {
	Date       string `json:"date"`
	Count      int64  `json:"count"`
	Cumulative int64  `json:"cumulative,omitempty"`
}

// UserGrowth reports new users per day over the last days, with a running total that
// includes users created before the window.
func (s *StatsService) UserGrowth(ctx context.Context, days int) ([]DayCount, error) {
	days = clampDays(days)
	return cached(s, fmt.Sprintf("user_growth:%d", days), func() ([]DayCount, error) {
		db := s.db.WithContext(ctx)
		since := windowStart(days)

		var before int64
		if err := db.Model(&models.User{}).Where("created_at < ?", since).Count(&before).Error; err != nil {
			return nil, err
		}
		var created []time.Time
		if err := db.Model(&models.User{}).Where("created_at >= ?", since).Pluck("created_at", &created).Error; err != nil {
			return nil, err
		}

		out := bucketByDay(created, since, days)
		running := before
		for i := range out {
			running += out[i].Count
			out[i].Cumulative = running
		}
		return out, nil
	})
}

type DailyActivity struct {
	Date        string `json:"date"`
	Annotations int64  `json:"annotations"`
	Evaluations int64  `json:"evaluations"`
	Assessments int64  `json:"assessments"`
}

func (s *StatsService) DailyActivity(ctx context.Context, days int) ([]DailyActivity, error) {
	days = clampDays(days)
	return cached(s, fmt.Sprintf("daily_activity:%d", days), func() ([]DailyActivity, error) {
		db := s.db.WithContext(ctx)
		since := windowStart(days)

		var annotations, evaluations, assessments []time.Time
		if err := db.Model(&models.Annotation{}).
			Where("created_at >= ? AND status <> ?", since, models.AnnotationDeleted).
			Pluck("created_at", &annotations).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Evaluation{}).Where("created_at >= ?", since).
			Pluck("created_at", &evaluations).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.MTQualityAssessment{}).Where("assessed_at >= ?", since).
			Pluck("assessed_at", &assessments).Error; err != nil {
			return nil, err
		}

		a := bucketByDay(annotations, since, days)
		e := bucketByDay(evaluations, since, days)
		m := bucketByDay(assessments, since, days)
		out := make([]DailyActivity, days)
		for i := range out {
			out[i] = DailyActivity{Date: a[i].Date, Annotations: a[i].Count, Evaluations: e[i].Count, Assessments: m[i].Count}
		}
		return out, nil
	})
}

type ErrorTypeCount struct {
	ErrorType models.HighlightErrorType `json:"error_type"`
	Count     int64                     `json:"count"`
}

// ErrorDistribution counts highlight error types across live annotations.
func (s *StatsService) ErrorDistribution(ctx context.Context) ([]ErrorTypeCount, error) {
	return cached(s, "error_distribution", func() ([]ErrorTypeCount, error) {
		var rows []ErrorTypeCount
		err := s.db.WithContext(ctx).Model(&models.TextHighlight{}).
			Select("text_highlights.error_type AS error_type, COUNT(*) AS count").
			Joins("JOIN annotations ON annotations.id = text_highlights.annotation_id").
			Where("annotations.status <> ?", models.AnnotationDeleted).
			Group("text_highlights.error_type").
			Order("count DESC, error_type ASC").
			Scan(&rows).Error
		return rows, err
	})
}

type LanguageActivity struct {
	Language    string `json:"language"`
	Sentences   int64  `json:"sentences"`
	Annotations int64  `json:"annotations"`
	Evaluations int64  `json:"evaluations"`
	Annotators  int64  `json:"annotators"`
}

func (s *StatsService) LanguageActivity(ctx context.Context) ([]LanguageActivity, error) {
	return cached(s, "language_activity", func() ([]LanguageActivity, error) {
		db := s.db.WithContext(ctx)
		byLang := make(map[string]*LanguageActivity)
		get := func(lang string) *LanguageActivity {
			if byLang[lang] == nil {
				byLang[lang] = &LanguageActivity{Language: lang}
			}
			return byLang[lang]
		}
		for _, l := range models.TargetLanguages {
			get(l)
		}

		var sentences []struct {
			TargetLanguage string
			Count          int64
		}
		if err := db.Model(&models.Sentence{}).
			Select("target_language, COUNT(*) AS count").
			Group("target_language").Scan(&sentences).Error; err != nil {
			return nil, err
		}
		for _, r := range sentences {
			get(r.TargetLanguage).Sentences = r.Count
		}

		var annotations []struct {
			TargetLanguage string
			Count          int64
			Annotators     int64
		}
		if err := db.Model(&models.Annotation{}).
			Select("sentences.target_language AS target_language, COUNT(*) AS count, COUNT(DISTINCT annotations.annotator_id) AS annotators").
			Joins("JOIN sentences ON sentences.id = annotations.sentence_id").
			Where("annotations.status <> ?", models.AnnotationDeleted).
			Group("sentences.target_language").Scan(&annotations).Error; err != nil {
			return nil, err
		}
		for _, r := range annotations {
			la := get(r.TargetLanguage)
			la.Annotations = r.Count
			la.Annotators = r.Annotators
		}

		var evaluations []struct {
			TargetLanguage string
			Count          int64
		}
		if err := db.Model(&models.Evaluation{}).
			Select("sentences.target_language AS target_language, COUNT(*) AS count").
			Joins("JOIN annotations ON annotations.id = evaluations.annotation_id").
			Joins("JOIN sentences ON sentences.id = annotations.sentence_id").
			Group("sentences.target_language").Scan(&evaluations).Error; err != nil {
			return nil, err
		}
		for _, r := range evaluations {
			get(r.TargetLanguage).Evaluations = r.Count
		}

		out := make([]LanguageActivity, 0, len(byLang))
		for _, la := range byLang {
			out = append(out, *la)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
		return out, nil
	})
}

type UserRoles struct {
	Admins     int64 `json:"admins"`
	Evaluators int64 `json:"evaluators"`
	Annotators int64 `json:"annotators"`
	Inactive   int64 `json:"inactive"`
}

func (s *StatsService) UserRoles(ctx context.Context) (*UserRoles, error) {
	return cached(s, "user_roles", func() (*UserRoles, error) {
		var r UserRoles
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Select(`COALESCE(SUM(CASE WHEN is_admin = ? THEN 1 ELSE 0 END), 0) AS admins,
				COALESCE(SUM(CASE WHEN is_evaluator = ? AND is_admin = ? THEN 1 ELSE 0 END), 0) AS evaluators,
				COALESCE(SUM(CASE WHEN is_evaluator = ? AND is_admin = ? THEN 1 ELSE 0 END), 0) AS annotators,
				COALESCE(SUM(CASE WHEN is_active = ? THEN 1 ELSE 0 END), 0) AS inactive`,
				true, true, false, false, false, false).
			Scan(&r).Error
		return &r, err
	})
}

type QualityMetrics struct {
	AverageFluency         float64 `json:"average_fluency"`
	AverageAdequacy        float64 `json:"average_adequacy"`
	AverageOverallQuality  float64 `json:"average_overall_quality"`
	AverageEvaluationScore float64 `json:"average_evaluation_score"`
	AverageMTOverall       float64 `json:"average_mt_overall"`
	AverageModelConfidence float64 `json:"average_model_confidence"`
}

func (s *StatsService) QualityMetrics(ctx context.Context) (*QualityMetrics, error) {
	return cached(s, "quality_metrics", func() (*QualityMetrics, error) {
		db := s.db.WithContext(ctx)
		var a struct {
			Fluency  *float64
			Adequacy *float64
			Overall  *float64
		}
		if err := db.Model(&models.Annotation{}).
			Select("AVG(fluency_score) AS fluency, AVG(adequacy_score) AS adequacy, AVG(overall_quality) AS overall").
			Where("status <> ?", models.AnnotationDeleted).
			Scan(&a).Error; err != nil {
			return nil, err
		}
		var e struct{ Average *float64 }
		if err := db.Model(&models.Evaluation{}).
			Select("AVG(overall_evaluation_score) AS average").
			Where("annotation_deleted = ?", false).
			Scan(&e).Error; err != nil {
			return nil, err
		}
		var m struct {
			Overall    *float64
			Confidence *float64
		}
		if err := db.Model(&models.MTQualityAssessment{}).
			Select("AVG(overall_quality_score) AS overall, AVG(model_confidence) AS confidence").
			Where("status <> ?", models.AssessmentPending).
			Scan(&m).Error; err != nil {
			return nil, err
		}
		return &QualityMetrics{
			AverageFluency:         deref(a.Fluency),
			AverageAdequacy:        deref(a.Adequacy),
			AverageOverallQuality:  deref(a.Overall),
			AverageEvaluationScore: deref(e.Average),
			AverageMTOverall:       deref(m.Overall),
			AverageModelConfidence: deref(m.Confidence),
		}, nil
	})
}

func clampDays(days int) int {
	if days <= 0 {
		return 30
	}
	return min(days, 365)
}

func windowStart(days int) time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
}

// bucketByDay counts timestamps per UTC day, one entry per day from since.
func bucketByDay(ts []time.Time, since time.Time, days int) []DayCount {
	out := make([]DayCount, days)
	for i := range out {
		out[i].Date = since.AddDate(0, 0, i).Format(time.DateOnly)
	}
	for _, t := range ts {
		if t.Before(since) {
			continue
		}
		i := int(t.UTC().Sub(since).Hours() / 24)
		if i >= 0 && i < days {
			out[i].Count++
		}
	}
	return out
}
