package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"
	"lakra-backend/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeScorer fails for the machine translations listed in failOn.
type fakeScorer struct {
	mu     sync.Mutex
	failOn map[string]bool
	calls  int
	score  float64
}

func (f *fakeScorer) Score(ctx context.Context, in scoring.Input) (*scoring.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn[in.MachineTranslation] {
		return nil, errors.New("model overloaded")
	}
	score := f.score
	if score == 0 {
		score = 4
	}
	return &scoring.Result{
		FluencyScore:       score,
		AdequacyScore:      score,
		OverallQuality:     score,
		QualityExplanation: "fine",
		ModelConfidence:    0.9,
	}, nil
}

func (f *fakeScorer) failFor(mt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == nil {
		f.failOn = map[string]bool{}
	}
	f.failOn[mt] = true
}

func (f *fakeScorer) heal(mt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failOn, mt)
}

func newMTQualityService(t *testing.T) (*MTQualityService, *fakeScorer, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	scorer := &fakeScorer{}
	return NewMTQualityService(db, scorer, 3, 2, metrics.NewNop()), scorer, db
}

func sentenceWithMT(t *testing.T, db *gorm.DB, mt string) *models.Sentence {
	t.Helper()
	s := createSentence(t, db, "tagalog")
	require.NoError(t, db.Model(s).Update("machine_translation", mt).Error)
	s.MachineTranslation = mt
	return s
}

func countAssessments(t *testing.T, db *gorm.DB, sentenceID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.MTQualityAssessment{}).Where("sentence_id = ?", sentenceID).Count(&n).Error)
	return n
}

func TestAssessIsIdempotentPerSentence(t *testing.T) {
	svc, scorer, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)
	s := createSentence(t, db, "tagalog")

	first, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentAssessed, first.Status)
	assert.Equal(t, 4.0, first.OverallQualityScore)
	assert.NotNil(t, first.AssessedAt)

	scorer.score = 2
	second, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "re-assessment replaces the row")
	assert.Equal(t, 2.0, second.OverallQualityScore)
	assert.Equal(t, int64(1), countAssessments(t, db, s.ID))

	_, err = svc.Assess(ctx, evaluator.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssessFailureKeepsPriorResult(t *testing.T) {
	svc, scorer, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)
	s := sentenceWithMT(t, db, "flaky")

	_, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)

	scorer.failFor("flaky")
	_, err = svc.Assess(ctx, evaluator.ID, s.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	lookup, err := svc.GetBySentence(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, lookup.Found)
	assert.Equal(t, models.AssessmentAssessed, lookup.Assessment.Status)
	assert.Equal(t, "model overloaded", lookup.Assessment.LastError)
	assert.Equal(t, int64(1), countAssessments(t, db, s.ID))

	scorer.heal("flaky")
	again, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)
	assert.Empty(t, again.LastError)
}

func TestBatchAssessPartialFailure(t *testing.T) {
	svc, scorer, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)

	s1 := sentenceWithMT(t, db, "one")
	s2 := sentenceWithMT(t, db, "two")
	s3 := sentenceWithMT(t, db, "three")
	scorer.failFor("two")

	res, err := svc.BatchAssess(ctx, evaluator.ID, []uint{s1.ID, s2.ID, s3.ID})
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 2)
	assert.Equal(t, s1.ID, res.Succeeded[0].SentenceID)
	assert.Equal(t, s3.ID, res.Succeeded[1].SentenceID)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, s2.ID, res.Failed[0].SentenceID)
	assert.Contains(t, res.Failed[0].Reason, "quality scorer failed")

	for _, id := range []uint{s1.ID, s3.ID} {
		lookup, err := svc.GetBySentence(ctx, id)
		require.NoError(t, err)
		require.True(t, lookup.Found)
		assert.Equal(t, models.AssessmentAssessed, lookup.Assessment.Status)
	}

	// Resubmitting the same batch never duplicates rows.
	scorer.heal("two")
	res, err = svc.BatchAssess(ctx, evaluator.ID, []uint{s1.ID, s2.ID, s3.ID})
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 3)
	assert.Empty(t, res.Failed)
	for _, id := range []uint{s1.ID, s2.ID, s3.ID} {
		assert.Equal(t, int64(1), countAssessments(t, db, id))
	}
}

func TestBatchAssessValidation(t *testing.T) {
	svc, scorer, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)
	s := createSentence(t, db, "tagalog")

	_, err := svc.BatchAssess(ctx, evaluator.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.BatchAssess(ctx, evaluator.ID, []uint{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrValidation, "over the batch limit")

	res, err := svc.BatchAssess(ctx, evaluator.ID, []uint{s.ID, s.ID, s.ID, s.ID})
	require.NoError(t, err, "duplicates collapse before the limit check")
	assert.Len(t, res.Succeeded, 1)
	assert.Equal(t, 1, scorer.calls)

	res, err = svc.BatchAssess(ctx, evaluator.ID, []uint{9999})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, uint(9999), res.Failed[0].SentenceID)
}

func TestUpdateAssessmentLatestReviewWins(t *testing.T) {
	svc, scorer, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)
	reviewer := createTestUser(t, db, asEvaluator)

	s := createSentence(t, db, "tagalog")
	a, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)

	score := 3.0
	reviewed, err := svc.UpdateAssessment(ctx, reviewer.ID, a.ID, MTReview{HumanOverallScore: &score, HumanFeedback: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentHumanReviewed, reviewed.Status)
	require.NotNil(t, reviewed.ReviewerID)
	assert.Equal(t, reviewer.ID, *reviewed.ReviewerID)

	later := 5.0
	reviewed, err = svc.UpdateAssessment(ctx, evaluator.ID, a.ID, MTReview{HumanOverallScore: &later, HumanFeedback: "actually great"})
	require.NoError(t, err)
	assert.Equal(t, 5.0, *reviewed.HumanOverallScore)
	assert.Equal(t, "actually great", reviewed.HumanFeedback)
	assert.Equal(t, evaluator.ID, *reviewed.ReviewerID)

	bad := 7.0
	_, err = svc.UpdateAssessment(ctx, evaluator.ID, a.ID, MTReview{HumanFluencyScore: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateAssessment(ctx, evaluator.ID, 9999, MTReview{HumanOverallScore: &score})
	assert.ErrorIs(t, err, ErrNotFound)

	// A sentence whose only assessment attempt failed is still pending.
	p := sentenceWithMT(t, db, "broken")
	scorer.failFor("broken")
	_, err = svc.Assess(ctx, evaluator.ID, p.ID)
	require.Error(t, err)
	lookup, err := svc.GetBySentence(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, lookup.Found)
	_, err = svc.UpdateAssessment(ctx, evaluator.ID, lookup.Assessment.ID, MTReview{HumanOverallScore: &score})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReassessClearsHumanReview(t *testing.T) {
	svc, _, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)
	s := createSentence(t, db, "tagalog")

	a, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)
	score := 2.0
	_, err = svc.UpdateAssessment(ctx, evaluator.ID, a.ID, MTReview{HumanOverallScore: &score})
	require.NoError(t, err)

	again, err := svc.Assess(ctx, evaluator.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentAssessed, again.Status)
	assert.Nil(t, again.HumanOverallScore)
	assert.Nil(t, again.ReviewerID)
}

func TestGetBySentenceNotFound(t *testing.T) {
	svc, _, db := newMTQualityService(t)
	s := createSentence(t, db, "tagalog")

	lookup, err := svc.GetBySentence(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, lookup.Found)
	assert.Nil(t, lookup.Assessment)
}

func TestListPendingAssessments(t *testing.T) {
	svc, _, db := newMTQualityService(t)
	ctx := context.Background()
	evaluator := createTestUser(t, db, asEvaluator)
	admin := createTestUser(t, db, asAdmin, withLanguages("ilocano"))

	done := createSentence(t, db, "tagalog")
	open := createSentence(t, db, "tagalog")
	other := createSentence(t, db, "cebuano")
	_, err := svc.Assess(ctx, evaluator.ID, done.ID)
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx, evaluator.ID, Page{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, open.ID, pending[0].ID)

	pending, err = svc.ListPending(ctx, admin.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, pending, 2, "admins see every language")
	assert.Equal(t, other.ID, pending[1].ID)

	mine, err := svc.ListMine(ctx, evaluator.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.ListAll(ctx, models.AssessmentAssessed, Page{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
