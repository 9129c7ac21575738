package services

import (
	"context"
	"testing"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"
	"lakra-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evaluationFixture struct {
	evals       *EvaluationService
	annotations *AnnotationService
	annotator   *models.User
	evaluator   *models.User
	annotation  *models.Annotation
}

func newEvaluationFixture(t *testing.T) *evaluationFixture {
	t.Helper()
	db := newTestDB(t)
	m := metrics.NewNop()
	f := &evaluationFixture{
		evals:       NewEvaluationService(db, m),
		annotations: NewAnnotationService(db, storage.NewMemoryStore(), 1<<20, m),
		annotator:   createTestUser(t, db, qualified, asEvaluator),
		evaluator:   createTestUser(t, db, asEvaluator),
	}
	s := createSentence(t, db, "tagalog")
	a, err := f.annotations.Create(context.Background(), f.annotator.ID, annotationFor(s.ID))
	require.NoError(t, err)
	f.annotation = a
	return f
}

func TestCreateEvaluation(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()

	ev, err := f.evals.Create(ctx, f.evaluator.ID, evaluationFor(f.annotation.ID))
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationCompleted, ev.Status)
	require.NotNil(t, ev.Annotation)
	assert.Equal(t, models.AnnotationEvaluated, ev.Annotation.Status, "annotation moves to evaluated in the same transaction")

	_, err = f.evals.Create(ctx, f.evaluator.ID, evaluationFor(f.annotation.ID))
	assert.ErrorIs(t, err, ErrDuplicateEvaluation)

	second := createTestUser(t, f.evals.db, asEvaluator)
	_, err = f.evals.Create(ctx, second.ID, evaluationFor(f.annotation.ID))
	require.NoError(t, err, "several evaluators may review one annotation")
}

func TestCreateEvaluationForbidden(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()

	_, err := f.evals.Create(ctx, f.annotator.ID, evaluationFor(f.annotation.ID))
	assert.ErrorIs(t, err, ErrForbidden, "no self-review")

	plain := createTestUser(t, f.evals.db, qualified)
	_, err = f.evals.Create(ctx, plain.ID, evaluationFor(f.annotation.ID))
	assert.ErrorIs(t, err, ErrForbidden, "evaluator role required")

	_, err = f.evals.Create(ctx, f.evaluator.ID, evaluationFor(9999))
	assert.ErrorIs(t, err, ErrNotFound)

	in := evaluationFor(f.annotation.ID)
	in.AccuracyScore = nil
	_, err = f.evals.Create(ctx, f.evaluator.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.annotations.Delete(ctx, f.annotator.ID, f.annotation.ID))
	_, err = f.evals.Create(ctx, f.evaluator.ID, evaluationFor(f.annotation.ID))
	assert.ErrorIs(t, err, ErrNotFound, "deleted annotations cannot be evaluated")
}

func TestUpdateEvaluation(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()

	ev, err := f.evals.Create(ctx, f.evaluator.ID, evaluationFor(f.annotation.ID))
	require.NoError(t, err)

	feedback := "Revised"
	updated, err := f.evals.Update(ctx, f.evaluator.ID, ev.ID, EvaluationPatch{Feedback: &feedback, OverallEvaluationScore: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, "Revised", updated.Feedback)
	assert.Equal(t, 5, *updated.OverallEvaluationScore)
	assert.Equal(t, 4, *updated.AccuracyScore)

	other := createTestUser(t, f.evals.db, asEvaluator)
	_, err = f.evals.Update(ctx, other.ID, ev.ID, EvaluationPatch{Feedback: &feedback})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.evals.Update(ctx, f.evaluator.ID, ev.ID, EvaluationPatch{AccuracyScore: intPtr(9)})
	assert.ErrorIs(t, err, ErrValidation)

	admin := createTestUser(t, f.evals.db, asAdmin)
	require.NoError(t, f.annotations.Delete(ctx, admin.ID, f.annotation.ID))
	_, err = f.evals.Update(ctx, f.evaluator.ID, ev.ID, EvaluationPatch{Feedback: &feedback})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestListPendingEvaluations(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()

	pending, err := f.evals.ListPending(ctx, f.evaluator.ID, Page{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.annotation.ID, pending[0].ID)

	own, err := f.evals.ListPending(ctx, f.annotator.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, own, "own annotations are never pending for review")

	_, err = f.evals.Create(ctx, f.evaluator.ID, evaluationFor(f.annotation.ID))
	require.NoError(t, err)
	pending, err = f.evals.ListPending(ctx, f.evaluator.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	mine, err := f.evals.ListMine(ctx, f.evaluator.ID, Page{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Annotation)
	assert.NotNil(t, mine[0].Annotation.Sentence)
}

func TestListForAnnotationPermissions(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()
	_, err := f.evals.Create(ctx, f.evaluator.ID, evaluationFor(f.annotation.ID))
	require.NoError(t, err)

	list, err := f.evals.ListForAnnotation(ctx, f.annotator.ID, f.annotation.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	stranger := createTestUser(t, f.evals.db, qualified)
	_, err = f.evals.ListForAnnotation(ctx, stranger.ID, f.annotation.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
