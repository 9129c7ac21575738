package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"
	"lakra-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnnotationService(t *testing.T) (*AnnotationService, *storage.MemoryStore) {
	t.Helper()
	blobs := storage.NewMemoryStore()
	return NewAnnotationService(newTestDB(t), blobs, 1<<20, metrics.NewNop()), blobs
}

func TestCreateAnnotationDuplicate(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	user := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	a, err := svc.Create(ctx, user.ID, annotationFor(s.ID))
	require.NoError(t, err)
	assert.Equal(t, models.AnnotationSubmitted, a.Status)
	require.NotNil(t, a.Sentence)

	again := annotationFor(s.ID)
	again.Comments = "second try"
	_, err = svc.Create(ctx, user.ID, again)
	assert.ErrorIs(t, err, ErrDuplicateAnnotation)
}

func TestCreateAnnotationConcurrentDuplicate(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	user := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, user.ID, annotationFor(s.ID))
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateAnnotation)
	}
	assert.Equal(t, 1, created)
}

func TestCreateAnnotationGate(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	s := createSentence(t, svc.db, "tagalog")

	pending := createTestUser(t, svc.db)
	_, err := svc.Create(ctx, pending.ID, annotationFor(s.ID))
	assert.ErrorIs(t, err, ErrIneligible)

	cebuano := createTestUser(t, svc.db, qualified, withLanguages("cebuano"))
	_, err = svc.Create(ctx, cebuano.ID, annotationFor(s.ID))
	assert.ErrorIs(t, err, ErrIneligible)

	ok := createTestUser(t, svc.db, qualified)
	_, err = svc.Create(ctx, ok.ID, annotationFor(9999))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.db.Model(s).Update("is_active", false).Error)
	_, err = svc.Create(ctx, ok.ID, annotationFor(s.ID))
	assert.ErrorIs(t, err, ErrNotFound, "inactive sentences cannot be annotated")
}

func TestCreateAnnotationValidation(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	user := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	in := annotationFor(s.ID)
	in.FluencyScore = intPtr(6)
	_, err := svc.Create(ctx, user.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, user.ID, AnnotationInput{SentenceID: s.ID})
	assert.ErrorIs(t, err, ErrValidation, "empty content")

	in = annotationFor(s.ID)
	in.Highlights = []HighlightInput{{HighlightedText: "Ang", StartIndex: 0, EndIndex: 500}}
	_, err = svc.Create(ctx, user.ID, in)
	assert.ErrorIs(t, err, ErrValidation)

	in.Highlights = []HighlightInput{{HighlightedText: "Ang", StartIndex: 0, EndIndex: 3, ErrorType: "XX"}}
	_, err = svc.Create(ctx, user.ID, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAnnotationHighlights(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	user := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	in := annotationFor(s.ID)
	h := HighlightInput{HighlightedText: "panahon", StartIndex: 4, EndIndex: 11, Comment: "word choice", ErrorType: "ma_se"}
	in.Highlights = []HighlightInput{h, h, {HighlightedText: "Ang", StartIndex: 0, EndIndex: 3}}

	a, err := svc.Create(ctx, user.ID, in)
	require.NoError(t, err)
	require.Len(t, a.Highlights, 2, "exact repeats are dropped")
	assert.Equal(t, models.ErrorMajorSemantic, a.Highlights[0].ErrorType)
	assert.Equal(t, models.ErrorMinorSemantic, a.Highlights[1].ErrorType, "default error type")
	assert.Equal(t, "machine", a.Highlights[1].TextType)

	replaced := []HighlightInput{{HighlightedText: "ngayon", StartIndex: 23, EndIndex: 29, ErrorType: "MI_ST"}}
	a, err = svc.Update(ctx, user.ID, a.ID, AnnotationPatch{Highlights: &replaced})
	require.NoError(t, err)
	require.Len(t, a.Highlights, 1)
	assert.Equal(t, "ngayon", a.Highlights[0].HighlightedText)

	comment := "only the comment changes"
	a, err = svc.Update(ctx, user.ID, a.ID, AnnotationPatch{Comments: &comment})
	require.NoError(t, err)
	assert.Len(t, a.Highlights, 1, "nil highlights keep the stored ones")
	assert.Equal(t, comment, a.Comments)
	assert.Equal(t, 4, *a.FluencyScore)
}

func TestUpdateAnnotationRules(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	owner := createTestUser(t, svc.db, qualified)
	other := createTestUser(t, svc.db, qualified, asEvaluator)
	s := createSentence(t, svc.db, "tagalog")

	a, err := svc.Create(ctx, owner.ID, annotationFor(s.ID))
	require.NoError(t, err)

	text := "changed"
	_, err = svc.Update(ctx, other.ID, a.ID, AnnotationPatch{FinalForm: &text})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(ctx, owner.ID, a.ID, AnnotationPatch{OverallQuality: intPtr(0)})
	assert.ErrorIs(t, err, ErrValidation)

	evals := NewEvaluationService(svc.db, metrics.NewNop())
	_, err = evals.Create(ctx, other.ID, evaluationFor(a.ID))
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner.ID, a.ID, AnnotationPatch{FinalForm: &text})
	assert.ErrorIs(t, err, ErrForbidden, "evaluated annotations are frozen")

	_, err = svc.Update(ctx, owner.ID, 9999, AnnotationPatch{FinalForm: &text})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAnnotationKeepsEvaluations(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	owner := createTestUser(t, svc.db, qualified)
	evaluator := createTestUser(t, svc.db, asEvaluator)
	admin := createTestUser(t, svc.db, asAdmin)
	s := createSentence(t, svc.db, "tagalog")
	evals := NewEvaluationService(svc.db, metrics.NewNop())

	a, err := svc.Create(ctx, owner.ID, annotationFor(s.ID))
	require.NoError(t, err)
	ev, err := evals.Create(ctx, evaluator.ID, evaluationFor(a.ID))
	require.NoError(t, err)

	err = svc.Delete(ctx, owner.ID, a.ID)
	assert.ErrorIs(t, err, ErrForbidden, "owner cannot delete an evaluated annotation")

	require.NoError(t, svc.Delete(ctx, admin.ID, a.ID))

	mine, err := svc.ListMine(ctx, owner.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, mine)

	history, err := evals.ListForAnnotation(ctx, evaluator.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ev.ID, history[0].ID)
	assert.True(t, history[0].AnnotationDeleted)

	var stored models.Annotation
	require.NoError(t, svc.db.First(&stored, a.ID).Error)
	assert.Equal(t, models.AnnotationDeleted, stored.Status)
	assert.NotNil(t, stored.DeletedAt)

	assert.ErrorIs(t, svc.Delete(ctx, admin.ID, a.ID), ErrNotFound)

	// The owner can annotate the sentence again after deletion.
	_, err = svc.Create(ctx, owner.ID, annotationFor(s.ID))
	require.NoError(t, err)
}

func TestDeleteAnnotationOwnership(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	owner := createTestUser(t, svc.db, qualified)
	stranger := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	a, err := svc.Create(ctx, owner.ID, annotationFor(s.ID))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, stranger.ID, a.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, owner.ID, a.ID))

	_, err = svc.Get(ctx, owner.ID, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveAnnotation(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	owner := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	a, err := svc.Create(ctx, owner.ID, annotationFor(s.ID))
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnnotationArchived, archived.Status)

	_, err = svc.Archive(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.Archive(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachVoiceRecording(t *testing.T) {
	svc, blobs := newAnnotationService(t)
	ctx := context.Background()
	owner := createTestUser(t, svc.db, qualified)
	s := createSentence(t, svc.db, "tagalog")

	a, err := svc.Create(ctx, owner.ID, annotationFor(s.ID))
	require.NoError(t, err)

	audio := strings.Repeat("x", 4500)
	first, err := svc.AttachVoiceRecording(ctx, owner.ID, a.ID, VoiceUpload{
		Filename: "take1.webm", ContentType: "audio/webm", Size: int64(len(audio)), Body: strings.NewReader(audio),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Duration)
	assert.True(t, blobs.Has(first.AudioURL))

	second, err := svc.AttachVoiceRecording(ctx, owner.ID, a.ID, VoiceUpload{
		Filename: "take2.wav", ContentType: "audio/wav", Size: 10, Body: strings.NewReader("0123456789"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Duration, "duration is at least one second")
	assert.True(t, strings.HasSuffix(second.AudioURL, ".wav"))
	assert.False(t, blobs.Has(first.AudioURL), "previous recording removed")

	stored, err := svc.Get(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, second.AudioURL, stored.VoiceRecordingURL)
	assert.Equal(t, models.AnnotationSubmitted, stored.Status, "state unchanged")

	_, err = svc.AttachVoiceRecording(ctx, owner.ID, a.ID, VoiceUpload{
		Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hi"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	big := strings.Repeat("x", 2<<20)
	_, err = svc.AttachVoiceRecording(ctx, owner.ID, a.ID, VoiceUpload{
		Filename: "big.webm", ContentType: "audio/webm", Size: -1, Body: strings.NewReader(big),
	})
	assert.ErrorIs(t, err, ErrValidation, "size limit enforced while streaming")

	stranger := createTestUser(t, svc.db, qualified)
	_, err = svc.AttachVoiceRecording(ctx, stranger.ID, a.ID, VoiceUpload{
		Filename: "x.webm", ContentType: "audio/webm", Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListAllAnnotations(t *testing.T) {
	svc, _ := newAnnotationService(t)
	ctx := context.Background()
	u := createTestUser(t, svc.db, qualified, withLanguages("tagalog", "cebuano"))
	tl := createSentence(t, svc.db, "tagalog")
	ceb := createSentence(t, svc.db, "cebuano")

	_, err := svc.Create(ctx, u.ID, annotationFor(tl.ID))
	require.NoError(t, err)
	c, err := svc.Create(ctx, u.ID, annotationFor(ceb.ID))
	require.NoError(t, err)

	all, err := svc.ListAll(ctx, AnnotationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyCeb, err := svc.ListAll(ctx, AnnotationFilter{Language: "Cebuano"})
	require.NoError(t, err)
	require.Len(t, onlyCeb, 1)
	assert.Equal(t, c.ID, onlyCeb[0].ID)
	require.NotNil(t, onlyCeb[0].Annotator)

	bySentence, err := svc.ListBySentence(ctx, tl.ID)
	require.NoError(t, err)
	assert.Len(t, bySentence, 1)
}
