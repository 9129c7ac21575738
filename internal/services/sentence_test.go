package services

import (
	"context"
	"strings"
	"testing"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSentenceValidation(t *testing.T) {
	svc := NewSentenceService(newTestDB(t), metrics.NewNop())
	ctx := context.Background()

	s, err := svc.Create(ctx, SentenceInput{
		SourceText:         "  Good morning.  ",
		MachineTranslation: "Magandang umaga.",
		TargetLanguage:     "Filipino",
	})
	require.NoError(t, err)
	assert.Equal(t, "Good morning.", s.SourceText)
	assert.Equal(t, "tagalog", s.TargetLanguage)
	assert.Equal(t, models.SourceLanguageEnglish, s.SourceLanguage)
	assert.True(t, s.IsActive)

	tests := []struct {
		name string
		in   SentenceInput
	}{
		{"missing source", SentenceInput{MachineTranslation: "x", TargetLanguage: "tagalog"}},
		{"missing translation", SentenceInput{SourceText: "x", TargetLanguage: "tagalog"}},
		{"unknown target", SentenceInput{SourceText: "x", MachineTranslation: "y", TargetLanguage: "klingon"}},
		{"non-english source", SentenceInput{SourceText: "x", MachineTranslation: "y", SourceLanguage: "cebuano", TargetLanguage: "tagalog"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestImportCSV(t *testing.T) {
	svc := NewSentenceService(newTestDB(t), metrics.NewNop())
	ctx := context.Background()

	csvData := "\ufeffSource_Text,machine_translation,target_language,domain\n" +
		"Hello.,Kumusta.,tagalog,greetings\n" +
		",Walang source.,tagalog,\n" +
		"Thank you.,Salamat.,cebuano,\n" +
		"Goodbye.,Paalam.,french,\n"

	res, err := svc.ImportCSV(ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, res.IDs, 2)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 3, res.Failed[0].Row, "rows are file line numbers")
	assert.Contains(t, res.Failed[0].Reason, "source_text")
	assert.Equal(t, 5, res.Failed[1].Row)

	list, err := svc.List(ctx, SentenceFilter{Language: "ceb"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Salamat.", list[0].MachineTranslation)

	first, err := svc.Get(ctx, res.IDs[0])
	require.NoError(t, err)
	assert.Equal(t, "greetings", first.Domain)
}

func TestImportCSVHeader(t *testing.T) {
	svc := NewSentenceService(newTestDB(t), metrics.NewNop())
	ctx := context.Background()

	_, err := svc.ImportCSV(ctx, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ImportCSV(ctx, strings.NewReader("source_text,target_language\nHello.,tagalog\n"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBulkCreateIsolatesRows(t *testing.T) {
	svc := NewSentenceService(newTestDB(t), metrics.NewNop())
	ctx := context.Background()

	_, err := svc.BulkCreate(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)

	res, err := svc.BulkCreate(ctx, []SentenceInput{
		{SourceText: "One.", MachineTranslation: "Isa.", TargetLanguage: "tagalog"},
		{SourceText: "Two.", MachineTranslation: "", TargetLanguage: "tagalog"},
		{SourceText: "Three.", MachineTranslation: "Tulo.", TargetLanguage: "cebuano"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].Row)
}

func TestSetActive(t *testing.T) {
	db := newTestDB(t)
	svc := NewSentenceService(db, metrics.NewNop())
	ctx := context.Background()
	s := createSentence(t, db, "tagalog")

	off, err := svc.SetActive(ctx, s.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	list, err := svc.List(ctx, SentenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = svc.List(ctx, SentenceFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.SetActive(ctx, 9999, true)
	assert.ErrorIs(t, err, ErrNotFound)
}
