package services

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"lakra-backend/internal/database"
	"lakra-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

var userSeq atomic.Int64

type userOpt func(*newUserInput)

func asEvaluator(in *newUserInput) { in.IsEvaluator = true }
func asAdmin(in *newUserInput)     { in.IsAdmin = true }
func qualified(in *newUserInput)   { in.SkipOnboarding = true }

func withLanguages(langs ...string) userOpt {
	return func(in *newUserInput) { in.Languages = langs }
}

func createTestUser(t *testing.T, db *gorm.DB, opts ...userOpt) *models.User {
	t.Helper()
	n := userSeq.Add(1)
	in := newUserInput{
		RegisterInput: RegisterInput{
			Email:     fmt.Sprintf("user%d@example.com", n),
			Username:  fmt.Sprintf("user%d", n),
			Password:  "secret123",
			Languages: []string{"tagalog"},
		},
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&in)
	}
	u, err := createUser(db, in)
	require.NoError(t, err)
	return u
}

func createSentence(t *testing.T, db *gorm.DB, target string) *models.Sentence {
	t.Helper()
	s := &models.Sentence{
		SourceText:         "The weather is beautiful today.",
		MachineTranslation: "Ang panahon ay maganda ngayon.",
		TargetLanguage:     target,
		IsActive:           true,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func intPtr(v int) *int { return &v }

func annotationFor(sentenceID uint) AnnotationInput {
	return AnnotationInput{
		SentenceID:     sentenceID,
		FluencyScore:   intPtr(4),
		AdequacyScore:  intPtr(5),
		OverallQuality: intPtr(4),
		FinalForm:      "Maganda ang panahon ngayon.",
	}
}

func evaluationFor(annotationID uint) EvaluationInput {
	return EvaluationInput{
		AnnotationID:           annotationID,
		AnnotationQualityScore: intPtr(4),
		AccuracyScore:          intPtr(4),
		CompletenessScore:      intPtr(5),
		OverallEvaluationScore: intPtr(4),
		Feedback:               "Good work",
	}
}
