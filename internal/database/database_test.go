package database

import (
	"path/filepath"
	"testing"

	"lakra-backend/internal/config"
	"lakra-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "sqlite:///" + filepath.Join(t.TempDir(), "nested", "lakra.db")}

	db, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	// Second run must be a no-op.
	require.NoError(t, AutoMigrate(db))

	assert.True(t, db.Migrator().HasTable(&models.Annotation{}))
	assert.True(t, db.Migrator().HasIndex(&models.Annotation{}, "idx_annotation_active"))
}

func TestActiveAnnotationIndexIgnoresDeletedRows(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "lakra.db"))
	require.NoError(t, err)

	user := models.User{Email: "a@example.com", Username: "a", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	sentence := models.Sentence{SourceText: "Hi", MachineTranslation: "Kumusta", TargetLanguage: "Tagalog", IsActive: true}
	require.NoError(t, db.Create(&sentence).Error)
	assert.Equal(t, "tagalog", sentence.TargetLanguage)
	assert.Equal(t, "en", sentence.SourceLanguage)

	first := models.Annotation{SentenceID: sentence.ID, AnnotatorID: user.ID, Status: models.AnnotationSubmitted}
	require.NoError(t, db.Create(&first).Error)

	dup := models.Annotation{SentenceID: sentence.ID, AnnotatorID: user.ID, Status: models.AnnotationSubmitted}
	require.Error(t, db.Create(&dup).Error)

	require.NoError(t, db.Model(&first).Update("status", models.AnnotationDeleted).Error)
	again := models.Annotation{SentenceID: sentence.ID, AnnotatorID: user.ID, Status: models.AnnotationSubmitted}
	require.NoError(t, db.Create(&again).Error)
}
