package services

import (
	"context"
	"testing"
	"time"

	"lakra-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret", time.Hour)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{
		Email:     "Juan@Example.com",
		Username:  "juan",
		Password:  "secret123",
		Languages: []string{"Tagalog", "ilo"},
	})
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, "juan@example.com", res.User.Email)
	assert.Equal(t, models.OnboardingPending, res.User.OnboardingStatus)
	assert.Equal(t, "ilocano", res.User.PreferredLanguage, "first declared language after sorting")

	id, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)

	byEmail, err := svc.Login(ctx, "JUAN@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, byEmail.User.ID)

	byUsername, err := svc.Login(ctx, "juan", "secret123")
	require.NoError(t, err)
	assert.Len(t, byUsername.User.Languages, 2)

	_, err = svc.Login(ctx, "juan", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Register(ctx, RegisterInput{Email: "juan@example.com", Username: "juan2", Password: "secret123"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLoginRejectsInactive(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret", time.Hour)
	u := createTestUser(t, db)
	require.NoError(t, db.Model(u).Update("is_active", false).Error)

	_, err := svc.Login(context.Background(), u.Email, "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", time.Hour)

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)
	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	other := NewAuthService(nil, "other-secret", time.Hour)
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestUpdateProfileKeepsProficiency(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret", time.Hour)
	ctx := context.Background()
	u := createTestUser(t, db, withLanguages("tagalog", "cebuano"))
	require.NoError(t, db.Model(&models.UserLanguage{}).
		Where("user_id = ? AND language = ?", u.ID, "tagalog").
		Update("proficiency_passed", true).Error)

	name := "Ana"
	langs := []string{"tagalog", "ilocano"}
	updated, err := svc.UpdateProfile(ctx, u.ID, ProfilePatch{FirstName: &name, Languages: &langs})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.FirstName)
	assert.ElementsMatch(t, []string{"tagalog", "ilocano"}, updated.LanguageNames())
	for _, l := range updated.Languages {
		assert.Equal(t, l.Language == "tagalog", l.ProficiencyPassed, l.Language)
	}

	bad := []string{"klingon"}
	_, err = svc.UpdateProfile(ctx, u.ID, ProfilePatch{Languages: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	seen, err := svc.MarkGuidelinesSeen(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, seen.GuidelinesSeen)
}
