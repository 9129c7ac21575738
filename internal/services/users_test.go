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

func TestAdminCreateUser(t *testing.T) {
	svc := NewUserService(newTestDB(t))
	ctx := context.Background()

	u, err := svc.Create(ctx, AdminUserInput{
		Email:          "Maria@Example.com",
		Username:       "maria",
		Password:       "secret123",
		Languages:      []string{"ceb", "tagalog"},
		IsEvaluator:    true,
		SkipOnboarding: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.True(t, u.IsEvaluator)
	assert.Equal(t, models.OnboardingCompleted, u.OnboardingStatus)
	assert.ElementsMatch(t, []string{"cebuano", "tagalog"}, u.LanguageNames())

	_, err = svc.Create(ctx, AdminUserInput{Email: "maria@example.com", Username: "other", Password: "secret123"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, AdminUserInput{Email: "x@example.com", Username: "xuser", Password: "secret123", Languages: []string{"klingon"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	admin := createTestUser(t, db, asAdmin)
	createTestUser(t, db, asEvaluator)
	createTestUser(t, db)

	all, err := svc.List(ctx, UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	admins, err := svc.List(ctx, UserFilter{Role: "admin"})
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)

	found, err := svc.List(ctx, UserFilter{Search: admin.Username})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestUpdateUserGuardsSelf(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()
	admin := createTestUser(t, db, asAdmin)
	other := createTestUser(t, db)

	off := false
	_, err := svc.Update(ctx, admin.ID, admin.ID, AdminUserPatch{IsAdmin: &off})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Deactivate(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	on := true
	langs := []string{"ilocano"}
	u, err := svc.Update(ctx, admin.ID, other.ID, AdminUserPatch{IsEvaluator: &on, Languages: &langs})
	require.NoError(t, err)
	assert.True(t, u.IsEvaluator)
	assert.Equal(t, []string{"ilocano"}, u.LanguageNames())

	u, err = svc.ToggleEvaluator(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, u.IsEvaluator)

	u, err = svc.Deactivate(ctx, admin.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	_, err = svc.ToggleEvaluator(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetPassword(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	auth := NewAuthService(db, "test-secret", 0)
	ctx := context.Background()
	u := createTestUser(t, db)

	assert.ErrorIs(t, svc.ResetPassword(ctx, u.ID, "123"), ErrValidation)
	require.NoError(t, svc.ResetPassword(ctx, u.ID, "new-password"))

	_, err := auth.Login(ctx, u.Email, "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Login(ctx, u.Email, "new-password")
	assert.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	annotations := NewAnnotationService(db, storage.NewMemoryStore(), 1<<20, metrics.NewNop())
	ctx := context.Background()
	admin := createTestUser(t, db, asAdmin)
	idle := createTestUser(t, db)
	busy := createTestUser(t, db, qualified)

	s := createSentence(t, db, "tagalog")
	_, err := annotations.Create(ctx, busy.ID, annotationFor(s.ID))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, admin.ID, admin.ID), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, admin.ID, busy.ID), ErrInvalidState)

	require.NoError(t, svc.Delete(ctx, admin.ID, idle.ID))
	_, err = svc.Get(ctx, idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var langs int64
	require.NoError(t, db.Model(&models.UserLanguage{}).Where("user_id = ?", idle.ID).Count(&langs).Error)
	assert.Zero(t, langs)
}
