package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"lakra-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService holds the admin operations on accounts.
type UserService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, log: slog.Default().With("service", "users")}
}

type AdminUserInput struct {
	Email             string   `json:"email" binding:"required,email"`
	Username          string   `json:"username" binding:"required,min=3"`
	Password          string   `json:"password" binding:"required,min=6"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	PreferredLanguage string   `json:"preferred_language"`
	Languages         []string `json:"languages"`
	IsAdmin           bool     `json:"is_admin"`
	IsEvaluator       bool     `json:"is_evaluator"`
	SkipOnboarding    bool     `json:"skip_onboarding"`
}

// Create adds an active account. SkipOnboarding makes every declared language
// immediately eligible.
func (s *UserService) Create(ctx context.Context, in AdminUserInput) (*models.User, error) {
	user, err := createUser(s.db.WithContext(ctx), newUserInput{
		RegisterInput: RegisterInput{
			Email:             in.Email,
			Username:          in.Username,
			Password:          in.Password,
			FirstName:         in.FirstName,
			LastName:          in.LastName,
			PreferredLanguage: in.PreferredLanguage,
			Languages:         in.Languages,
		},
		IsActive:       true,
		IsAdmin:        in.IsAdmin,
		IsEvaluator:    in.IsEvaluator,
		SkipOnboarding: in.SkipOnboarding,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user created by admin", "user_id", user.ID, "skip_onboarding", in.SkipOnboarding)
	return loadUser(s.db.WithContext(ctx), user.ID)
}

type UserFilter struct {
	Search string
	Role   string
	Page   Page
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := s.db.WithContext(ctx).Preload("Languages").Order("id ASC")
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("email LIKE ? OR username LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
	}
	switch f.Role {
	case "admin":
		q = q.Where("is_admin = ?", true)
	case "evaluator":
		q = q.Where("is_evaluator = ?", true)
	case "inactive":
		q = q.Where("is_active = ?", false)
	}
	var out []models.User
	err := f.Page.apply(q).Find(&out).Error
	return out, err
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx), id)
}

type AdminUserPatch struct {
	FirstName         *string   `json:"first_name"`
	LastName          *string   `json:"last_name"`
	PreferredLanguage *string   `json:"preferred_language"`
	Languages         *[]string `json:"languages"`
	IsActive          *bool     `json:"is_active"`
	IsAdmin           *bool     `json:"is_admin"`
	IsEvaluator       *bool     `json:"is_evaluator"`
	SkipOnboarding    *bool     `json:"skip_onboarding"`
}

func (s *UserService) Update(ctx context.Context, actorID, id uint, patch AdminUserPatch) (*models.User, error) {
	if actorID == id && ((patch.IsActive != nil && !*patch.IsActive) || (patch.IsAdmin != nil && !*patch.IsAdmin)) {
		return nil, NewForbiddenError("you cannot deactivate or demote your own account")
	}
	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadUser(tx, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.FirstName != nil {
			updates["first_name"] = *patch.FirstName
		}
		if patch.LastName != nil {
			updates["last_name"] = *patch.LastName
		}
		if patch.PreferredLanguage != nil {
			lang := models.NormalizeLanguage(*patch.PreferredLanguage)
			if !models.IsTargetLanguage(lang) {
				return NewValidationError("unsupported language %q", *patch.PreferredLanguage)
			}
			updates["preferred_language"] = lang
		}
		for col, v := range map[string]*bool{
			"is_active":       patch.IsActive,
			"is_admin":        patch.IsAdmin,
			"is_evaluator":    patch.IsEvaluator,
			"skip_onboarding": patch.SkipOnboarding,
		} {
			if v != nil {
				updates[col] = *v
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if patch.Languages != nil {
			return replaceLanguages(tx, id, *patch.Languages)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loadUser(db, id)
}

func (s *UserService) ToggleEvaluator(ctx context.Context, id uint) (*models.User, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.User{}).Where("id = ?", id).
		Update("is_evaluator", gorm.Expr("NOT is_evaluator"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewNotFoundError("user")
	}
	return loadUser(db, id)
}

func (s *UserService) Deactivate(ctx context.Context, actorID, id uint) (*models.User, error) {
	if actorID == id {
		return nil, NewForbiddenError("you cannot deactivate your own account")
	}
	db := s.db.WithContext(ctx)
	res := db.Model(&models.User{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewNotFoundError("user")
	}
	s.log.Info("user deactivated", "user_id", id, "actor_id", actorID)
	return loadUser(db, id)
}

func (s *UserService) ResetPassword(ctx context.Context, id uint, password string) error {
	if len(password) < 6 {
		return NewValidationError("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", string(hash))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError("user")
	}
	return nil
}

// Delete removes an account that has no work attached. Accounts with annotations,
// evaluations, assessments or test history must be deactivated instead.
func (s *UserService) Delete(ctx context.Context, actorID, id uint) error {
	if actorID == id {
		return NewForbiddenError("you cannot delete your own account")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadUser(tx, id); err != nil {
			return err
		}

		refs := []struct {
			what  string
			model interface{}
			where string
		}{
			{"annotations", &models.Annotation{}, "annotator_id = @id"},
			{"evaluations", &models.Evaluation{}, "evaluator_id = @id"},
			{"MT assessments", &models.MTQualityAssessment{}, "requested_by = @id OR reviewer_id = @id"},
			{"onboarding tests", &models.OnboardingTest{}, "user_id = @id"},
		}
		for _, r := range refs {
			var n int64
			if err := tx.Model(r.model).Where(r.where, sql.Named("id", id)).Count(&n).Error; err != nil {
				return fmt.Errorf("count %s: %w", r.what, err)
			}
			if n > 0 {
				return NewInvalidStateError("user has %d %s; deactivate the account instead", n, r.what)
			}
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.UserLanguage{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return err
		}
		s.log.Info("user deleted", "user_id", id, "actor_id", actorID)
		return nil
	})
}
