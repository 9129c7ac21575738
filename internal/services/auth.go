package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lakra-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	db          *gorm.DB
	jwtSecret   []byte
	tokenExpiry time.Duration
}

func NewAuthService(db *gorm.DB, jwtSecret string, tokenExpiry time.Duration) *AuthService {
	if tokenExpiry <= 0 {
		tokenExpiry = 24 * time.Hour
	}
	return &AuthService{db: db, jwtSecret: []byte(jwtSecret), tokenExpiry: tokenExpiry}
}

type RegisterInput struct {
	Email             string
	Username          string
	Password          string
	FirstName         string
	LastName          string
	PreferredLanguage string
	Languages         []string
}

type AuthResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := createUser(s.db.WithContext(ctx), newUserInput{
		RegisterInput: in,
		IsActive:      true,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login accepts either the email or the username as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)

	var user models.User
	err := s.db.WithContext(ctx).Preload("Languages").
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		First(&user).Error
	if err != nil {
		return nil, NewUnauthorizedError("incorrect email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, NewUnauthorizedError("incorrect email or password")
	}
	if !user.IsActive {
		return nil, NewUnauthorizedError("account is deactivated")
	}
	return s.issue(&user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, TokenType: "bearer", User: user}, nil
}

func (s *AuthService) GenerateToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.tokenExpiry).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errors.New("invalid user_id in token")
	}

	return uint(userIDFloat), nil
}

// GetUser loads a user with declared languages.
func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	return loadUser(s.db.WithContext(ctx), userID)
}

func (s *AuthService) MarkGuidelinesSeen(ctx context.Context, userID uint) (*models.User, error) {
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Where("id = ?", userID).Update("guidelines_seen", true).Error; err != nil {
		return nil, err
	}
	return loadUser(db, userID)
}

// ProfilePatch carries only the fields the caller sent.
type ProfilePatch struct {
	FirstName         *string
	LastName          *string
	PreferredLanguage *string
	Languages         *[]string
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, patch ProfilePatch) (*models.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if patch.FirstName != nil {
			updates["first_name"] = *patch.FirstName
		}
		if patch.LastName != nil {
			updates["last_name"] = *patch.LastName
		}
		if patch.PreferredLanguage != nil {
			lang := models.NormalizeLanguage(*patch.PreferredLanguage)
			if lang != "" && !models.IsTargetLanguage(lang) {
				return NewValidationError("unsupported language %q", *patch.PreferredLanguage)
			}
			updates["preferred_language"] = lang
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if patch.Languages != nil {
			return replaceLanguages(tx, userID, *patch.Languages)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loadUser(s.db.WithContext(ctx), userID)
}

type newUserInput struct {
	RegisterInput
	IsActive       bool
	IsAdmin        bool
	IsEvaluator    bool
	SkipOnboarding bool
}

func createUser(db *gorm.DB, in newUserInput) (*models.User, error) {
	langs, err := validateLanguages(in.Languages)
	if err != nil {
		return nil, err
	}
	preferred := models.NormalizeLanguage(in.PreferredLanguage)
	if preferred == "" && len(langs) > 0 {
		preferred = langs[0]
	}
	if preferred == "" {
		preferred = models.TargetLanguages[0]
	}
	if !models.IsTargetLanguage(preferred) {
		return nil, NewValidationError("unsupported language %q", in.PreferredLanguage)
	}
	if len(langs) == 0 {
		langs = []string{preferred}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		Username:          strings.TrimSpace(in.Username),
		PasswordHash:      string(hash),
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		PreferredLanguage: preferred,
		IsActive:          in.IsActive,
		IsAdmin:           in.IsAdmin,
		IsEvaluator:       in.IsEvaluator,
		SkipOnboarding:    in.SkipOnboarding,
		OnboardingStatus:  models.OnboardingPending,
	}
	if in.SkipOnboarding {
		now := time.Now()
		user.OnboardingStatus = models.OnboardingCompleted
		user.OnboardingCompletedAt = &now
	}
	for _, l := range langs {
		user.Languages = append(user.Languages, models.UserLanguage{Language: l})
	}

	if err := db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflictError("email or username already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func validateLanguages(langs []string) ([]string, error) {
	normalized := models.NormalizeLanguages(langs)
	for _, l := range normalized {
		if !models.IsTargetLanguage(l) {
			return nil, NewValidationError("unsupported language %q", l)
		}
	}
	return normalized, nil
}

// replaceLanguages keeps proficiency results for languages that stay declared.
func replaceLanguages(tx *gorm.DB, userID uint, langs []string) error {
	wanted, err := validateLanguages(langs)
	if err != nil {
		return err
	}

	var existing []models.UserLanguage
	if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[l.Language] = true
	}

	q := tx.Where("user_id = ?", userID)
	if len(wanted) > 0 {
		q = q.Where("language NOT IN ?", wanted)
	}
	if err := q.Delete(&models.UserLanguage{}).Error; err != nil {
		return err
	}
	for _, l := range wanted {
		if have[l] {
			continue
		}
		if err := tx.Create(&models.UserLanguage{UserID: userID, Language: l}).Error; err != nil {
			return err
		}
	}
	return nil
}

func loadUser(db *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := db.Preload("Languages").First(&user, userID).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &user, nil
}
