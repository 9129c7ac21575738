package models

import (
	"time"

	"gorm.io/gorm"
)

type OnboardingStatus string

const (
	OnboardingPending    OnboardingStatus = "pending"
	OnboardingInProgress OnboardingStatus = "in_progress"
	OnboardingCompleted  OnboardingStatus = "completed"
	OnboardingFailed     OnboardingStatus = "failed"
)

type User struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	Email                 string           `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username              string           `gorm:"size:100;uniqueIndex;not null" json:"username"`
	PasswordHash          string           `gorm:"size:255;not null" json:"-"`
	FirstName             string           `gorm:"size:100" json:"first_name"`
	LastName              string           `gorm:"size:100" json:"last_name"`
	PreferredLanguage     string           `gorm:"size:50" json:"preferred_language"`
	IsActive              bool             `gorm:"not null" json:"is_active"`
	IsAdmin               bool             `gorm:"not null" json:"is_admin"`
	IsEvaluator           bool             `gorm:"not null" json:"is_evaluator"`
	GuidelinesSeen        bool             `gorm:"not null" json:"guidelines_seen"`
	SkipOnboarding        bool             `gorm:"not null" json:"skip_onboarding"`
	OnboardingStatus      OnboardingStatus `gorm:"size:20;not null" json:"onboarding_status"`
	OnboardingScore       *float64         `json:"onboarding_score,omitempty"`
	OnboardingCompletedAt *time.Time       `json:"onboarding_completed_at,omitempty"`
	Languages             []UserLanguage   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"languages"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.PreferredLanguage = NormalizeLanguage(u.PreferredLanguage)
	if u.OnboardingStatus == "" {
		u.OnboardingStatus = OnboardingPending
	}
	return nil
}

// HasCompletedOnboarding is true for users that passed a test or were exempted by an admin.
func (u *User) HasCompletedOnboarding() bool {
	return u.SkipOnboarding || u.OnboardingStatus == OnboardingCompleted
}

func (u *User) LanguageNames() []string {
	names := make([]string, 0, len(u.Languages))
	for _, l := range u.Languages {
		names = append(names, l.Language)
	}
	return names
}

// UserLanguage is a declared language plus the proficiency result for it.
type UserLanguage struct {
	ID                uint       `gorm:"primaryKey" json:"-"`
	UserID            uint       `gorm:"not null;uniqueIndex:idx_user_language" json:"-"`
	Language          string     `gorm:"size:50;not null;uniqueIndex:idx_user_language" json:"language"`
	ProficiencyPassed bool       `gorm:"not null" json:"proficiency_passed"`
	ProficiencyScore  *float64   `json:"proficiency_score,omitempty"`
	AssessedAt        *time.Time `json:"assessed_at,omitempty"`
}

func (l *UserLanguage) BeforeSave(tx *gorm.DB) error {
	l.Language = NormalizeLanguage(l.Language)
	return nil
}
