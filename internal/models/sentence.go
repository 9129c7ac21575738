package models

import (
	"time"

	"gorm.io/gorm"
)

type Sentence struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SourceText         string    `gorm:"type:text;not null" json:"source_text"`
	MachineTranslation string    `gorm:"type:text;not null" json:"machine_translation"`
	SourceLanguage     string    `gorm:"size:50;not null" json:"source_language"`
	TargetLanguage     string    `gorm:"size:50;not null;index:idx_sentence_target_active" json:"target_language"`
	Domain             string    `gorm:"size:100" json:"domain,omitempty"`
	IsActive           bool      `gorm:"not null;index:idx_sentence_target_active" json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

func (s *Sentence) BeforeSave(tx *gorm.DB) error {
	s.SourceLanguage = NormalizeLanguage(s.SourceLanguage)
	if s.SourceLanguage == "" {
		s.SourceLanguage = SourceLanguageEnglish
	}
	s.TargetLanguage = NormalizeLanguage(s.TargetLanguage)
	return nil
}

func (s *Sentence) Pair() LanguagePair {
	return NewLanguagePair(s.SourceLanguage, s.TargetLanguage)
}
