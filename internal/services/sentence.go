package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"lakra-backend/internal/metrics"
	"lakra-backend/internal/models"

	"gorm.io/gorm"
)

type SentenceService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewSentenceService(db *gorm.DB, m *metrics.Metrics) *SentenceService {
	return &SentenceService{db: db, metrics: m, log: slog.Default().With("service", "sentence")}
}

type SentenceInput struct {
	SourceText         string `json:"source_text"`
	MachineTranslation string `json:"machine_translation"`
	SourceLanguage     string `json:"source_language"`
	TargetLanguage     string `json:"target_language"`
	Domain             string `json:"domain"`
}

func (in *SentenceInput) build() (*models.Sentence, error) {
	s := &models.Sentence{
		SourceText:         strings.TrimSpace(in.SourceText),
		MachineTranslation: strings.TrimSpace(in.MachineTranslation),
		SourceLanguage:     models.NormalizeLanguage(in.SourceLanguage),
		TargetLanguage:     models.NormalizeLanguage(in.TargetLanguage),
		Domain:             strings.TrimSpace(in.Domain),
		IsActive:           true,
	}
	if s.SourceText == "" {
		return nil, NewValidationError("source_text is required")
	}
	if s.MachineTranslation == "" {
		return nil, NewValidationError("machine_translation is required")
	}
	if s.SourceLanguage == "" {
		s.SourceLanguage = models.SourceLanguageEnglish
	}
	if s.SourceLanguage != models.SourceLanguageEnglish {
		return nil, NewValidationError("unsupported source language %q", in.SourceLanguage)
	}
	if !models.IsTargetLanguage(s.TargetLanguage) {
		return nil, NewValidationError("unsupported target language %q", in.TargetLanguage)
	}
	return s, nil
}

func (s *SentenceService) Create(ctx context.Context, in SentenceInput) (*models.Sentence, error) {
	sentence, err := in.build()
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(sentence).Error; err != nil {
		return nil, fmt.Errorf("create sentence: %w", err)
	}
	return sentence, nil
}

type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported int          `json:"imported"`
	IDs      []uint       `json:"ids"`
	Failed   []RowFailure `json:"failed"`
}

// BulkCreate stores each sentence independently. Rows are numbered from 1.
func (s *SentenceService) BulkCreate(ctx context.Context, inputs []SentenceInput) (*ImportResult, error) {
	if len(inputs) == 0 {
		return nil, NewValidationError("no sentences given")
	}
	res := &ImportResult{IDs: []uint{}, Failed: []RowFailure{}}
	for i := range inputs {
		s.importRow(ctx, res, i+1, &inputs[i])
	}
	s.log.Info("bulk sentence import", "imported", res.Imported, "failed", len(res.Failed))
	return res, nil
}

var csvColumns = []string{"source_text", "machine_translation", "source_language", "target_language", "domain"}

// ImportCSV reads a CSV with a header row. Row numbers in failures are file line numbers,
// so the first data row is 2. Rows before a failing row stay committed.
func (s *SentenceService) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewValidationError("CSV file is empty")
		}
		return nil, NewValidationError("invalid CSV header: %v", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"source_text", "machine_translation", "target_language"} {
		if _, ok := cols[required]; !ok {
			return nil, NewValidationError("CSV header must include %s (columns: %s)", required, strings.Join(csvColumns, ", "))
		}
	}

	res := &ImportResult{IDs: []uint{}, Failed: []RowFailure{}}
	row := 1
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		record, err := reader.Read()
		row++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Failed = append(res.Failed, RowFailure{Row: row, Reason: err.Error()})
			s.metrics.SentencesImported.WithLabelValues("failed").Inc()
			continue
		}
		field := func(name string) string {
			if i, ok := cols[name]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}
		in := SentenceInput{
			SourceText:         field("source_text"),
			MachineTranslation: field("machine_translation"),
			SourceLanguage:     field("source_language"),
			TargetLanguage:     field("target_language"),
			Domain:             field("domain"),
		}
		s.importRow(ctx, res, row, &in)
	}

	s.log.Info("csv sentence import", "imported", res.Imported, "failed", len(res.Failed))
	return res, nil
}

func (s *SentenceService) importRow(ctx context.Context, res *ImportResult, row int, in *SentenceInput) {
	sentence, err := s.Create(ctx, *in)
	if err != nil {
		reason := err.Error()
		if se, ok := AsServiceError(err); ok {
			reason = se.Message
		}
		res.Failed = append(res.Failed, RowFailure{Row: row, Reason: reason})
		s.metrics.SentencesImported.WithLabelValues("failed").Inc()
		return
	}
	res.Imported++
	res.IDs = append(res.IDs, sentence.ID)
	s.metrics.SentencesImported.WithLabelValues("imported").Inc()
}

func (s *SentenceService) Get(ctx context.Context, id uint) (*models.Sentence, error) {
	var sentence models.Sentence
	if err := s.db.WithContext(ctx).First(&sentence, id).Error; err != nil {
		return nil, notFoundOr(err, "sentence")
	}
	return &sentence, nil
}

type SentenceFilter struct {
	Language        string
	IncludeInactive bool
	Page            Page
}

func (s *SentenceService) List(ctx context.Context, f SentenceFilter) ([]models.Sentence, error) {
	q := s.db.WithContext(ctx).Order("id ASC")
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if lang := models.NormalizeLanguage(f.Language); lang != "" {
		q = q.Where("target_language = ?", lang)
	}
	var out []models.Sentence
	err := f.Page.apply(q).Find(&out).Error
	return out, err
}

// SetActive is the only way a sentence leaves the corpus; rows are never hard-deleted.
func (s *SentenceService) SetActive(ctx context.Context, id uint, active bool) (*models.Sentence, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Sentence{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, NewNotFoundError("sentence")
	}
	return s.Get(ctx, id)
}
