// Package scoring holds the automated machine-translation quality scorers.
package scoring

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"lakra-backend/internal/models"
)

// Input is what a scorer sees of a sentence.
type Input struct {
	SourceText         string
	MachineTranslation string
	SourceLanguage     string
	TargetLanguage     string
}

func InputFrom(s *models.Sentence) Input {
	return Input{
		SourceText:         s.SourceText,
		MachineTranslation: s.MachineTranslation,
		SourceLanguage:     s.SourceLanguage,
		TargetLanguage:     s.TargetLanguage,
	}
}

// Result is an automated quality judgment. Scores are on a 1..5 scale.
type Result struct {
	FluencyScore          float64
	AdequacyScore         float64
	OverallQuality        float64
	SyntaxErrors          []models.MTError
	SemanticErrors        []models.MTError
	QualityExplanation    string
	CorrectionSuggestions []string
	ModelConfidence       float64
	ProcessingTime        time.Duration
}

// Scorer is the external scoring collaborator.
type Scorer interface {
	Score(ctx context.Context, in Input) (*Result, error)
}

// HeuristicScorer scores from surface features when no model is configured.
// It is deterministic for a given input.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

func (HeuristicScorer) Score(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	src := strings.Fields(in.SourceText)
	mt := strings.Fields(in.MachineTranslation)
	res := &Result{ModelConfidence: 0.5}

	if len(mt) == 0 {
		res.FluencyScore, res.AdequacyScore, res.OverallQuality = 1, 1, 1
		res.SemanticErrors = append(res.SemanticErrors, models.MTError{
			ErrorType:   "omission",
			Severity:    "critical",
			Description: "machine translation is empty",
		})
		res.QualityExplanation = "No translation was produced."
		res.ProcessingTime = time.Since(start)
		return res, nil
	}

	// Length ratio drives adequacy: large deviations usually mean omissions or additions.
	ratio := float64(len(mt)) / math.Max(1, float64(len(src)))
	adequacy := 5 - math.Min(4, math.Abs(math.Log2(ratio))*2)
	if ratio < 0.5 {
		res.SemanticErrors = append(res.SemanticErrors, models.MTError{
			ErrorType:   "omission",
			Severity:    "major",
			EndPosition: len(in.MachineTranslation),
			TextSpan:    in.MachineTranslation,
			Description: "translation is much shorter than the source",
		})
	} else if ratio > 2 {
		res.SemanticErrors = append(res.SemanticErrors, models.MTError{
			ErrorType:   "addition",
			Severity:    "minor",
			EndPosition: len(in.MachineTranslation),
			TextSpan:    in.MachineTranslation,
			Description: "translation is much longer than the source",
		})
	}

	fluency := 5.0
	for i := 1; i < len(mt); i++ {
		if strings.EqualFold(mt[i], mt[i-1]) {
			fluency--
			pos := strings.Index(in.MachineTranslation, mt[i-1]+" "+mt[i])
			res.SyntaxErrors = append(res.SyntaxErrors, models.MTError{
				ErrorType:     "word_order",
				Severity:      "minor",
				StartPosition: max(pos, 0),
				EndPosition:   max(pos, 0) + len(mt[i-1]) + 1 + len(mt[i]),
				TextSpan:      mt[i-1] + " " + mt[i],
				Description:   "repeated word",
				SuggestedFix:  mt[i],
			})
		}
	}
	if r := []rune(in.MachineTranslation); len(r) > 0 && unicode.IsLower(r[0]) {
		fluency -= 0.5
		res.SyntaxErrors = append(res.SyntaxErrors, models.MTError{
			ErrorType:   "capitalization",
			Severity:    "minor",
			EndPosition: 1,
			TextSpan:    string(r[0]),
			Description: "sentence should start with a capital letter",
		})
	}
	if endsWithPunct(in.SourceText) && !endsWithPunct(in.MachineTranslation) {
		fluency -= 0.5
		res.SyntaxErrors = append(res.SyntaxErrors, models.MTError{
			ErrorType:     "punctuation",
			Severity:      "minor",
			StartPosition: len(in.MachineTranslation),
			EndPosition:   len(in.MachineTranslation),
			Description:   "missing terminal punctuation",
		})
	}

	res.FluencyScore = clampScore(fluency)
	res.AdequacyScore = clampScore(adequacy)
	res.OverallQuality = math.Round((res.FluencyScore+res.AdequacyScore)/2*100) / 100
	res.QualityExplanation = "Heuristic estimate from length ratio, repetition, capitalization and punctuation."
	for _, e := range res.SyntaxErrors {
		if e.SuggestedFix != "" {
			res.CorrectionSuggestions = append(res.CorrectionSuggestions, e.SuggestedFix)
		}
	}
	res.ProcessingTime = time.Since(start)
	return res, nil
}

func endsWithPunct(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return strings.ContainsRune(".!?", rune(s[len(s)-1]))
}

func clampScore(v float64) float64 {
	return math.Round(math.Max(1, math.Min(5, v))*100) / 100
}
