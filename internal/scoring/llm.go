package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lakra-backend/internal/models"

	"golang.org/x/time/rate"
)

// LLMScorer asks an OpenAI-compatible chat completion endpoint to grade a translation.
type LLMScorer struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	apiURL     string
	model      string
}

func NewLLMScorer(apiKey, apiURL, model string, ratePerSec float64) *LLMScorer {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &LLMScorer{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		apiKey:     apiKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		model:      model,
	}
}

func (s *LLMScorer) IsAvailable() bool {
	return s.apiKey != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type llmAssessment struct {
	FluencyScore          float64          `json:"fluency_score"`
	AdequacyScore         float64          `json:"adequacy_score"`
	OverallQuality        float64          `json:"overall_quality"`
	SyntaxErrors          []models.MTError `json:"syntax_errors"`
	SemanticErrors        []models.MTError `json:"semantic_errors"`
	QualityExplanation    string           `json:"quality_explanation"`
	CorrectionSuggestions []string         `json:"correction_suggestions"`
	Confidence            float64          `json:"confidence"`
}

const systemPrompt = `You evaluate machine translations from English into Philippine languages. Respond with ONLY valid JSON (no markdown, no code fences) in this format:

{
  "fluency_score": 1-5,
  "adequacy_score": 1-5,
  "overall_quality": 1-5,
  "syntax_errors": [{"error_type": "grammar|word_order|punctuation|capitalization", "severity": "minor|major|critical", "start_position": 0, "end_position": 0, "text_span": "", "description": "", "suggested_fix": ""}],
  "semantic_errors": [{"error_type": "mistranslation|omission|addition|wrong_sense", "severity": "minor|major|critical", "start_position": 0, "end_position": 0, "text_span": "", "description": "", "suggested_fix": ""}],
  "quality_explanation": "short explanation",
  "correction_suggestions": ["improved translation"],
  "confidence": 0.0-1.0
}

Positions are character offsets into the machine translation.`

func (s *LLMScorer) Score(ctx context.Context, in Input) (*Result, error) {
	if !s.IsAvailable() {
		return nil, fmt.Errorf("MT scorer is not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	start := time.Now()

	prompt := fmt.Sprintf("Source (%s): %s\nMachine translation (%s): %s",
		in.SourceLanguage, in.SourceText, in.TargetLanguage, in.MachineTranslation)
	jsonBody, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from scorer")
	}

	var a llmAssessment
	if err := json.Unmarshal([]byte(cleanJSONContent(chatResp.Choices[0].Message.Content)), &a); err != nil {
		return nil, fmt.Errorf("scorer returned invalid JSON: %w", err)
	}

	res := &Result{
		FluencyScore:          clampScore(a.FluencyScore),
		AdequacyScore:         clampScore(a.AdequacyScore),
		OverallQuality:        clampScore(a.OverallQuality),
		SyntaxErrors:          a.SyntaxErrors,
		SemanticErrors:        a.SemanticErrors,
		QualityExplanation:    a.QualityExplanation,
		CorrectionSuggestions: a.CorrectionSuggestions,
		ModelConfidence:       min(1, max(0, a.Confidence)),
		ProcessingTime:        time.Since(start),
	}
	return res, nil
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
