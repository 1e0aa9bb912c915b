package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/scomax/contact-validator/internal/ai"
	"github.com/scomax/contact-validator/internal/linkedin"
	logutil "github.com/scomax/contact-validator/internal/logger"
	"github.com/scomax/contact-validator/internal/validation"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Verifier asks Gemini for a second opinion on borderline matches. Only a
// confident negative verdict rejects a candidate.
type Verifier struct {
	generator     contentGenerator
	minConfidence float64
	logger        *zap.Logger
	maxLogLen     int
}

func NewVerifier(generator contentGenerator, logger *zap.Logger, minConfidence float64, maxLogLength int) *Verifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Verifier{
		generator:     generator,
		minConfidence: minConfidence,
		logger:        logutil.WithCommonFields(logger, "gemini", generator.Model()),
		maxLogLen:     maxLogLength,
	}
}

// Evaluate builds the prompt from the extracted positions and parses the
// model's JSON verdict.
func (v *Verifier) Evaluate(ctx context.Context, targetCompany string, positions []linkedin.Position, best validation.PositionMatch) (*ai.Verdict, error) {
	if targetCompany == "" {
		return nil, fmt.Errorf("target company is required")
	}

	positionsJSON, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal positions payload: %w", err)
	}

	bestJSON, err := json.MarshalIndent(best.Position, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal best match payload: %w", err)
	}

	prompt := buildPrompt(targetCompany, string(positionsJSON), string(bestJSON))

	v.logger.Debug("gemini verification request",
		zap.String("company", targetCompany),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logutil.TruncateForLog(prompt, v.maxLogLen)),
	)

	raw, err := v.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("gemini verification response",
		zap.String("company", targetCompany),
		zap.String("response_preview", logutil.TruncateForLog(raw, v.maxLogLen)),
	)

	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, err
	}
	verdict.Raw = raw
	return verdict, nil
}

// Verify adapts Evaluate to the resolution loop's hook: a negative verdict
// at or above the confidence floor rejects the match, anything else keeps it.
func (v *Verifier) Verify(ctx context.Context, targetCompany string, positions []linkedin.Position, best validation.PositionMatch) (bool, error) {
	verdict, err := v.Evaluate(ctx, targetCompany, positions, best)
	if err != nil {
		return false, err
	}

	if !verdict.Employed && verdict.Confidence >= v.minConfidence {
		v.logger.Info("verifier rejected employment match",
			zap.String("company", targetCompany),
			zap.Float64("confidence", verdict.Confidence),
			zap.String("reason", verdict.Reason),
		)
		return false, nil
	}
	return true, nil
}

func buildPrompt(targetCompany, positionsJSON, bestJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Target:\n{{TARGET_COMPANY}}\n\nPositions:\n{{POSITIONS_JSON}}\n\nBest:\n{{BEST_MATCH_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{TARGET_COMPANY}}", targetCompany)
	prompt = strings.ReplaceAll(prompt, "{{POSITIONS_JSON}}", positionsJSON)
	prompt = strings.ReplaceAll(prompt, "{{BEST_MATCH_JSON}}", bestJSON)
	return prompt
}

func parseVerdict(raw string) (*ai.Verdict, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	confidence := coerceFloat(data["confidence"])
	if math.IsNaN(confidence) {
		confidence = 0
	}

	return &ai.Verdict{
		Employed:   coerceBool(data["employed"]),
		Confidence: confidence,
		Reason:     coerceString(data["reason"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}
