package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chart-qa-backend/internal/llm"
	"chart-qa-backend/internal/shared/metrics"
	"chart-qa-backend/internal/shared/telemetry"
)

// Engine scores extracted document text.
type Engine struct {
	Completer llm.Completer
	Invoker   *llm.Invoker
	Config    Config
}

// NewEngine constructs an Engine with DefaultConfig.
func NewEngine(completer llm.Completer, invoker *llm.Invoker) *Engine {
	return &Engine{Completer: completer, Invoker: invoker, Config: DefaultConfig()}
}

// Analyze scores text with the model and falls back to the heuristic when every attempt fails.
// Configuration errors and cancellation are returned instead of falling back.
func (e *Engine) Analyze(ctx context.Context, text string, meta Meta) (Result, error) {
	cfg := e.Config.withDefaults()
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}
	if e.Completer == nil {
		return Result{}, fmt.Errorf("analysis: %w", llm.ErrNotConfigured)
	}

	prompt := BuildPrompt(cfg, text, meta)
	var parsed map[string]any
	_, err := e.Invoker.Invoke(ctx, "analyze", func(ctx context.Context) (string, error) {
		return e.Completer.Complete(ctx, prompt, llm.Options{Temperature: cfg.Temperature, JSON: true})
	}, func(raw string) error {
		obj, err := SafeParseJSON(raw)
		if err != nil {
			return err
		}
		if !hasAnalysisFields(obj) {
			return fmt.Errorf("%w: no analysis fields", ErrParse)
		}
		parsed = obj
		return nil
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return Result{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		telemetry.Warn("analysis_fallback", map[string]any{
			"chart_id":    meta.ChartID,
			"document_id": meta.DocumentID,
			"kind":        meta.Kind,
			"error":       err.Error(),
		})
		metrics.IncAnalysis(true)
		return heuristic(cfg, text, fallbackIssue), nil
	}

	metrics.IncAnalysis(false)
	return normalize(cfg, parsed), nil
}

// HeuristicOnly scores text without calling the model.
func (e *Engine) HeuristicOnly(text string, meta Meta) Result {
	metrics.IncAnalysis(true)
	return heuristic(e.Config.withDefaults(), text, disabledIssue)
}

// BuildPrompt renders the kind-specific template over the truncated text.
func BuildPrompt(cfg Config, text string, meta Meta) string {
	cfg = cfg.withDefaults()
	tmpl, _ := llm.PromptTemplate(NormalizeKind(meta.Kind))
	return llm.RenderPrompt(tmpl, map[string]string{
		"FILE_NAME":     meta.FileName,
		"CHART_ID":      meta.ChartID,
		"DOCUMENT_TEXT": truncateRunes(text, cfg.MaxPromptChars),
	})
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

var analysisKeys = []string{"qualityScore", "completenessScore", "confidenceScore", "flaggedIssues", "recommendations", "summary"}

func hasAnalysisFields(obj map[string]any) bool {
	for _, key := range analysisKeys {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}
