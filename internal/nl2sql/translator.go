package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/querypilot/querypilot/internal/conn"
	"github.com/querypilot/querypilot/internal/schema"
)

// ErrTranslationFailed wraps every failure of the language-model round trip.
var ErrTranslationFailed = errors.New("translation failed")

// ErrUnknownProvider is returned by NewCompleter for unsupported provider names.
var ErrUnknownProvider = errors.New("unknown ai provider")

type TranslateRequest struct {
	NaturalLanguage string
	Dialect         conn.Dialect
	Snapshot        schema.Snapshot
}

type ExplainRequest struct {
	SQL      string
	Snapshot schema.Snapshot
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Explanation struct {
	Text     string `json:"explanation"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator struct {
	completer Completer
}

func NewTranslator(completer Completer) *Translator {
	return &Translator{completer: completer}
}

func (t *Translator) Translate(ctx context.Context, req TranslateRequest) (Result, error) {
	if strings.TrimSpace(req.NaturalLanguage) == "" {
		return Result{}, fmt.Errorf("natural language query is required")
	}
	completion, err := t.complete(ctx, ComposeTranslatePrompt(req.Snapshot, req.Dialect, req.NaturalLanguage))
	if err != nil {
		return Result{}, err
	}
	sql := SanitizeSQL(completion.Text)
	if sql == "" {
		return Result{}, fmt.Errorf("%w: model returned empty SQL", ErrTranslationFailed)
	}
	return Result{SQL: sql, Provider: completion.Provider, Model: completion.Model}, nil
}

func (t *Translator) Explain(ctx context.Context, req ExplainRequest) (Explanation, error) {
	statement := SanitizeSQL(req.SQL)
	if statement == "" {
		return Explanation{}, fmt.Errorf("sql query is required")
	}
	completion, err := t.complete(ctx, ComposeExplainPrompt(req.Snapshot, statement))
	if err != nil {
		return Explanation{}, err
	}
	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return Explanation{}, fmt.Errorf("%w: model returned empty explanation", ErrTranslationFailed)
	}
	return Explanation{Text: text, Provider: completion.Provider, Model: completion.Model}, nil
}

func (t *Translator) complete(ctx context.Context, user string) (Completion, error) {
	if t == nil || t.completer == nil {
		return Completion{}, fmt.Errorf("%w: no completer configured", ErrTranslationFailed)
	}
	completion, err := t.completer.Complete(ctx, Prompt{System: SystemRole, User: user})
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %w", ErrTranslationFailed, err)
	}
	return completion, nil
}

type ProviderConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	Timeout     time.Duration
}

// NewCompleter builds the completer for the named provider.
func NewCompleter(cfg ProviderConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		completer, err := NewOpenAICompleter(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return completer, nil
	case "gemini":
		return NewGeminiCompleter(GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
