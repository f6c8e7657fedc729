package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float64
}

// GeminiCompleter opens a new client for every call.
type GeminiCompleter struct {
	apiKey      string
	model       string
	temperature *float64
}

func NewGeminiCompleter(cfg GeminiConfig) *GeminiCompleter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}
	return &GeminiCompleter{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
	}
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	if c.apiKey == "" {
		return Completion{}, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return Completion{}, fmt.Errorf("create gemini client: %w", err)
	}
	defer func() { _ = client.Close() }()

	system := prompt.System
	if system == "" {
		system = SystemRole
	}
	model := client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	if c.temperature != nil {
		model.SetTemperature(float32(*c.temperature))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		return Completion{}, classifyGeminiError(err)
	}
	text, err := firstCandidateText(resp)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: text, Provider: "gemini", Model: c.model}, nil
}

func classifyGeminiError(err error) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("gemini rejected credentials: %w", err)
		case codes.ResourceExhausted:
			return fmt.Errorf("gemini rate limited: %w", err)
		case codes.DeadlineExceeded:
			return fmt.Errorf("gemini call timed out: %w", err)
		}
	}
	return fmt.Errorf("gemini generate content: %w", err)
}

func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty gemini response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response has no text parts, finish reason %s", resp.Candidates[0].FinishReason.String())
	}
	return b.String(), nil
}
