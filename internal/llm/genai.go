package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/amanzav/geese/internal/types"
)

// GenAIAssistant is the Gemini-backed Assistant.
type GenAIAssistant struct {
	client    *genai.Client
	model     string
	maxTokens int32
	logger    *zap.Logger
}

// NewGenAIAssistant creates the Gemini client.
func NewGenAIAssistant(apiKey, model string, maxTokens int, logger *zap.Logger) (*GenAIAssistant, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIAssistant{
		client:    client,
		model:     model,
		maxTokens: int32(maxTokens),
		logger:    logger,
	}, nil
}

// GenerateCoverLetter drafts a letter anchored to covered evidence.
func (a *GenAIAssistant) GenerateCoverLetter(ctx context.Context, job *types.Job, evidence []types.Evidence, resumeBullets []string) (string, error) {
	prompt := coverLetterPrompt(job, evidence, resumeBullets)

	text, err := a.generate(ctx, prompt, 0.7)
	if err != nil {
		return "", fmt.Errorf("generate cover letter for %s: %w", job.JobID, err)
	}

	letter := strings.TrimSpace(text)
	if letter == "" {
		return "", fmt.Errorf("generate cover letter for %s: empty response", job.JobID)
	}

	a.logger.Debug("cover letter generated",
		zap.String("job_id", job.JobID),
		zap.Int("words", WordCount(letter)))
	return letter, nil
}

// ExtractCompensation normalizes a raw pay string. Postings without a usable
// figure return (nil, nil).
func (a *GenAIAssistant) ExtractCompensation(ctx context.Context, raw string) (*types.Compensation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return nil, nil
	}

	text, err := a.generate(ctx, compensationPrompt(raw), 0)
	if err != nil {
		return nil, fmt.Errorf("extract compensation: %w", err)
	}

	text = strings.TrimSpace(stripCodeFence(text))
	if text == "" || text == "null" {
		return nil, nil
	}

	var comp types.Compensation
	if err := json.Unmarshal([]byte(text), &comp); err != nil {
		return nil, fmt.Errorf("decode compensation %q: %w", text, err)
	}
	if comp.Value <= 0 {
		return nil, nil
	}
	comp.Currency = strings.ToUpper(comp.Currency)
	comp.Period = strings.ToLower(comp.Period)
	return &comp, nil
}

func (a *GenAIAssistant) generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: a.maxTokens,
		Temperature:     genai.Ptr(temperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Name identifies the provider and model.
func (a *GenAIAssistant) Name() string {
	return "genai:" + a.model
}

// stripCodeFence removes a wrapping ```json fence when the model adds one.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

var _ Assistant = (*GenAIAssistant)(nil)
