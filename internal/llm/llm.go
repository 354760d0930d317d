package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/lingo/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// maxTipsPerArea caps how many tips are kept for each weak area.
const maxTipsPerArea = 3

// AreaTips holds study suggestions for one weak category.
type AreaTips struct {
	Category string   `json:"category"`
	Tips     []string `json:"tips"`
}

type tipsResponse struct {
	Areas []AreaTips `json:"areas"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// StudyTips asks the model for practice suggestions for each weak area of a report.
// A report without weak areas yields no tips and no API call.
func (c *Client) StudyTips(ctx context.Context, report model.ResultReport, lang string) ([]AreaTips, error) {
	if len(report.WeakAreas) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildTipsSystemPrompt(lang)},
			{Role: openai.ChatMessageRoleUser, Content: buildTipsUserPrompt(report)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var parsed tipsResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return filterTips(parsed.Areas, report.WeakAreas), nil
}

// filterTips keeps only tips for categories that are actually weak, in the
// report's order, each trimmed to maxTipsPerArea.
func filterTips(areas []AreaTips, weak []model.CategoryStat) []AreaTips {
	byCat := make(map[string][]string, len(areas))
	for _, a := range areas {
		byCat[strings.ToLower(strings.TrimSpace(a.Category))] = a.Tips
	}
	var out []AreaTips
	for _, w := range weak {
		tips, ok := byCat[strings.ToLower(w.Category)]
		if !ok || len(tips) == 0 {
			continue
		}
		if len(tips) > maxTipsPerArea {
			tips = tips[:maxTipsPerArea]
		}
		out = append(out, AreaTips{Category: w.Category, Tips: tips})
	}
	return out
}

func buildTipsSystemPrompt(lang string) string {
	var sb strings.Builder
	sb.WriteString("You are an English language tutor. A learner has just finished a placement test.\n")
	sb.WriteString("For each weak area listed by the user, suggest short, concrete practice activities.\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString(fmt.Sprintf("- Give at most %d tips per area, one sentence each.\n", maxTipsPerArea))
	sb.WriteString("- Use the category names exactly as given.\n")
	if lang != "" && lang != "en" {
		sb.WriteString(fmt.Sprintf("- Write the tips in the language with code %q.\n", lang))
	}
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"areas": [{"category": "<category>", "tips": ["<tip>", "..."]}]}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildTipsUserPrompt(r model.ResultReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("LEVEL: %s\n", r.Level))
	sb.WriteString(fmt.Sprintf("OVERALL ACCURACY: %d%% (%d of %d)\n\n", r.Accuracy, r.CorrectAnswers, r.TotalQuestions))
	sb.WriteString("WEAK AREAS:\n")
	for _, w := range r.WeakAreas {
		sb.WriteString(fmt.Sprintf("- %s: %d%% over %d questions\n", w.Category, w.Accuracy, w.QuestionsAnswered))
	}
	return sb.String()
}
