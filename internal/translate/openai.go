package translate

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"querydesk/internal/config"
	"querydesk/internal/domain"
)

// Completion knobs matching what the service was tuned with. Temperature
// stays low so the same question yields the same SQL.
const (
	completionTemperature = 0.1
	completionMaxTokens   = 500
)

// OpenAIModel implements domain.LanguageModel over any OpenAI-compatible
// chat completions endpoint.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

var _ domain.LanguageModel = (*OpenAIModel)(nil)

func NewOpenAIModel(cfg config.ModelConfig) *OpenAIModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIModel{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Complete sends one chat completion request and returns the first choice.
func (m *OpenAIModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
