package intent

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIModel classifies through the chat completions API with a strict JSON
// schema response format. It also serves OpenAI compatible gateways.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel builds an OpenAIModel from cfg.
func NewOpenAIModel(cfg ModelConfig) *OpenAIModel {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIModel{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

func (m *OpenAIModel) Classify(ctx context.Context, message string) (Classification, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: classificationPrompt(message)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "intent_classification",
				Schema: classificationSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return Classification{}, errors.Wrap(err, "openai classification request failed")
	}
	if len(resp.Choices) == 0 {
		return Classification{}, errors.Wrap(ErrInvalidClassification, "openai returned no choices")
	}
	return parseClassification(resp.Choices[0].Message.Content)
}
