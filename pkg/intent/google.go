package intent

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// DefaultGoogleModel is used when no model is configured.
const DefaultGoogleModel = "gemini-2.5-flash"

// GoogleModel classifies through the Gemini API with a JSON response schema.
type GoogleModel struct {
	client *genai.Client
	model  string
}

// NewGoogleModel builds a GoogleModel from cfg.
func NewGoogleModel(ctx context.Context, cfg ModelConfig) (*GoogleModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGoogleModel
	}
	return &GoogleModel{client: client, model: model}, nil
}

var googleResponseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent":     {Type: genai.TypeString, Enum: []string{string(Workflow), string(General)}},
		"confidence": {Type: genai.TypeNumber},
	},
	Required: []string{"intent", "confidence"},
}

func (m *GoogleModel) Classify(ctx context.Context, message string) (Classification, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(classificationPrompt(message)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    googleResponseSchema,
	})
	if err != nil {
		return Classification{}, errors.Wrap(err, "google classification request failed")
	}
	return parseClassification(resp.Text())
}
