package intent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Classification is the structured answer of the model tier.
type Classification struct {
	Intent     Intent  `json:"intent" jsonschema:"enum=workflow,enum=general"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// Model classifies a single message. Implementations make one model call.
type Model interface {
	Classify(ctx context.Context, message string) (Classification, error)
}

// ErrInvalidClassification is returned when the model answer does not fit
// the classification schema.
var ErrInvalidClassification = errors.New("invalid classification")

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// ModelConfig selects and configures a provider.
type ModelConfig struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL targets an OpenAI or Anthropic compatible gateway.
	BaseURL string
}

// NewModel returns the Model for cfg.Provider.
func NewModel(ctx context.Context, cfg ModelConfig) (Model, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required for the model tier")
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIModel(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicModel(cfg), nil
	case ProviderGoogle:
		return NewGoogleModel(ctx, cfg)
	default:
		return nil, errors.Errorf("unsupported provider %q", cfg.Provider)
	}
}

const systemPrompt = "You are a message router. Reply with a JSON object with keys intent and confidence only."

func classificationPrompt(message string) string {
	return strings.Join([]string{
		"Classify the user message for routing in a product strategy assistant.",
		"Return workflow when the message asks to create/plan/specify a product, PRD, feature set, requirements, MVP scope, or business workflow output.",
		"Return general for greetings, chit-chat, definitions, troubleshooting questions, or generic Q&A that do not ask for a PRD/feature-planning workflow.",
		"If ambiguous, choose general.",
		"",
		"Message: " + message,
	}, "\n")
}

var classificationSchema = func() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	s := r.Reflect(&Classification{})
	s.Version = ""
	return s
}()

// parseClassification decodes a model answer, tolerating a fenced code block.
func parseClassification(text string) (Classification, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var c Classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &c); err != nil {
		return Classification{}, errors.Wrapf(ErrInvalidClassification, "malformed answer: %v", err)
	}
	if c.Intent != Workflow && c.Intent != General {
		return Classification{}, errors.Wrapf(ErrInvalidClassification, "intent %q", c.Intent)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return Classification{}, errors.Wrapf(ErrInvalidClassification, "confidence %v out of range", c.Confidence)
	}
	return c, nil
}
