package intent

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected Intent
	}{
		{"empty", "   \n\t", General},
		{"greeting", "hello", General},
		{"greeting with punctuation", "Hey!", General},
		{"thanks", "thanks a lot", General},
		{"whats up", "hey what's up", General},
		{"good morning", "Good   morning team", General},
		{"workflow request", "Build me a PRD for a scheduling app MVP with role-based access", Workflow},
		{"long greeting with request", "hello, can you help me write a product roadmap for my saas?", Workflow},
		{"multi-word terms", "please break down the user story", Workflow},
		{"general question", "What is the capital of France?", General},
		{"interrogative without mark", "how do I reset my password", General},
		{"short small talk", "the weather is nice today", General},
		{"domain without action", "I have been thinking a lot about our product lately and my team", Unknown},
		{"action without domain", "please draft something", Unknown},
		{"domain question", "what features should an mvp include?", Unknown},
		{"substring match counts", "happy to see you", Unknown},
		{"long chatter", "one two three four five six seven eight nine ten eleven", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyHeuristic(tt.message))
		})
	}
}

type fakeModel struct {
	calls     atomic.Int32
	failFirst int32
	result    Classification
	err       error
	block     bool
}

func (m *fakeModel) Classify(ctx context.Context, _ string) (Classification, error) {
	n := m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return Classification{}, ctx.Err()
	}
	if n <= m.failFirst {
		return Classification{}, errors.New("transient failure")
	}
	if m.err != nil {
		return Classification{}, m.err
	}
	return m.result, nil
}

const ambiguous = "I have been thinking a lot about our product lately and my team"

func TestClassifierHeuristicTierSkipsModel(t *testing.T) {
	model := &fakeModel{result: Classification{Intent: Workflow, Confidence: 1}}
	c := NewClassifier(model)
	ctx := context.Background()

	assert.Equal(t, Decision{Intent: General, Tier: TierHeuristic}, c.Classify(ctx, "hello"))
	assert.Equal(t, Workflow, c.Route(ctx, "Build me a PRD for a scheduling app MVP with role-based access"))
	assert.EqualValues(t, 0, model.calls.Load())
}

func TestClassifierModelTier(t *testing.T) {
	tests := []struct {
		name     string
		result   Classification
		expected Intent
	}{
		{"confident workflow", Classification{Intent: Workflow, Confidence: 0.9}, Workflow},
		{"low confidence workflow", Classification{Intent: Workflow, Confidence: 0.54}, General},
		{"threshold is inclusive", Classification{Intent: Workflow, Confidence: 0.55}, Workflow},
		{"confident general", Classification{Intent: General, Confidence: 0.99}, General},
		{"low confidence general", Classification{Intent: General, Confidence: 0.1}, General},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{result: tt.result}
			decision := NewClassifier(model).Classify(context.Background(), ambiguous)

			assert.Equal(t, tt.expected, decision.Intent)
			assert.Equal(t, TierModel, decision.Tier)
			assert.Equal(t, tt.result.Confidence, decision.Confidence)
			assert.EqualValues(t, 1, model.calls.Load())
		})
	}
}

func TestClassifierWithoutModel(t *testing.T) {
	decision := NewClassifier(nil).Classify(context.Background(), ambiguous)
	assert.Equal(t, Decision{Intent: General, Tier: TierFallback}, decision)
}

func TestClassifierModelFailures(t *testing.T) {
	t.Run("persistent error falls back to general", func(t *testing.T) {
		model := &fakeModel{err: errors.New("gateway down")}
		decision := NewClassifier(model, WithAttempts(2)).Classify(context.Background(), ambiguous)
		assert.Equal(t, Decision{Intent: General, Tier: TierFallback}, decision)
		assert.EqualValues(t, 2, model.calls.Load())
	})

	t.Run("transient error is retried", func(t *testing.T) {
		model := &fakeModel{failFirst: 1, result: Classification{Intent: Workflow, Confidence: 0.8}}
		decision := NewClassifier(model, WithAttempts(3)).Classify(context.Background(), ambiguous)
		assert.Equal(t, Workflow, decision.Intent)
		assert.EqualValues(t, 2, model.calls.Load())
	})

	t.Run("slow model times out", func(t *testing.T) {
		model := &fakeModel{block: true}
		start := time.Now()
		decision := NewClassifier(model, WithTimeout(50*time.Millisecond), WithAttempts(1)).Classify(context.Background(), ambiguous)
		assert.Equal(t, General, decision.Intent)
		assert.Equal(t, TierFallback, decision.Tier)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestParseClassification(t *testing.T) {
	c, err := parseClassification(`{"intent":"workflow","confidence":0.7}`)
	require.NoError(t, err)
	assert.Equal(t, Classification{Intent: Workflow, Confidence: 0.7}, c)

	c, err = parseClassification("```json\n{\"intent\":\"general\",\"confidence\":1}\n```")
	require.NoError(t, err)
	assert.Equal(t, General, c.Intent)

	for name, text := range map[string]string{
		"not json":        "workflow",
		"unknown intent":  `{"intent":"unknown","confidence":0.9}`,
		"confidence high": `{"intent":"general","confidence":1.5}`,
		"confidence low":  `{"intent":"general","confidence":-0.1}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseClassification(text)
			assert.True(t, errors.Is(err, ErrInvalidClassification), "got %v", err)
		})
	}
}

func TestClassificationSchema(t *testing.T) {
	data, err := json.Marshal(classificationSchema)
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	assert.ElementsMatch(t, []any{"intent", "confidence"}, schema["required"])
	assert.NotContains(t, schema, "$schema")
}

func TestNewModel(t *testing.T) {
	ctx := context.Background()

	_, err := NewModel(ctx, ModelConfig{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewModel(ctx, ModelConfig{Provider: "cohere", APIKey: "k"})
	assert.Error(t, err)

	m, err := NewModel(ctx, ModelConfig{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, m.(*OpenAIModel).model)

	m, err = NewModel(ctx, ModelConfig{Provider: ProviderAnthropic, APIKey: "k", Model: "claude-x"})
	require.NoError(t, err)
	assert.Equal(t, "claude-x", m.(*AnthropicModel).model)
}

func TestExtractLatestUserText(t *testing.T) {
	decode := func(t *testing.T, raw string) []Message {
		t.Helper()
		var messages []Message
		require.NoError(t, json.Unmarshal([]byte(raw), &messages))
		return messages
	}

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"empty", `[]`, ""},
		{"string content", `[{"role":"user","content":"  first  "}]`, "first"},
		{"newest user wins", `[{"role":"user","content":"old"},{"role":"assistant","content":"reply"},{"role":"user","content":"new"}]`, "new"},
		{
			"text parts joined",
			`[{"role":"user","parts":[{"type":"text","text":"line one"},{"type":"image","url":"x"},{"type":"text","text":"line two"}]}]`,
			"line one\n\nline two",
		},
		{"blank newest falls back", `[{"role":"user","content":"earlier"},{"role":"user","content":"   ","parts":[{"type":"text","text":" "}]}]`, "earlier"},
		{"non-string content uses parts", `[{"role":"user","content":[1,2],"parts":[{"type":"text","text":"from parts"}]}]`, "from parts"},
		{"odd parts ignored", `[{"role":"user","parts":[null,"str",{"type":"text","text":5},{"type":"text","text":"ok"}]}]`, "ok"},
		{"malformed messages skipped", `[5, "hi", null, {"role":7,"content":"x"}, {"role":"user","parts":"nope","content":"ok"}]`, "ok"},
		{"no user messages", `[{"role":"assistant","content":"hi"},{"role":"system","content":"rules"}]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractLatestUserText(decode(t, tt.raw)))
		})
	}
}
