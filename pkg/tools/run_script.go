package tools

import (
	"context"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// RunAllowlistedScriptInput selects a script and its JSON input.
type RunAllowlistedScriptInput struct {
	ScriptID string         `json:"scriptId" jsonschema:"enum=score-features,enum=validate-feature-set"`
	Input    map[string]any `json:"input,omitempty" jsonschema:"description=JSON object written to the script's stdin"`
}

// RunAllowlistedScriptTool runs one of the approved deterministic helpers.
type RunAllowlistedScriptTool struct {
	runner ScriptRunner
}

func (t *RunAllowlistedScriptTool) Name() string {
	return "runAllowlistedScript"
}

func (t *RunAllowlistedScriptTool) Description() string {
	allowed := make([]string, 0)
	for _, id := range t.runner.Allowed() {
		allowed = append(allowed, string(id))
	}
	desc := "Run one of the approved local scripts with JSON input for deterministic checks."
	if len(allowed) == 0 {
		return desc + " No scripts are currently allowed."
	}
	return desc + " Allowed scripts: " + strings.Join(allowed, ", ") + "."
}

func (t *RunAllowlistedScriptTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[RunAllowlistedScriptInput]()
}

func parseScriptInput(parameters string) (RunAllowlistedScriptInput, error) {
	var input RunAllowlistedScriptInput
	if err := decodeInput(parameters, &input); err != nil {
		return input, err
	}
	if _, ok := scripts.ParseScriptID(input.ScriptID); !ok {
		return input, errors.Wrapf(scripts.ErrNotAllowed, "script '%s'", input.ScriptID)
	}
	if input.Input == nil {
		input.Input = map[string]any{}
	}
	return input, nil
}

func (t *RunAllowlistedScriptTool) ValidateInput(_ tooltypes.State, parameters string) error {
	_, err := parseScriptInput(parameters)
	return err
}

func (t *RunAllowlistedScriptTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	input, err := parseScriptInput(parameters)
	if err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.String("script.id", input.ScriptID),
	}, nil
}

func (t *RunAllowlistedScriptTool) Execute(ctx context.Context, _ tooltypes.State, parameters string) tooltypes.ToolResult {
	input, err := parseScriptInput(parameters)
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	result, err := t.runner.Run(ctx, input.ScriptID, input.Input)
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	return &jsonToolResult{
		toolName: t.Name(),
		metadata: tooltypes.RunScriptMetadata{
			ScriptID: input.ScriptID,
			Result:   result,
		},
	}
}
