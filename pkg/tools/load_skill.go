package tools

import (
	"context"

	"github.com/invopop/jsonschema"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// SkillNameInput names a skill from the catalog.
type SkillNameInput struct {
	Name string `json:"name" jsonschema:"description=Exact skill name from available list,minLength=1"`
}

func parseSkillNameInput(parameters string) (SkillNameInput, error) {
	var input SkillNameInput
	if err := decodeInput(parameters, &input); err != nil {
		return input, err
	}
	if input.Name == "" {
		return input, errors.Wrap(ErrInvalidInput, "name is required")
	}
	return input, nil
}

func skillNameKVs(parameters string) ([]attribute.KeyValue, error) {
	input, err := parseSkillNameInput(parameters)
	if err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.String("skill_name", input.Name),
	}, nil
}

// LoadSkillTool returns the body of a SKILL.md document.
type LoadSkillTool struct {
	loader SkillLoader
}

func (t *LoadSkillTool) Name() string {
	return "loadSkill"
}

func (t *LoadSkillTool) Description() string {
	return "Load a full SKILL.md body for a skill name."
}

func (t *LoadSkillTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[SkillNameInput]()
}

func (t *LoadSkillTool) ValidateInput(_ tooltypes.State, parameters string) error {
	_, err := parseSkillNameInput(parameters)
	return err
}

func (t *LoadSkillTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	return skillNameKVs(parameters)
}

func (t *LoadSkillTool) Execute(ctx context.Context, _ tooltypes.State, parameters string) tooltypes.ToolResult {
	input, err := parseSkillNameInput(parameters)
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	skill, err := t.loader.LoadSkill(ctx, input.Name)
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	return &jsonToolResult{
		toolName: t.Name(),
		metadata: tooltypes.LoadSkillMetadata{
			SkillDirectory: skill.SkillDirectory,
			Content:        skill.Content,
		},
	}
}
