package tools

import (
	"context"

	"github.com/invopop/jsonschema"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"go.opentelemetry.io/otel/attribute"
)

// LoadSkillReferencesTool returns every reference document of a skill.
type LoadSkillReferencesTool struct {
	loader SkillLoader
}

func (t *LoadSkillReferencesTool) Name() string {
	return "loadSkillReferences"
}

func (t *LoadSkillReferencesTool) Description() string {
	return "Load markdown reference files for a previously selected skill."
}

func (t *LoadSkillReferencesTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[SkillNameInput]()
}

func (t *LoadSkillReferencesTool) ValidateInput(_ tooltypes.State, parameters string) error {
	_, err := parseSkillNameInput(parameters)
	return err
}

func (t *LoadSkillReferencesTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	return skillNameKVs(parameters)
}

func (t *LoadSkillReferencesTool) Execute(ctx context.Context, _ tooltypes.State, parameters string) tooltypes.ToolResult {
	input, err := parseSkillNameInput(parameters)
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	refs, err := t.loader.LoadReferences(ctx, input.Name)
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	out := make([]tooltypes.ReferenceOutput, 0, len(refs))
	for _, ref := range refs {
		out = append(out, tooltypes.ReferenceOutput{
			Path:     ref.RelativePath,
			Metadata: ref.Metadata,
			Content:  ref.Content,
		})
	}

	return &jsonToolResult{
		toolName: t.Name(),
		metadata: tooltypes.LoadSkillReferencesMetadata{
			ReferenceCount: len(out),
			References:     out,
		},
	}
}
