package tools

import (
	"context"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/skill-engine/pkg/featureset"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"go.opentelemetry.io/otel/attribute"
)

// EmitFeatureSetTool validates the final feature set and stores it in the
// request state. Nothing is stored when validation fails.
type EmitFeatureSetTool struct{}

func (t *EmitFeatureSetTool) Name() string {
	return "emitFeatureSet"
}

func (t *EmitFeatureSetTool) Description() string {
	return "Validate and persist the final feature set JSON before responding."
}

func (t *EmitFeatureSetTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[featureset.FeatureSet]()
}

func (t *EmitFeatureSetTool) ValidateInput(_ tooltypes.State, parameters string) error {
	_, err := featureset.Parse([]byte(parameters))
	return err
}

func (t *EmitFeatureSetTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	fs, err := featureset.Parse([]byte(parameters))
	if err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.Int("feature_set.selected", len(fs.Selected)),
		attribute.Int("feature_set.deferred", len(fs.Deferred)),
	}, nil
}

func (t *EmitFeatureSetTool) Execute(_ context.Context, state tooltypes.State, parameters string) tooltypes.ToolResult {
	fs, err := featureset.Parse([]byte(parameters))
	if err != nil {
		return &jsonToolResult{toolName: t.Name(), err: err}
	}

	state.SetFeatureSet(*fs)

	return &jsonToolResult{
		toolName: t.Name(),
		metadata: tooltypes.EmitFeatureSetMetadata{
			OK:            true,
			FeatureSet:    *fs,
			SelectedCount: len(fs.Selected),
			DeferredCount: len(fs.Deferred),
		},
	}
}
