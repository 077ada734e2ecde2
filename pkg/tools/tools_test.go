package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/skill-engine/pkg/featureset"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	allowed []scripts.ScriptID
	calls   []string
	inputs  []map[string]any
	result  any
	err     error
}

func (r *fakeRunner) Run(_ context.Context, id string, input map[string]any) (any, error) {
	r.calls = append(r.calls, id)
	r.inputs = append(r.inputs, input)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func (r *fakeRunner) Allowed() []scripts.ScriptID {
	return r.allowed
}

func newTestRegistry(t *testing.T, runner ScriptRunner) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	skillDir := filepath.Join(root, "planning")
	require.NoError(t, os.MkdirAll(filepath.Join(skillDir, "references"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"),
		[]byte("---\nname: Feature Planning\ndescription: Plans MVP features\n---\n# Planning\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "references", "auth.md"),
		[]byte("---\nfeature_id: auth\npriority_hint: core\n---\n# Auth\n"), 0o644))

	store, err := skills.NewLocalStore(root)
	require.NoError(t, err)
	return NewRegistry(skills.NewService(store), runner), skillDir
}

func decodeResult(t *testing.T, result tooltypes.ToolResult) map[string]any {
	t.Helper()
	require.False(t, result.IsError(), result.GetError())
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.GetResult()), &out))
	return out
}

func TestRegistry(t *testing.T) {
	registry, _ := newTestRegistry(t, &fakeRunner{})

	var names []string
	for _, tool := range registry.Tools() {
		names = append(names, tool.Name())
		schema := tool.GenerateSchema()
		require.NotNil(t, schema)
		assert.Equal(t, "object", schema.Type, tool.Name())
	}
	assert.Equal(t, []string{"loadSkill", "loadSkillReferences", "runAllowlistedScript", "emitFeatureSet"}, names)

	result := registry.RunTool(context.Background(), NewBasicState(), "bash", `{}`)
	assert.True(t, result.IsError())
	assert.True(t, errors.Is(result.Cause(), ErrUnknownTool))
}

func TestLoadSkillTool(t *testing.T) {
	registry, skillDir := newTestRegistry(t, &fakeRunner{})
	ctx := context.Background()

	out := decodeResult(t, registry.RunTool(ctx, NewBasicState(), "loadSkill", `{"name":"feature planning"}`))
	assert.Equal(t, map[string]any{
		"skillDirectory": skillDir,
		"content":        "# Planning",
	}, out)

	t.Run("unknown skill", func(t *testing.T) {
		result := registry.RunTool(ctx, NewBasicState(), "loadSkill", `{"name":"ghost"}`)
		require.True(t, result.IsError())
		assert.True(t, errors.Is(result.Cause(), skills.ErrNotFound))
		assert.Equal(t, "loadSkill", result.StructuredData().ToolName)
		assert.False(t, result.StructuredData().Success)
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, params := range []string{`{}`, `{"name":""}`, `not json`, `{"name":5}`} {
			result := registry.RunTool(ctx, NewBasicState(), "loadSkill", params)
			require.True(t, result.IsError(), params)
			assert.True(t, errors.Is(result.Cause(), ErrInvalidInput), params)
		}
	})
}

func TestLoadSkillReferencesTool(t *testing.T) {
	registry, _ := newTestRegistry(t, &fakeRunner{})

	result := registry.RunTool(context.Background(), NewBasicState(), "loadSkillReferences", `{"name":"Feature Planning"}`)
	out := decodeResult(t, result)
	assert.EqualValues(t, 1, out["referenceCount"])

	refs := out["references"].([]any)
	require.Len(t, refs, 1)
	ref := refs[0].(map[string]any)
	assert.Equal(t, filepath.Join("references", "auth.md"), ref["path"])
	assert.Equal(t, "# Auth", ref["content"])
	assert.Equal(t, map[string]any{"feature_id": "auth", "priority_hint": "core", "dependencies": []any{}, "tags": []any{}}, ref["metadata"])

	sd := result.StructuredData()
	require.IsType(t, tooltypes.LoadSkillReferencesMetadata{}, sd.Metadata)
	assert.Equal(t, 1, sd.Metadata.(tooltypes.LoadSkillReferencesMetadata).ReferenceCount)
}

func TestRunAllowlistedScriptTool(t *testing.T) {
	runner := &fakeRunner{
		allowed: []scripts.ScriptID{scripts.ScoreFeatures},
		result:  map[string]any{"ok": true, "scored": []any{}},
	}
	registry, _ := newTestRegistry(t, runner)
	ctx := context.Background()

	out := decodeResult(t, registry.RunTool(ctx, NewBasicState(), "runAllowlistedScript", `{"scriptId":"score-features"}`))
	assert.Equal(t, "score-features", out["scriptId"])
	assert.Equal(t, map[string]any{"ok": true, "scored": []any{}}, out["result"])
	assert.Equal(t, map[string]any{}, runner.inputs[0])

	t.Run("input passes through", func(t *testing.T) {
		decodeResult(t, registry.RunTool(ctx, NewBasicState(), "runAllowlistedScript",
			`{"scriptId":"score-features","input":{"candidates":[]}}`))
		assert.Equal(t, map[string]any{"candidates": []any{}}, runner.inputs[1])
	})

	t.Run("unknown script never reaches the runner", func(t *testing.T) {
		calls := len(runner.calls)
		result := registry.RunTool(ctx, NewBasicState(), "runAllowlistedScript", `{"scriptId":"rm"}`)
		assert.True(t, errors.Is(result.Cause(), scripts.ErrNotAllowed))
		assert.Len(t, runner.calls, calls)
	})

	t.Run("non-object input", func(t *testing.T) {
		result := registry.RunTool(ctx, NewBasicState(), "runAllowlistedScript", `{"scriptId":"score-features","input":[1]}`)
		assert.True(t, errors.Is(result.Cause(), ErrInvalidInput))
	})

	t.Run("runner errors propagate", func(t *testing.T) {
		failing := &fakeRunner{err: errors.Wrap(scripts.ErrNotAllowed, "script 'validate-feature-set'")}
		registry, _ := newTestRegistry(t, failing)
		result := registry.RunTool(ctx, NewBasicState(), "runAllowlistedScript", `{"scriptId":"validate-feature-set"}`)
		assert.True(t, errors.Is(result.Cause(), scripts.ErrNotAllowed))
	})

	desc, _ := registry.Get("runAllowlistedScript")
	assert.Contains(t, desc.Description(), "Allowed scripts: score-features.")
}

func TestEmitFeatureSetTool(t *testing.T) {
	registry, _ := newTestRegistry(t, &fakeRunner{})
	ctx := context.Background()

	t.Run("valid set is stored", func(t *testing.T) {
		state := NewBasicState()
		params := `{"selected":[{"featureId":"auth","title":"Auth","priority":"P0","rationale":"Every tenant needs login"}],
			"deferred":[{"featureId":"export","reason":"Not needed for launch"}]}`

		out := decodeResult(t, registry.RunTool(ctx, state, "emitFeatureSet", params))
		assert.Equal(t, true, out["ok"])
		assert.EqualValues(t, 1, out["selectedCount"])
		assert.EqualValues(t, 1, out["deferredCount"])

		saved := out["featureSet"].(map[string]any)["selected"].([]any)[0].(map[string]any)
		assert.Equal(t, []any{}, saved["dependencies"])

		stored := state.FeatureSet()
		require.NotNil(t, stored)
		assert.Equal(t, featureset.P0, stored.Selected[0].Priority)
		assert.Equal(t, "export", stored.Deferred[0].FeatureID)
	})

	t.Run("invalid set is not stored", func(t *testing.T) {
		state := NewBasicState()
		result := registry.RunTool(ctx, state, "emitFeatureSet", `{"selected":[{"featureId":"a","title":"A","priority":"P4","rationale":"short"}]}`)
		require.True(t, result.IsError())
		assert.True(t, errors.Is(result.Cause(), featureset.ErrInvalidFeatureSet))
		assert.Nil(t, state.FeatureSet())
	})
}

func TestBasicState(t *testing.T) {
	state := NewBasicState()
	assert.Nil(t, state.FeatureSet())

	fs := featureset.FeatureSet{Selected: []featureset.SelectedFeature{{FeatureID: "a"}}}
	state.SetFeatureSet(fs)
	fs.Selected = nil

	require.NotNil(t, state.FeatureSet())
	assert.Len(t, state.FeatureSet().Selected, 1)
}

func TestAssistantFacing(t *testing.T) {
	registry, _ := newTestRegistry(t, &fakeRunner{})
	result := registry.RunTool(context.Background(), NewBasicState(), "loadSkill", `{"name":"Feature Planning"}`)
	assert.Contains(t, result.AssistantFacing(), "<result>\n{\"skillDirectory\":")
}
