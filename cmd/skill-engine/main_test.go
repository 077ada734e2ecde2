package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jingkaihe/skill-engine/pkg/app"
	"github.com/jingkaihe/skill-engine/pkg/config"
	"github.com/jingkaihe/skill-engine/pkg/intent"
	"github.com/jingkaihe/skill-engine/pkg/presenter"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		SkillsRootDir:           "skills",
		SkillsCacheTTLMs:        30000,
		AgentAllowedScripts:     "score-features",
		ScriptTimeout:           5 * time.Second,
		Provider:                intent.ProviderOpenAI,
		ClassifierTimeout:       time.Second,
		ClassifierRetryAttempts: 1,
		Host:                    "localhost",
		Port:                    8080,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestResources(t *testing.T) *app.Resources {
	t.Helper()
	work := t.TempDir()
	writeFile(t, filepath.Join(work, "skills", "feature-planning", "SKILL.md"),
		"---\nname: Feature Planning\ndescription: Plan an MVP feature set\n---\n# Steps\n\nPick features.\n")
	writeFile(t, filepath.Join(work, "skills", "feature-planning", "references", "auth.md"),
		"---\nfeature_id: auth\ntitle: Authentication\npriority_hint: core\n---\nSign in.\n")

	res, err := newResources(context.Background(), testConfig(),
		app.WithWorkDir(work),
		app.WithScriptRegistry(scripts.Registry{
			scripts.ScoreFeatures:      {"cat"},
			scripts.ValidateFeatureSet: {"cat"},
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return res
}

func bufferPresenter() (*presenter.TerminalPresenter, *bytes.Buffer) {
	var out bytes.Buffer
	return presenter.NewWithOptions(&out, &out, presenter.ColorNever), &out
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range []string{"serve", "mcp", "skill", "classify", "script", "helper", "version"} {
		assert.True(t, names[name], "missing command %s", name)
	}

	assert.True(t, helperCmd.Hidden)
	assert.NotEmpty(t, helperCmd.Annotations[skipSetupAnnotation])
	assert.NotEmpty(t, versionCmd.Annotations[skipSetupAnnotation])
}

func TestSetup(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SKILL_ENGINE_SKILLS_CACHE_TTL_MS", "")
	t.Setenv("SKILLS_CACHE_TTL_MS", "")

	t.Run("defaults", func(t *testing.T) {
		v := viper.New()
		require.NoError(t, setup(context.Background(), v))
		assert.Equal(t, "skills", appConfig.SkillsRootDir)
		assert.Equal(t, 8080, appConfig.Port)
		assert.NoError(t, shutdownTracing(context.Background()))
	})

	t.Run("invalid ttl", func(t *testing.T) {
		t.Setenv("SKILLS_CACHE_TTL_MS", "0")
		err := setup(context.Background(), viper.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "skills_cache_ttl_ms")
	})

	t.Run("invalid log level", func(t *testing.T) {
		t.Setenv("SKILL_ENGINE_LOG_LEVEL", "loud")
		err := setup(context.Background(), viper.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log_level")
	})
}

func TestSkillCommands(t *testing.T) {
	res := newTestResources(t)
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		p, out := bufferPresenter()
		require.NoError(t, listSkills(ctx, res.Skills, p, &SkillOutputConfig{}))
		assert.Contains(t, out.String(), "NAME")
		assert.Contains(t, out.String(), "Feature Planning")
		assert.Contains(t, out.String(), "feature-planning")
	})

	t.Run("list json", func(t *testing.T) {
		p, out := bufferPresenter()
		require.NoError(t, listSkills(ctx, res.Skills, p, &SkillOutputConfig{JSON: true}))
		assert.Contains(t, out.String(), `"slug": "feature-planning"`)
	})

	t.Run("show", func(t *testing.T) {
		p, out := bufferPresenter()
		require.NoError(t, showSkill(ctx, res.Skills, p, "feature-planning", &SkillOutputConfig{}))
		assert.Contains(t, out.String(), "Feature Planning\n----------------\n")
		assert.Contains(t, out.String(), "Pick features.")
		assert.NotContains(t, out.String(), "---\nname:")
	})

	t.Run("show unknown", func(t *testing.T) {
		p, _ := bufferPresenter()
		assert.Error(t, showSkill(ctx, res.Skills, p, "nope", &SkillOutputConfig{}))
	})

	t.Run("references", func(t *testing.T) {
		p, out := bufferPresenter()
		require.NoError(t, showReferences(ctx, res.Skills, p, "Feature Planning", &SkillOutputConfig{}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[1], "auth.md")
		assert.Contains(t, lines[1], "core")
		assert.Contains(t, lines[1], "Authentication")
	})
}

func TestRunClassify(t *testing.T) {
	classifier := intent.NewClassifier(nil)
	ctx := context.Background()

	p, out := bufferPresenter()
	require.NoError(t, runClassify(ctx, classifier, p, "help me plan the MVP features for my app", false))
	assert.Equal(t, "workflow (tier: heuristic)\n", out.String())

	p, out = bufferPresenter()
	require.NoError(t, runClassify(ctx, classifier, p, "I have been thinking a lot about our product lately and my team", true))
	assert.Contains(t, out.String(), `"intent": "general"`)
	assert.Contains(t, out.String(), `"tier": "fallback"`)
	assert.Contains(t, out.String(), `"message": "I have been thinking`)
}

func TestDecodeScriptInput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected map[string]any
		errMsg   string
	}{
		{name: "empty", raw: "  \n", expected: map[string]any{}},
		{name: "object", raw: `{"a":1}`, expected: map[string]any{"a": float64(1)}},
		{name: "array", raw: `[1]`, errMsg: "must be a JSON object"},
		{name: "malformed", raw: `{"a":`, errMsg: "invalid JSON input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeScriptInput([]byte(tt.raw))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRunScript(t *testing.T) {
	res := newTestResources(t)
	ctx := context.Background()

	t.Run("allowed", func(t *testing.T) {
		p, out := bufferPresenter()
		require.NoError(t, runScript(ctx, res.Policy, p, "score-features", strings.NewReader(`{"candidates":[]}`)))
		assert.JSONEq(t, `{"candidates":[]}`, out.String())
	})

	t.Run("not allowlisted", func(t *testing.T) {
		p, _ := bufferPresenter()
		err := runScript(ctx, res.Policy, p, "validate-feature-set", strings.NewReader(`{}`))
		assert.ErrorIs(t, err, scripts.ErrNotAllowed)
	})

	t.Run("unknown", func(t *testing.T) {
		p, _ := bufferPresenter()
		err := runScript(ctx, res.Policy, p, "rm-rf", strings.NewReader(`{}`))
		assert.ErrorIs(t, err, scripts.ErrNotAllowed)
	})
}

func TestOpenScriptInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	writeFile(t, path, `{"selected":[]}`)

	in, err := openScriptInput(&ScriptRunConfig{InputFile: path})
	require.NoError(t, err)
	defer in.Close()

	_, err = openScriptInput(&ScriptRunConfig{InputFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}
