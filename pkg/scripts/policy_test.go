package scripts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/skill-engine/pkg/featureset"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is re-executed as the child
// process for the registry entries built by helperRegistry.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "no helper mode")
		os.Exit(2)
	}

	switch mode := args[1]; mode {
	case "score-features", "validate-feature-set":
		os.Exit(featureset.RunHelper(mode, os.Stdin, os.Stdout, os.Stderr))
	case "echo":
		data, _ := io.ReadAll(os.Stdin)
		os.Stdout.Write(data)
	case "cwd":
		wd, _ := os.Getwd()
		json.NewEncoder(os.Stdout).Encode(map[string]string{"cwd": wd})
	case "text":
		fmt.Println("  plain text result  ")
	case "empty":
	case "fail":
		fmt.Fprintln(os.Stderr, "boom")
		os.Exit(3)
	case "silent-fail":
		os.Exit(4)
	case "sleep":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperArgv(mode string) []string {
	return []string{os.Args[0], "-test.run=TestHelperProcess", "--", mode}
}

func helperRegistry(modes map[ScriptID]string) Registry {
	reg := Registry{}
	for id, mode := range modes {
		reg[id] = helperArgv(mode)
	}
	return reg
}

func newHelperPolicy(t *testing.T, allowlist string, modes map[ScriptID]string, opts ...Option) *Policy {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	opts = append([]Option{WithRegistry(helperRegistry(modes))}, opts...)
	p, err := NewPolicy(allowlist, opts...)
	require.NoError(t, err)
	return p
}

func TestParseAllowlist(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		expected []ScriptID
	}{
		{"both", "score-features,validate-feature-set", []ScriptID{ScoreFeatures, ValidateFeatureSet}},
		{"whitespace", " score-features , ", []ScriptID{ScoreFeatures}},
		{"unknown ignored", "rm,score-features,bash", []ScriptID{ScoreFeatures}},
		{"case sensitive", "Score-Features", []ScriptID{}},
		{"empty", "", []ScriptID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.csv, WithRegistry(Registry{}))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Allowed())
			for _, id := range tt.expected {
				assert.True(t, p.IsAllowed(string(id)))
			}
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	exe, err := os.Executable()
	require.NoError(t, err)

	require.Len(t, reg, len(KnownScripts))
	assert.Equal(t, []string{exe, "helper", "score-features"}, reg[ScoreFeatures])
	assert.Equal(t, []string{exe, "helper", "validate-feature-set"}, reg[ValidateFeatureSet])
}

func TestRunRejectsBeforeSpawning(t *testing.T) {
	// Any spawn would fail loudly since the registry points nowhere.
	p, err := NewPolicy("score-features", WithRegistry(Registry{
		ScoreFeatures:      {"/nonexistent/score"},
		ValidateFeatureSet: {"/nonexistent/validate"},
	}))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "validate-feature-set", map[string]any{})
	assert.True(t, errors.Is(err, ErrNotAllowed), "got %v", err)

	for _, id := range []string{"curl", "", "score-features ", "../score-features"} {
		_, err = p.Run(context.Background(), id, map[string]any{})
		assert.True(t, errors.Is(err, ErrNotAllowed), "%q: got %v", id, err)
		assert.False(t, errors.Is(err, ErrUnknownScript), "%q: got %v", id, err)
	}
}

func TestRunWithoutRegisteredCommand(t *testing.T) {
	p, err := NewPolicy("score-features", WithRegistry(Registry{}))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), "score-features", nil)
	assert.True(t, errors.Is(err, ErrUnknownScript))
}

func TestRunReferencePrograms(t *testing.T) {
	p := newHelperPolicy(t, "score-features,validate-feature-set", map[ScriptID]string{
		ScoreFeatures:      "score-features",
		ValidateFeatureSet: "validate-feature-set",
	})
	ctx := context.Background()

	t.Run("score", func(t *testing.T) {
		result, err := p.Run(ctx, "score-features", map[string]any{
			"candidates": []any{
				map[string]any{"featureId": "low", "priorityHint": "low", "dependencies": []any{1, 2, 3, 4, 5, 6}},
				map[string]any{"featureId": "core", "priorityHint": "core", "dependencies": []any{}},
			},
		})
		require.NoError(t, err)

		out := result.(map[string]any)
		assert.Equal(t, true, out["ok"])
		scored := out["scored"].([]any)
		require.Len(t, scored, 2)
		assert.Equal(t, "core", scored[0].(map[string]any)["featureId"])
		assert.EqualValues(t, 100, scored[0].(map[string]any)["score"])
		assert.EqualValues(t, 0, scored[1].(map[string]any)["score"])
	})

	t.Run("validate", func(t *testing.T) {
		result, err := p.Run(ctx, "validate-feature-set", map[string]any{"selected": []any{}, "deferred": []any{}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"ok":     false,
			"errors": []any{"selected must be a non-empty array."},
		}, result)
	})

	t.Run("repeat calls are idempotent", func(t *testing.T) {
		input := map[string]any{"candidates": []any{map[string]any{"priorityHint": "high"}}}
		first, err := p.Run(ctx, "score-features", input)
		require.NoError(t, err)
		second, err := p.Run(ctx, "score-features", input)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestRunOutputHandling(t *testing.T) {
	tests := []struct {
		mode     string
		input    map[string]any
		expected any
	}{
		{"echo", map[string]any{"a": "b"}, map[string]any{"a": "b"}},
		{"echo", nil, map[string]any{}},
		{"empty", nil, map[string]any{"ok": true}},
		{"text", nil, map[string]any{"text": "plain text result"}},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			p := newHelperPolicy(t, "score-features", map[ScriptID]string{ScoreFeatures: tt.mode})
			result, err := p.Run(context.Background(), "score-features", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	p := newHelperPolicy(t, "score-features", map[ScriptID]string{ScoreFeatures: "cwd"}, WithWorkDir(dir))

	result, err := p.Run(context.Background(), "score-features", nil)
	require.NoError(t, err)

	expected, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(result.(map[string]any)["cwd"].(string))
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestRunNonZeroExit(t *testing.T) {
	t.Run("with stderr", func(t *testing.T) {
		p := newHelperPolicy(t, "score-features", map[ScriptID]string{ScoreFeatures: "fail"})
		_, err := p.Run(context.Background(), "score-features", nil)

		var execErr *ExecutionError
		require.True(t, errors.As(err, &execErr), "got %v", err)
		assert.Equal(t, ScoreFeatures, execErr.ScriptID)
		assert.Equal(t, 3, execErr.ExitCode)
		assert.Equal(t, "boom\n", execErr.Stderr)
		assert.False(t, execErr.TimedOut)
		assert.Equal(t, "script failed with exit code 3. boom", err.Error())
	})

	t.Run("without stderr", func(t *testing.T) {
		p := newHelperPolicy(t, "score-features", map[ScriptID]string{ScoreFeatures: "silent-fail"})
		_, err := p.Run(context.Background(), "score-features", nil)
		assert.EqualError(t, err, "script failed with exit code 4. No stderr output.")
	})

	t.Run("spawn failure", func(t *testing.T) {
		p, err := NewPolicy("score-features", WithRegistry(Registry{ScoreFeatures: {"/nonexistent/score"}}))
		require.NoError(t, err)
		_, err = p.Run(context.Background(), "score-features", nil)

		var execErr *ExecutionError
		require.True(t, errors.As(err, &execErr))
		assert.Equal(t, -1, execErr.ExitCode)
	})
}

func TestRunTimeout(t *testing.T) {
	p := newHelperPolicy(t, "score-features", map[ScriptID]string{ScoreFeatures: "sleep"}, WithTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := p.Run(context.Background(), "score-features", nil)
	elapsed := time.Since(start)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "got %v", err)
	assert.True(t, execErr.TimedOut)
	assert.Equal(t, -1, execErr.ExitCode)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out after 200ms")
	assert.Less(t, elapsed, 10*time.Second)
}

func TestRunCancellation(t *testing.T) {
	p := newHelperPolicy(t, "score-features", map[ScriptID]string{ScoreFeatures: "sleep"})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := p.Run(ctx, "score-features", nil)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "got %v", err)
	assert.False(t, execErr.TimedOut)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	p, err := NewPolicy("", WithRegistry(Registry{}), WithTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, p.Timeout())
}
