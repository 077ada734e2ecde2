// Package scripts runs a closed set of deterministic helper programs behind
// two gates: a static registry that defines which scripts exist and a runtime
// allowlist that defines which of them may run.
package scripts

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ScriptID names a registered helper program.
type ScriptID string

const (
	ScoreFeatures      ScriptID = "score-features"
	ValidateFeatureSet ScriptID = "validate-feature-set"
)

// KnownScripts is every ScriptID the registry can map.
var KnownScripts = []ScriptID{ScoreFeatures, ValidateFeatureSet}

const (
	DefaultTimeout = 30 * time.Second
	// waitDelay bounds how long Wait drains pipes after the process is killed.
	waitDelay = 2 * time.Second
)

// ParseScriptID returns the ScriptID named by s, if any.
func ParseScriptID(s string) (ScriptID, bool) {
	for _, id := range KnownScripts {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

// Registry maps a ScriptID to the fixed argv that runs it.
type Registry map[ScriptID][]string

// DefaultRegistry runs each script as "<this executable> helper <script-id>".
func DefaultRegistry() (Registry, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve executable path")
	}
	reg := make(Registry, len(KnownScripts))
	for _, id := range KnownScripts {
		reg[id] = []string{exe, "helper", string(id)}
	}
	return reg, nil
}

// ParseAllowlist parses a comma separated list of script ids. Unknown entries
// are ignored.
func ParseAllowlist(csv string) map[ScriptID]struct{} {
	allowed := make(map[ScriptID]struct{})
	for _, entry := range strings.Split(csv, ",") {
		if id, ok := ParseScriptID(strings.TrimSpace(entry)); ok {
			allowed[id] = struct{}{}
		}
	}
	return allowed
}

// Policy executes allowlisted scripts.
type Policy struct {
	registry Registry
	allowed  map[ScriptID]struct{}
	workDir  string
	timeout  time.Duration
}

// Option configures a Policy.
type Option func(*Policy)

// WithRegistry replaces the default self-exec registry.
func WithRegistry(reg Registry) Option {
	return func(p *Policy) {
		p.registry = reg
	}
}

// WithWorkDir sets the working directory scripts run in.
func WithWorkDir(dir string) Option {
	return func(p *Policy) {
		p.workDir = dir
	}
}

// WithTimeout bounds each run. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPolicy builds a Policy from a comma separated allowlist.
func NewPolicy(allowlist string, opts ...Option) (*Policy, error) {
	p := &Policy{
		allowed: ParseAllowlist(allowlist),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.registry == nil {
		reg, err := DefaultRegistry()
		if err != nil {
			return nil, err
		}
		p.registry = reg
	}
	if p.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve working directory")
		}
		p.workDir = wd
	}
	return p, nil
}

// IsAllowed reports whether id is on the allowlist.
func (p *Policy) IsAllowed(id string) bool {
	_, ok := p.allowed[ScriptID(id)]
	return ok
}

// Allowed returns the allowlisted ids in sorted order.
func (p *Policy) Allowed() []ScriptID {
	ids := make([]ScriptID, 0, len(p.allowed))
	for id := range p.allowed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Timeout returns the per-run timeout.
func (p *Policy) Timeout() time.Duration {
	return p.timeout
}

// Run executes the script registered for id with input encoded as JSON on
// stdin. Empty stdout yields {"ok": true}; stdout that is not JSON yields
// {"text": stdout}.
func (p *Policy) Run(ctx context.Context, id string, input map[string]any) (any, error) {
	// The allowlist only holds known ids, so unknown ids stop here too.
	if !p.IsAllowed(id) {
		return nil, errors.Wrapf(ErrNotAllowed, "script '%s'", id)
	}
	scriptID := ScriptID(id)
	argv, ok := p.registry[scriptID]
	if !ok || len(argv) == 0 {
		return nil, errors.Wrapf(ErrUnknownScript, "script '%s' has no registered command", id)
	}

	if input == nil {
		input = map[string]any{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode script input")
	}

	var result any
	err = telemetry.WithSpan(ctx, "scripts.run", func(ctx context.Context) error {
		stdout, err := p.exec(ctx, scriptID, argv, payload)
		if err != nil {
			return err
		}
		result = parseOutput(stdout)
		return nil
	}, attribute.String("script.id", string(scriptID)))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Policy) exec(ctx context.Context, id ScriptID, argv []string, payload []byte) ([]byte, error) {
	log := logger.G(ctx).WithField("script_id", id)
	start := time.Now()

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = p.workDir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	isolateProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	log.Info("running allowlisted script")
	err := cmd.Run()
	log = log.WithField("duration", time.Since(start))

	if err == nil {
		log.WithField("exit_code", 0).Debug("script finished")
		return stdout.Bytes(), nil
	}

	execErr := &ExecutionError{
		ScriptID: id,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Timeout:  p.timeout,
		Err:      err,
	}
	switch {
	case ctx.Err() != nil:
		execErr.Err = ctx.Err()
	case execCtx.Err() == context.DeadlineExceeded:
		execErr.TimedOut = true
		execErr.Err = execCtx.Err()
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			execErr.ExitCode = exitErr.ExitCode()
		}
	}

	log.WithField("exit_code", execErr.ExitCode).WithError(err).Warn("script failed")
	return nil, execErr
}

func parseOutput(stdout []byte) any {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return map[string]any{"ok": true}
	}

	var parsed any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return map[string]any{"text": string(trimmed)}
	}
	return parsed
}
