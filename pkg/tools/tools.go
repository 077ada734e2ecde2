// Package tools implements the fixed tool contract the agent collaborator
// calls into: loading skills and references, running allowlisted scripts and
// emitting the final feature set.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/jingkaihe/skill-engine/pkg/telemetry"
	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidInput wraps tool parameter decoding and validation failures.
var ErrInvalidInput = errors.New("invalid tool input")

// ErrUnknownTool is returned when a call names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// SkillLoader is the part of skills.Service the tools need.
type SkillLoader interface {
	LoadSkill(ctx context.Context, name string) (*skills.Skill, error)
	LoadReferences(ctx context.Context, name string) ([]skills.Reference, error)
}

// ScriptRunner is the part of scripts.Policy the tools need.
type ScriptRunner interface {
	Run(ctx context.Context, id string, input map[string]any) (any, error)
	Allowed() []scripts.ScriptID
}

// Registry holds the contract tools in a fixed order.
type Registry struct {
	tools  []tooltypes.Tool
	byName map[string]tooltypes.Tool
}

// NewRegistry builds the four contract tools over loader and runner.
func NewRegistry(loader SkillLoader, runner ScriptRunner) *Registry {
	r := &Registry{byName: make(map[string]tooltypes.Tool)}
	for _, tool := range []tooltypes.Tool{
		&LoadSkillTool{loader: loader},
		&LoadSkillReferencesTool{loader: loader},
		&RunAllowlistedScriptTool{runner: runner},
		&EmitFeatureSetTool{},
	} {
		r.tools = append(r.tools, tool)
		r.byName[tool.Name()] = tool
	}
	return r
}

// Tools returns every registered tool.
func (r *Registry) Tools() []tooltypes.Tool {
	return r.tools
}

// Get returns the named tool.
func (r *Registry) Get(name string) (tooltypes.Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

var (
	tracer = telemetry.Tracer("skill-engine.tools")
)

// RunTool validates parameters and executes the named tool inside a span.
func (r *Registry) RunTool(ctx context.Context, state tooltypes.State, toolName string, parameters string) tooltypes.ToolResult {
	tool, ok := r.Get(toolName)
	if !ok {
		return tooltypes.BaseToolResult{
			ToolName: toolName,
			Err:      errors.Wrapf(ErrUnknownTool, "tool '%s'", toolName),
		}
	}

	kvs, err := tool.TracingKVs(parameters)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to get tracing kvs")
	}

	ctx, span := tracer.Start(
		ctx,
		fmt.Sprintf("tools.run_tool.%s", toolName),
		trace.WithAttributes(kvs...),
	)
	defer span.End()

	ctx = logger.WithField(ctx, "tool", toolName)

	err = tool.ValidateInput(state, parameters)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return tooltypes.BaseToolResult{ToolName: toolName, Err: err}
	}
	result := tool.Execute(ctx, state, parameters)

	if result.IsError() {
		span.SetStatus(codes.Error, result.GetError())
		span.RecordError(result.Cause())
		logger.G(ctx).WithError(result.Cause()).Debug("tool call failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result
}

func decodeInput(parameters string, v any) error {
	if err := json.Unmarshal([]byte(parameters), v); err != nil {
		return errors.Wrapf(ErrInvalidInput, "malformed parameters: %v", err)
	}
	return nil
}
