// Package tools defines the contract between the agent collaborator and the
// tools it may call.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/skill-engine/pkg/featureset"
	"go.opentelemetry.io/otel/attribute"
)

type Tool interface {
	GenerateSchema() *jsonschema.Schema
	Name() string
	Description() string
	ValidateInput(state State, parameters string) error
	Execute(ctx context.Context, state State, parameters string) ToolResult
	TracingKVs(parameters string) ([]attribute.KeyValue, error)
}

type ToolResult interface {
	// GetResult returns the JSON encoded tool output.
	GetResult() string
	GetError() string
	IsError() bool
	// Cause returns the underlying error, nil on success.
	Cause() error
	AssistantFacing() string
	StructuredData() StructuredToolResult
}

// State is request scoped. A fresh State is created for every agent run.
type State interface {
	FeatureSet() *featureset.FeatureSet
	SetFeatureSet(fs featureset.FeatureSet)
}

// BaseToolResult is returned when a call fails before a tool runs.
type BaseToolResult struct {
	ToolName string
	Result   string
	Err      error
}

func (r BaseToolResult) GetResult() string { return r.Result }

func (r BaseToolResult) GetError() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r BaseToolResult) IsError() bool { return r.Err != nil }

func (r BaseToolResult) Cause() error { return r.Err }

func (r BaseToolResult) AssistantFacing() string {
	return StringifyToolResult(r.Result, r.GetError())
}

func (r BaseToolResult) StructuredData() StructuredToolResult {
	return NewStructuredResult(r.ToolName, r.Err, nil)
}

// StringifyToolResult renders a result for the model.
func StringifyToolResult(result, err string) string {
	var out strings.Builder
	if err != "" {
		fmt.Fprintf(&out, "<error>\n%s\n</error>\n", err)
	}
	if result == "" {
		result = "(No output)"
	}
	fmt.Fprintf(&out, "<result>\n%s\n</result>\n", result)
	return out.String()
}
