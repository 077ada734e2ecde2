package tools

import (
	"encoding/json"

	tooltypes "github.com/jingkaihe/skill-engine/pkg/types/tools"
)

// jsonToolResult is the result of every contract tool: its metadata is the
// JSON document returned to the caller.
type jsonToolResult struct {
	toolName string
	metadata tooltypes.ToolMetadata
	err      error
}

func (r *jsonToolResult) GetResult() string {
	if r.err != nil || r.metadata == nil {
		return ""
	}
	data, err := json.Marshal(r.metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

func (r *jsonToolResult) GetError() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}

func (r *jsonToolResult) IsError() bool {
	return r.err != nil
}

func (r *jsonToolResult) Cause() error {
	return r.err
}

func (r *jsonToolResult) AssistantFacing() string {
	return tooltypes.StringifyToolResult(r.GetResult(), r.GetError())
}

func (r *jsonToolResult) StructuredData() tooltypes.StructuredToolResult {
	return tooltypes.NewStructuredResult(r.toolName, r.err, r.metadata)
}
