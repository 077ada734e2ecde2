package tools

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/jingkaihe/skill-engine/pkg/featureset"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/pkg/errors"
)

// StructuredToolResult represents a tool's execution result with structured metadata
type StructuredToolResult struct {
	ToolName  string       `json:"toolName"`
	Success   bool         `json:"success"`
	Error     string       `json:"error,omitempty"`
	Metadata  ToolMetadata `json:"metadata,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewStructuredResult builds a StructuredToolResult stamped with the current time.
func NewStructuredResult(toolName string, err error, metadata ToolMetadata) StructuredToolResult {
	result := StructuredToolResult{
		ToolName:  toolName,
		Success:   err == nil,
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Metadata = metadata
	return result
}

// rawStructuredToolResult is used for JSON marshaling/unmarshaling
type rawStructuredToolResult struct {
	ToolName     string          `json:"toolName"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	MetadataType string          `json:"metadataType,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// MarshalJSON implements custom JSON marshaling for StructuredToolResult
func (s StructuredToolResult) MarshalJSON() ([]byte, error) {
	raw := rawStructuredToolResult{
		ToolName:  s.ToolName,
		Success:   s.Success,
		Error:     s.Error,
		Timestamp: s.Timestamp,
	}

	if s.Metadata != nil {
		raw.MetadataType = s.Metadata.ToolType()

		metadataBytes, err := json.Marshal(s.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal metadata")
		}
		raw.Metadata = metadataBytes
	}

	return json.Marshal(raw)
}

// metadataTypeRegistry maps metadata type strings to their corresponding Go types
var metadataTypeRegistry = map[string]reflect.Type{
	"loadSkill":            reflect.TypeOf(LoadSkillMetadata{}),
	"loadSkillReferences":  reflect.TypeOf(LoadSkillReferencesMetadata{}),
	"runAllowlistedScript": reflect.TypeOf(RunScriptMetadata{}),
	"emitFeatureSet":       reflect.TypeOf(EmitFeatureSetMetadata{}),
}

// UnmarshalJSON implements custom JSON unmarshaling for StructuredToolResult
func (s *StructuredToolResult) UnmarshalJSON(data []byte) error {
	var raw rawStructuredToolResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.ToolName = raw.ToolName
	s.Success = raw.Success
	s.Error = raw.Error
	s.Timestamp = raw.Timestamp

	if raw.MetadataType != "" && len(raw.Metadata) > 0 {
		metadataType, exists := metadataTypeRegistry[raw.MetadataType]
		if !exists {
			// Unknown metadata type, leave as nil
			return nil
		}

		metadataPtr := reflect.New(metadataType)
		if err := json.Unmarshal(raw.Metadata, metadataPtr.Interface()); err != nil {
			return errors.Wrapf(err, "failed to unmarshal metadata of type %s", raw.MetadataType)
		}
		s.Metadata = metadataPtr.Elem().Interface().(ToolMetadata)
	}

	return nil
}

// ToolMetadata is a marker interface for tool-specific metadata structures.
// Each metadata value is also the JSON output the tool returns to its caller.
type ToolMetadata interface {
	ToolType() string
}

type LoadSkillMetadata struct {
	SkillDirectory string `json:"skillDirectory"`
	Content        string `json:"content"`
}

func (m LoadSkillMetadata) ToolType() string { return "loadSkill" }

type ReferenceOutput struct {
	Path     string                   `json:"path"`
	Metadata skills.ReferenceMetadata `json:"metadata"`
	Content  string                   `json:"content"`
}

type LoadSkillReferencesMetadata struct {
	ReferenceCount int               `json:"referenceCount"`
	References     []ReferenceOutput `json:"references"`
}

func (m LoadSkillReferencesMetadata) ToolType() string { return "loadSkillReferences" }

type RunScriptMetadata struct {
	ScriptID string `json:"scriptId"`
	Result   any    `json:"result"`
}

func (m RunScriptMetadata) ToolType() string { return "runAllowlistedScript" }

type EmitFeatureSetMetadata struct {
	OK            bool                  `json:"ok"`
	FeatureSet    featureset.FeatureSet `json:"featureSet"`
	SelectedCount int                   `json:"selectedCount"`
	DeferredCount int                   `json:"deferredCount"`
}

func (m EmitFeatureSetMetadata) ToolType() string { return "emitFeatureSet" }
