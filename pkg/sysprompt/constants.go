package sysprompt

import "embed"

//go:embed templates/*
var TemplateFS embed.FS

const (
	ProductName = "Skill Engine Agent"

	LoadSkillTool           = "loadSkill"
	LoadSkillReferencesTool = "loadSkillReferences"
	RunScriptTool           = "runAllowlistedScript"
	EmitFeatureSetTool      = "emitFeatureSet"

	// Template paths
	WorkflowTemplate = "templates/workflow.tmpl"
	GeneralTemplate  = "templates/general.tmpl"
)
