// Package sysprompt renders the instructions handed to the agent collaborator:
// the tool-using workflow prompt built from the skill catalog and request
// context, and the plain general-chat prompt.
package sysprompt

// WorkflowPrompt renders the workflow-mode system prompt with the default templates.
func WorkflowPrompt(ctx *PromptContext) (string, error) {
	return defaultRenderer.RenderWorkflowPrompt(ctx)
}

// GeneralPrompt renders the general-mode system prompt with the default templates.
func GeneralPrompt(ctx *PromptContext) (string, error) {
	return defaultRenderer.RenderGeneralPrompt(ctx)
}
