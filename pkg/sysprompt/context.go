package sysprompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/pkg/errors"
)

// ErrInvalidRequestContext is matched by every RequestContext validation failure.
var ErrInvalidRequestContext = errors.New("invalid request context")

// RequestContext is the optional product framing a caller sends with a chat.
// Nil fields were not sent.
type RequestContext struct {
	ProductType   *string  `json:"productType,omitempty"`
	Audience      *string  `json:"audience,omitempty"`
	Constraints   []string `json:"constraints,omitempty"`
	SuccessMetric *string  `json:"successMetric,omitempty"`
}

const (
	maxProductTypeLen = 120
	maxFieldLen       = 200
)

// Normalize trims every field in place and rejects any sent value that is
// empty after trimming or longer than its limit.
func (c *RequestContext) Normalize() error {
	var result *multierror.Error

	check := func(field string, value *string, limit int) {
		*value = strings.TrimSpace(*value)
		if n := utf8.RuneCountInString(*value); n < 1 || n > limit {
			result = multierror.Append(result, fmt.Errorf("%s must be between 1 and %d characters", field, limit))
		}
	}

	if c.ProductType != nil {
		check("productType", c.ProductType, maxProductTypeLen)
	}
	if c.Audience != nil {
		check("audience", c.Audience, maxFieldLen)
	}
	for i := range c.Constraints {
		check(fmt.Sprintf("constraints[%d]", i), &c.Constraints[i], maxFieldLen)
	}
	if c.SuccessMetric != nil {
		check("successMetric", c.SuccessMetric, maxFieldLen)
	}

	if result != nil {
		return errors.Wrap(ErrInvalidRequestContext, strings.Join(violations(result), "; "))
	}
	return nil
}

func violations(merr *multierror.Error) []string {
	out := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		out = append(out, err.Error())
	}
	return out
}

// PromptContext holds all variables for template rendering
type PromptContext struct {
	ProductName      string
	ModelDescription string

	ToolNames map[string]string

	Skills         []skills.Metadata
	AllowedScripts []string
	RequestContext *RequestContext
}

// NewPromptContext creates a new PromptContext with default values
func NewPromptContext(catalog []skills.Metadata, reqCtx *RequestContext) *PromptContext {
	return &PromptContext{
		ProductName:      ProductName,
		ModelDescription: "the language model configured for this deployment",
		ToolNames: map[string]string{
			"loadSkill":            LoadSkillTool,
			"loadSkillReferences":  LoadSkillReferencesTool,
			"runAllowlistedScript": RunScriptTool,
			"emitFeatureSet":       EmitFeatureSetTool,
		},
		Skills:         catalog,
		RequestContext: reqCtx,
	}
}

// WithAllowedScripts lists the script ids the agent may run.
func (c *PromptContext) WithAllowedScripts(ids []string) *PromptContext {
	c.AllowedScripts = ids
	return c
}

// WithModel describes the backing model as "<model> via <provider>".
func (c *PromptContext) WithModel(provider, model string) *PromptContext {
	switch {
	case provider != "" && model != "":
		c.ModelDescription = fmt.Sprintf("%s via %s", model, provider)
	case provider != "":
		c.ModelDescription = fmt.Sprintf("a %s model", provider)
	}
	return c
}
