package featureset

import (
	"fmt"
	"strings"
)

// ValidateFeatureSet implements the validate-feature-set program and returns
// every structural violation found in payload. An empty result means valid.
// Arrays count as objects without fields, so an array payload or item is
// reported by its missing fields.
func ValidateFeatureSet(payload any) []string {
	obj, ok := asObject(payload)
	if !ok {
		return []string{"Input must be an object."}
	}

	errs := []string{}

	selected, ok := obj["selected"].([]any)
	if !ok || len(selected) == 0 {
		errs = append(errs, "selected must be a non-empty array.")
	}
	deferred, ok := obj["deferred"].([]any)
	if !ok {
		errs = append(errs, "deferred must be an array.")
	}

	for i, raw := range selected {
		item, ok := asObject(raw)
		if !ok {
			errs = append(errs, fmt.Sprintf("selected[%d] must be an object.", i))
			continue
		}
		if !isNonEmptyString(item["featureId"]) {
			errs = append(errs, fmt.Sprintf("selected[%d].featureId is required.", i))
		}
		if !isNonEmptyString(item["title"]) {
			errs = append(errs, fmt.Sprintf("selected[%d].title is required.", i))
		}
		if p, _ := item["priority"].(string); !Priority(p).Valid() {
			errs = append(errs, fmt.Sprintf("selected[%d].priority must be P0, P1, or P2.", i))
		}
		if !isNonEmptyString(item["rationale"]) {
			errs = append(errs, fmt.Sprintf("selected[%d].rationale is required.", i))
		}
		if deps, present := item["dependencies"]; present && !isStringArray(deps) {
			errs = append(errs, fmt.Sprintf("selected[%d].dependencies must be a string array.", i))
		}
	}

	for i, raw := range deferred {
		item, ok := asObject(raw)
		if !ok {
			errs = append(errs, fmt.Sprintf("deferred[%d] must be an object.", i))
			continue
		}
		if !isNonEmptyString(item["featureId"]) {
			errs = append(errs, fmt.Sprintf("deferred[%d].featureId is required.", i))
		}
		if !isNonEmptyString(item["reason"]) {
			errs = append(errs, fmt.Sprintf("deferred[%d].reason is required.", i))
		}
	}

	return errs
}

// ValidationReport wraps ValidateFeatureSet in the {ok, errors} program output.
func ValidationReport(payload any) map[string]any {
	errs := ValidateFeatureSet(payload)
	return map[string]any{
		"ok":     len(errs) == 0,
		"errors": errs,
	}
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		return map[string]any{}, true
	default:
		return nil, false
	}
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isStringArray(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}
