package skills

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// frontmatterPattern matches a leading `---` line, the header body, and the
// next `---` line.
var frontmatterPattern = regexp.MustCompile(`\A---\r?\n((?s:.*?))\r?\n---(?:\r?\n|\z)`)

// SkillFrontmatter is the validated header of a SKILL.md document.
type SkillFrontmatter struct {
	Name        string
	Description string
}

// splitFrontmatter returns the raw header and the remainder of the document.
// ok is false when the document carries no header.
func splitFrontmatter(content string) (header string, body string, ok bool) {
	loc := frontmatterPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return "", content, false
	}
	return content[loc[2]:loc[3]], content[loc[1]:], true
}

// StripFrontmatter removes the header block, if any, and trims the result.
// It never fails.
func StripFrontmatter(content string) string {
	_, body, _ := splitFrontmatter(content)
	return strings.TrimSpace(body)
}

func parseFrontmatter(content string) (map[string]any, error) {
	header, _, ok := splitFrontmatter(content)
	if !ok || header == "" {
		return nil, ErrMissingFrontmatter
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(header), &parsed); err != nil {
		return nil, errors.Wrapf(ErrInvalidSkillMetadata, "malformed frontmatter: %v", err)
	}
	if parsed == nil {
		return nil, errors.Wrap(ErrInvalidSkillMetadata, "frontmatter is not a mapping")
	}
	return parsed, nil
}

// ParseSkillFrontmatter is the strict parser used for SKILL.md. It fails with
// ErrMissingFrontmatter when there is no header and with
// ErrInvalidSkillMetadata when name or description is absent, not a string,
// or blank.
func ParseSkillFrontmatter(content string) (SkillFrontmatter, error) {
	parsed, err := parseFrontmatter(content)
	if err != nil {
		return SkillFrontmatter{}, err
	}

	name, _ := parsed["name"].(string)
	if strings.TrimSpace(name) == "" {
		return SkillFrontmatter{}, errors.Wrap(ErrInvalidSkillMetadata, "missing a valid 'name'")
	}

	description, _ := parsed["description"].(string)
	if strings.TrimSpace(description) == "" {
		return SkillFrontmatter{}, errors.Wrap(ErrInvalidSkillMetadata, "missing a valid 'description'")
	}

	return SkillFrontmatter{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}, nil
}

// ParseReferenceFrontmatter is the permissive parser used for reference
// documents. Any failure yields an empty ReferenceMetadata.
func ParseReferenceFrontmatter(content string) ReferenceMetadata {
	parsed, err := parseFrontmatter(content)
	if err != nil {
		return ReferenceMetadata{}
	}

	return ReferenceMetadata{
		FeatureID:    trimmedString(parsed["feature_id"]),
		Title:        trimmedString(parsed["title"]),
		Category:     trimmedString(parsed["category"]),
		PriorityHint: priorityHint(parsed["priority_hint"]),
		Dependencies: stringList(parsed["dependencies"]),
		Tags:         stringList(parsed["tags"]),
	}
}

func trimmedString(value any) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

func priorityHint(value any) PriorityHint {
	s, _ := value.(string)
	switch hint := PriorityHint(s); hint {
	case PriorityCore, PriorityHigh, PriorityMedium, PriorityLow:
		return hint
	default:
		return ""
	}
}

// stringList keeps the non-empty trimmed string entries of a YAML sequence.
func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
