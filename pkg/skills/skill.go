// Package skills provides read-only, path-confined access to an on-disk
// catalog of skills. A skill is a directory containing a SKILL.md file with
// YAML frontmatter (name, description) and an optional references/ directory
// of markdown documents that ground the agent's feature choices.
//
// Store does the filesystem work; Service layers TTL caches over a Store so
// that repeated lookups within the TTL window cost no I/O.
package skills

import (
	"regexp"
	"strings"
)

const (
	skillFileName     = "SKILL.md"
	referencesDirName = "references"
)

// Metadata is the catalog entry for a discovered skill.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"` // absolute skill directory
	Slug        string `json:"slug"`
}

// Skill is a loaded SKILL.md with its frontmatter stripped.
type Skill struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Slug           string `json:"slug"`
	SkillDirectory string `json:"skillDirectory"`
	Content        string `json:"content"`
}

// PriorityHint is the relative importance a reference document suggests for
// the feature it describes.
type PriorityHint string

// Known priority hints. Any other frontmatter value is dropped.
const (
	PriorityCore   PriorityHint = "core"
	PriorityHigh   PriorityHint = "high"
	PriorityMedium PriorityHint = "medium"
	PriorityLow    PriorityHint = "low"
)

// ReferenceMetadata is the optional frontmatter of a reference document.
// Every field may be absent. Dependencies and Tags are nil only when the
// header failed to parse; a parsed header always carries both lists.
type ReferenceMetadata struct {
	FeatureID    string       `json:"feature_id,omitempty"`
	Title        string       `json:"title,omitempty"`
	Category     string       `json:"category,omitempty"`
	PriorityHint PriorityHint `json:"priority_hint,omitempty"`
	Dependencies []string     `json:"dependencies,omitzero"`
	Tags         []string     `json:"tags,omitzero"`
}

// Reference is a markdown document from a skill's references directory.
type Reference struct {
	Path         string            `json:"path"`
	RelativePath string            `json:"relativePath"`
	Content      string            `json:"content"`
	Metadata     ReferenceMetadata `json:"metadata"`
}

// Bundle is a skill together with all of its references.
type Bundle struct {
	Skill      *Skill      `json:"skill"`
	References []Reference `json:"references"`
}

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\-\s]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
)

// Slugify derives a stable slug from a skill name: lowercase, anything other
// than [a-z0-9], hyphen and whitespace removed, whitespace runs replaced by a
// single hyphen.
func Slugify(name string) string {
	slug := slugDisallowed.ReplaceAllString(strings.ToLower(name), "")
	return slugWhitespace.ReplaceAllString(slug, "-")
}
