package skills

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when no discovered skill matches a name.
	ErrNotFound = errors.New("skill not found")
	// ErrPathEscape is returned when a path resolves outside the skills root.
	ErrPathEscape = errors.New("path is outside of skills root")
	// ErrMissingFrontmatter is returned by the strict parser when a document has no header.
	ErrMissingFrontmatter = errors.New("missing frontmatter")
	// ErrInvalidSkillMetadata is returned when SKILL.md lacks a usable name or description.
	ErrInvalidSkillMetadata = errors.New("invalid skill metadata")
)
