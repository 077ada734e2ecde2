package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/pkg/errors"
)

// Store is the read side of a skill catalog.
type Store interface {
	DiscoverSkills(ctx context.Context) ([]Metadata, error)
	LoadSkill(ctx context.Context, name string) (*Skill, error)
	LoadReferences(ctx context.Context, name string) ([]Reference, error)
}

var _ Store = (*LocalStore)(nil)

// LocalStore serves skills from a directory tree. Every path it reads is
// confined to the root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir. Relative roots are resolved
// against the current working directory.
func NewLocalStore(dir string) (*LocalStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve skills root %s", dir)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the absolute skills root.
func (s *LocalStore) Root() string {
	return s.root
}

// resolvePath normalizes p (relative paths are taken from the root) and
// rejects anything that lands outside the root.
func (s *LocalStore) resolvePath(p string) (string, error) {
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.root, target)
	}
	target = filepath.Clean(target)

	if target != s.root && !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrPathEscape, "%s", p)
	}
	return target, nil
}

// ReadFile reads a file addressed relative to the root, or by an absolute
// path inside it.
func (s *LocalStore) ReadFile(_ context.Context, p string) (string, error) {
	resolved, err := s.resolvePath(p)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", p)
	}
	return string(content), nil
}

// DiscoverSkills lists the root's immediate subdirectories in name order and
// returns the metadata of every one holding a valid SKILL.md. Directories
// that fail to load are skipped. When two skills share a name
// (case-insensitively) the first one wins.
func (s *LocalStore) DiscoverSkills(ctx context.Context) ([]Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skills root")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	discovered := make([]Metadata, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Symlinks are never followed, so a link cannot lead discovery out of the root.
		if !entry.IsDir() {
			logger.G(ctx).WithField("dir", entry.Name()).Debug("skipping non-directory entry")
			continue
		}

		metadata, err := s.readSkillMetadata(entry.Name())
		if err != nil {
			logger.G(ctx).WithError(err).WithField("dir", entry.Name()).Debug("skipping skill directory")
			continue
		}

		key := strings.ToLower(metadata.Name)
		if _, dup := seen[key]; dup {
			logger.G(ctx).WithField("dir", entry.Name()).WithField("name", metadata.Name).Debug("skipping duplicate skill name")
			continue
		}
		seen[key] = struct{}{}
		discovered = append(discovered, metadata)
	}

	return discovered, nil
}

func (s *LocalStore) readSkillMetadata(dirName string) (Metadata, error) {
	skillDir, err := s.resolvePath(dirName)
	if err != nil {
		return Metadata{}, err
	}

	skillFile, err := s.resolvePath(filepath.Join(skillDir, skillFileName))
	if err != nil {
		return Metadata{}, err
	}
	info, err := os.Lstat(skillFile)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "failed to stat skill file")
	}
	if !info.Mode().IsRegular() {
		return Metadata{}, errors.Errorf("%s is not a regular file", skillFileName)
	}
	content, err := os.ReadFile(skillFile)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "failed to read skill file")
	}

	fm, err := ParseSkillFrontmatter(string(content))
	if err != nil {
		return Metadata{}, errors.Wrapf(err, "skill at %s", skillDir)
	}

	return Metadata{
		Name:        fm.Name,
		Description: fm.Description,
		Path:        skillDir,
		Slug:        Slugify(fm.Name),
	}, nil
}

// lookup resolves a skill name case-insensitively against a fresh discovery.
func (s *LocalStore) lookup(ctx context.Context, name string) (Metadata, error) {
	skills, err := s.DiscoverSkills(ctx)
	if err != nil {
		return Metadata{}, err
	}

	for _, skill := range skills {
		if strings.EqualFold(skill.Name, name) {
			return skill, nil
		}
	}
	return Metadata{}, errors.Wrapf(ErrNotFound, "skill '%s'", name)
}

// LoadSkill returns the SKILL.md body of the named skill.
func (s *LocalStore) LoadSkill(ctx context.Context, name string) (*Skill, error) {
	metadata, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	content, err := s.ReadFile(ctx, filepath.Join(metadata.Path, skillFileName))
	if err != nil {
		return nil, err
	}

	return &Skill{
		Name:           metadata.Name,
		Description:    metadata.Description,
		Slug:           metadata.Slug,
		SkillDirectory: metadata.Path,
		Content:        StripFrontmatter(content),
	}, nil
}

// LoadReferences returns every *.md file in the skill's references directory
// in name order. A skill without a references directory has no references.
func (s *LocalStore) LoadReferences(ctx context.Context, name string) ([]Reference, error) {
	metadata, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	referencesDir, err := s.resolvePath(filepath.Join(metadata.Path, referencesDirName))
	if err != nil {
		return nil, err
	}

	if info, err := os.Lstat(referencesDir); err != nil || !info.IsDir() {
		return []Reference{}, nil
	}
	entries, err := os.ReadDir(referencesDir)
	if err != nil {
		return []Reference{}, nil
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".md") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	references := make([]Reference, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		absolutePath, err := s.resolvePath(filepath.Join(referencesDir, file))
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(absolutePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read reference %s", file)
		}

		references = append(references, Reference{
			Path:         absolutePath,
			RelativePath: filepath.Join(referencesDirName, file),
			Content:      StripFrontmatter(string(content)),
			Metadata:     ParseReferenceFrontmatter(string(content)),
		})
	}

	return references, nil
}
