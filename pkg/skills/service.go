package skills

import (
	"context"
	"strings"
	"time"

	"github.com/jingkaihe/skill-engine/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL is how long Service keeps a successful lookup.
const DefaultCacheTTL = 30 * time.Second

const catalogKey = "catalog"

// Service is a caching facade over a Store. The catalog, skill documents and
// reference lists are cached independently; failed lookups are never cached.
type Service struct {
	store      Store
	ttl        time.Duration
	now        func() time.Time
	catalog    *ttlCache[[]Metadata]
	skills     *ttlCache[*Skill]
	references *ttlCache[[]Reference]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTTL overrides DefaultCacheTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wraps store with TTL caches.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		ttl:   DefaultCacheTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.catalog = newTTLCache[[]Metadata](s.ttl, s.now)
	s.skills = newTTLCache[*Skill](s.ttl, s.now)
	s.references = newTTLCache[[]Reference](s.ttl, s.now)
	return s
}

// TTL returns the configured cache lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// DiscoverSkillMetadata returns the skill catalog.
func (s *Service) DiscoverSkillMetadata(ctx context.Context) ([]Metadata, error) {
	if cached, ok := s.catalog.get(catalogKey); ok {
		logger.G(ctx).WithField("cache", "catalog").Debug("cache hit")
		return cached, nil
	}

	logger.G(ctx).WithField("cache", "catalog").Debug("cache miss")
	discovered, err := s.store.DiscoverSkills(ctx)
	if err != nil {
		return nil, err
	}
	s.catalog.set(catalogKey, discovered)
	return discovered, nil
}

// LoadSkill returns the named skill. Names are matched case-insensitively.
func (s *Service) LoadSkill(ctx context.Context, name string) (*Skill, error) {
	key := strings.ToLower(name)
	if cached, ok := s.skills.get(key); ok {
		logger.G(ctx).WithField("cache", "skill").WithField("key", key).Debug("cache hit")
		return cached, nil
	}

	logger.G(ctx).WithField("cache", "skill").WithField("key", key).Debug("cache miss")
	skill, err := s.store.LoadSkill(ctx, name)
	if err != nil {
		return nil, err
	}
	s.skills.set(key, skill)
	return skill, nil
}

// LoadReferences returns the reference documents of the named skill.
func (s *Service) LoadReferences(ctx context.Context, name string) ([]Reference, error) {
	key := strings.ToLower(name)
	if cached, ok := s.references.get(key); ok {
		logger.G(ctx).WithField("cache", "references").WithField("key", key).Debug("cache hit")
		return cached, nil
	}

	logger.G(ctx).WithField("cache", "references").WithField("key", key).Debug("cache miss")
	references, err := s.store.LoadReferences(ctx, name)
	if err != nil {
		return nil, err
	}
	s.references.set(key, references)
	return references, nil
}

// LoadSkillBundle loads the skill and its references concurrently.
func (s *Service) LoadSkillBundle(ctx context.Context, name string) (*Bundle, error) {
	var bundle Bundle

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		skill, err := s.LoadSkill(gctx, name)
		bundle.Skill = skill
		return err
	})
	g.Go(func() error {
		references, err := s.LoadReferences(gctx, name)
		bundle.References = references
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ClearCache drops every cached entry regardless of expiry.
func (s *Service) ClearCache() {
	s.catalog.clear()
	s.skills.clear()
	s.references.clear()
}
