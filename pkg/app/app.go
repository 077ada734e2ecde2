// Package app assembles the engine's long-lived components from a Config.
package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jingkaihe/skill-engine/pkg/config"
	"github.com/jingkaihe/skill-engine/pkg/intent"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/jingkaihe/skill-engine/pkg/tools"
	"github.com/pkg/errors"
)

// Resources holds the wired components shared by every surface.
type Resources struct {
	Config     config.Config
	Store      *skills.LocalStore
	Skills     *skills.Service
	Policy     *scripts.Policy
	Classifier *intent.Classifier
	Tools      *tools.Registry

	watcher *skills.Watcher
}

// Option customises New.
type Option func(*options)

type options struct {
	model    intent.Model
	registry scripts.Registry
	workDir  string
}

// WithModel overrides the Tier-2 model built from the configuration.
func WithModel(model intent.Model) Option {
	return func(o *options) { o.model = model }
}

// WithScriptRegistry overrides the script command registry.
func WithScriptRegistry(reg scripts.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithWorkDir sets the project root used for relative paths and script runs.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// New builds Resources from cfg. The skills root is resolved against the
// working directory. Tier 2 is only enabled when an API key is configured.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Resources, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve working directory")
		}
		o.workDir = wd
	}

	root := cfg.SkillsRootDir
	if !filepath.IsAbs(root) {
		root = filepath.Join(o.workDir, root)
	}

	store, err := skills.NewLocalStore(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open skills root")
	}
	service := skills.NewService(store, skills.WithTTL(cfg.CacheTTL()))

	policyOpts := []scripts.Option{
		scripts.WithWorkDir(o.workDir),
		scripts.WithTimeout(cfg.ScriptTimeout),
	}
	if o.registry != nil {
		policyOpts = append(policyOpts, scripts.WithRegistry(o.registry))
	}
	policy, err := scripts.NewPolicy(cfg.AgentAllowedScripts, policyOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build script policy")
	}

	model := o.model
	if model == nil && cfg.APIKey != "" {
		model, err = intent.NewModel(ctx, cfg.ModelConfig())
		if err != nil {
			return nil, errors.Wrap(err, "failed to build classifier model")
		}
	}
	if model == nil {
		logger.G(ctx).Info("no api key configured, ambiguous messages route to general")
	}

	classifier := intent.NewClassifier(model,
		intent.WithTimeout(cfg.ClassifierTimeout),
		intent.WithAttempts(cfg.ClassifierRetryAttempts),
	)

	logger.G(ctx).
		WithField("skills_root", store.Root()).
		WithField("allowed_scripts", policy.Allowed()).
		WithField("cache_ttl", service.TTL()).
		Debug("resources initialised")

	return &Resources{
		Config:     cfg,
		Store:      store,
		Skills:     service,
		Policy:     policy,
		Classifier: classifier,
		Tools:      tools.NewRegistry(service, policy),
	}, nil
}

// StartWatcher watches the skills root and clears the skill caches on change
// until ctx is cancelled. It is a no-op unless watch_skills is enabled.
func (r *Resources) StartWatcher(ctx context.Context) error {
	if !r.Config.WatchSkills || r.watcher != nil {
		return nil
	}

	w, err := skills.NewWatcher(r.Store.Root(), r.Skills)
	if err != nil {
		return errors.Wrap(err, "failed to start skills watcher")
	}
	r.watcher = w
	go w.Run(ctx)

	logger.G(ctx).WithField("root", r.Store.Root()).Info("watching skill catalog for changes")
	return nil
}

// Close releases the watcher, if any.
func (r *Resources) Close() error {
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	r.watcher = nil
	return err
}
