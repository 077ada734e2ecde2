package main

import (
	"context"
	"os"

	"github.com/jingkaihe/skill-engine/pkg/app"
	"github.com/jingkaihe/skill-engine/pkg/config"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/presenter"
	"github.com/jingkaihe/skill-engine/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// skipSetupAnnotation marks commands that run without loading configuration.
const skipSetupAnnotation = "skill-engine/skip-setup"

var (
	appConfig       config.Config
	shutdownTracing telemetry.ShutdownFunc = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "skill-engine",
	Short: "Skill catalog, intent routing and helper scripts for a product-planning assistant",
	Long: `skill-engine is the backend of a guided product-planning chat assistant.

It decides whether a conversation should enter the feature-planning workflow or
stay in general chat, serves a read-only catalog of skills and their reference
documents, and runs an allowlisted set of deterministic helper scripts on behalf
of the agent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipSetupAnnotation] != "" {
			return nil
		}
		return setup(cmd.Context(), viper.GetViper())
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if err := shutdownTracing(context.WithoutCancel(cmd.Context())); err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to flush traces")
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("skills-root", "skills", "Directory containing the skill catalog")
	flags.String("allowed-scripts", "score-features,validate-feature-set", "Comma separated helper scripts the agent may run")
	flags.Bool("watch-skills", false, "Clear skill caches when the catalog changes on disk")
	flags.String("provider", "openai", "Classifier model provider (openai, anthropic or google)")
	flags.String("model", "", "Classifier model (defaults per provider)")
	flags.String("profile", "", "Named configuration profile to apply")
	flags.String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "fmt", "Log format (fmt, text or json)")

	bindFlags(flags, map[string]string{
		"skills_root_dir":       "skills-root",
		"agent_allowed_scripts": "allowed-scripts",
		"watch_skills":          "watch-skills",
		"provider":              "provider",
		"model":                 "model",
		"profile":               "profile",
		"log_level":             "log-level",
		"log_format":            "log-format",
	})
}

func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		viper.BindPFlag(key, flags.Lookup(name))
	}
}

// setup loads the configuration from v and configures logging and tracing.
func setup(ctx context.Context, v *viper.Viper) error {
	if err := config.Init(v); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return errors.Wrapf(err, "invalid log_level %q", cfg.LogLevel)
	}

	shutdown, err := initTracing(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialise tracing")
	}

	appConfig = cfg
	shutdownTracing = shutdown
	return nil
}

// newResources wires the engine from cfg.
func newResources(ctx context.Context, cfg config.Config, opts ...app.Option) (*app.Resources, error) {
	res, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise skill engine")
	}
	return res, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
