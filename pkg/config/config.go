// Package config loads skill-engine settings from flags, environment variables
// and an optional config.yaml through viper.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jingkaihe/skill-engine/pkg/intent"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable.
const EnvPrefix = "SKILL_ENGINE"

// TracingConfig controls the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	SkillsRootDir       string        `mapstructure:"skills_root_dir"`
	SkillsCacheTTLMs    int           `mapstructure:"skills_cache_ttl_ms"`
	AgentAllowedScripts string        `mapstructure:"agent_allowed_scripts"`
	ScriptTimeout       time.Duration `mapstructure:"script_timeout"`
	WatchSkills         bool          `mapstructure:"watch_skills"`

	Provider                string        `mapstructure:"provider"`
	Model                   string        `mapstructure:"model"`
	APIKey                  string        `mapstructure:"api_key"`
	BaseURL                 string        `mapstructure:"base_url"`
	ClassifierTimeout       time.Duration `mapstructure:"classifier_timeout"`
	ClassifierRetryAttempts int           `mapstructure:"classifier_retry_attempts"`

	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Tracing   TracingConfig `mapstructure:"tracing"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Profile names an entry of Profiles to merge over the base settings.
	Profile  string                    `mapstructure:"profile"`
	Profiles map[string]map[string]any `mapstructure:"profiles"`
}

// CacheTTL returns the skill cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.SkillsCacheTTLMs) * time.Millisecond
}

// ModelConfig returns the settings for the Tier-2 classifier model.
func (c Config) ModelConfig() intent.ModelConfig {
	return intent.ModelConfig{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
	}
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the invariants the rest of the engine relies on.
func (c Config) Validate() error {
	if c.SkillsCacheTTLMs <= 0 {
		return errors.Errorf("skills_cache_ttl_ms must be a positive integer, got %d", c.SkillsCacheTTLMs)
	}
	if strings.TrimSpace(c.SkillsRootDir) == "" {
		return errors.New("skills_root_dir must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Provider {
	case intent.ProviderOpenAI, intent.ProviderAnthropic, intent.ProviderGoogle:
	default:
		return errors.Errorf("unsupported provider %q: must be openai, anthropic, or google", c.Provider)
	}
	if c.ClassifierRetryAttempts < 1 {
		return errors.Errorf("classifier_retry_attempts must be at least 1, got %d", c.ClassifierRetryAttempts)
	}
	if c.ClassifierTimeout <= 0 {
		return errors.Errorf("classifier_timeout must be positive, got %s", c.ClassifierTimeout)
	}
	if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
		return errors.Errorf("tracing.ratio must be between 0 and 1, got %v", c.Tracing.Ratio)
	}
	return nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("skills_root_dir", "skills")
	v.SetDefault("skills_cache_ttl_ms", 30000)
	v.SetDefault("agent_allowed_scripts", "score-features,validate-feature-set")
	v.SetDefault("script_timeout", "30s")
	v.SetDefault("watch_skills", false)

	v.SetDefault("provider", intent.ProviderOpenAI)
	v.SetDefault("model", intent.DefaultOpenAIModel)
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("classifier_timeout", "10s")
	v.SetDefault("classifier_retry_attempts", 2)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)

	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("profile", "")
}

// legacyEnv lists the unprefixed environment names still honoured per key.
var legacyEnv = map[string][]string{
	"skills_root_dir":       {"SKILLS_ROOT_DIR"},
	"skills_cache_ttl_ms":   {"SKILLS_CACHE_TTL_MS"},
	"agent_allowed_scripts": {"AGENT_ALLOWED_SCRIPTS"},
	"model":                 {"SKILL_ENGINE_MODEL"},
	"api_key":               {"SKILL_ENGINE_API_KEY", "AI_GATEWAY_API_KEY"},
}

// Init wires defaults, environment variables and the config file search
// path into v. A missing config file is not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(key)
		envs := []string{key, prefixed}
		for _, name := range names {
			if name != prefixed {
				envs = append(envs, name)
			}
		}
		if err := v.BindEnv(envs...); err != nil {
			return errors.Wrapf(err, "failed to bind environment for %s", key)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skill-engine")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}
	return nil
}

// Load unmarshals v into a Config, applies the active profile and validates
// the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if name := activeProfile(cfg.Profile); name != "" {
		profile, ok := cfg.Profiles[name]
		if !ok {
			return cfg, errors.Errorf("profile %q is not defined", name)
		}
		if err := applyProfile(&cfg, profile); err != nil {
			return cfg, err
		}
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = intent.ProviderOpenAI
	}
	// The default model only applies to openai; other providers pick their own.
	if cfg.Provider != intent.ProviderOpenAI && cfg.Model == intent.DefaultOpenAIModel {
		cfg.Model = ""
	}
	if cfg.APIKey == "" {
		cfg.APIKey = providerAPIKey(cfg.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// providerKeyEnv lists the well-known per-provider API key variables used
// when no api_key is configured.
var providerKeyEnv = map[string][]string{
	intent.ProviderOpenAI:    {"OPENAI_API_KEY"},
	intent.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	intent.ProviderGoogle:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

func providerAPIKey(provider string) string {
	for _, name := range providerKeyEnv[provider] {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

func activeProfile(name string) string {
	if name == "default" {
		return ""
	}
	return name
}

func applyProfile(cfg *Config, profile map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}

	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to apply profile configuration")
	}
	return nil
}
