// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles the pipeline configuration from defaults, an
// optional YAML file, MILESTONE_ENGINE_* environment variables, and the
// .secrets/ directory.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/pdiddy/milestone-engine/internal/secrets"
	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	// Name is the config file base name and the env prefix source.
	Name = "milestone-engine"

	// EnvPrefix prefixes environment overrides, e.g.
	// MILESTONE_ENGINE_EVALUATION_BATCH_SIZE.
	EnvPrefix = "MILESTONE_ENGINE"

	// DefaultModel is the Claude model used when none is configured.
	DefaultModel = "claude-sonnet-4-5-20250929"
)

// SetDefaults registers a default for every key so that environment
// overrides resolve through Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.reference_files", []string{})

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.user_agent", "milestone-engine/0.1")

	for _, stage := range []string{"extraction", "evaluation"} {
		v.SetDefault(stage+".model", DefaultModel)
		v.SetDefault(stage+".api_key", "")
		v.SetDefault(stage+".max_retries", 3)
		v.SetDefault(stage+".temperature", 0.0)
		v.SetDefault(stage+".max_tokens", 4096)
		v.SetDefault(stage+".call_timeout", 120*time.Second)
	}
	v.SetDefault("extraction.short_item_chars", 1500)
	v.SetDefault("extraction.max_batch_items", 5)

	v.SetDefault("evaluation.batch_size", 40)
	v.SetDefault("evaluation.nomination_retries", 3)
	v.SetDefault("evaluation.skip_corroboration", false)
	v.SetDefault("evaluation.candidate_delay", 2*time.Second)
	v.SetDefault("evaluation.signals.timeout", 30*time.Second)
	v.SetDefault("evaluation.signals.user_agent", "milestone-engine/0.1")
	v.SetDefault("evaluation.signals.window_days", 7)
	v.SetDefault("evaluation.signals.hackernews.enabled", true)
	v.SetDefault("evaluation.signals.hackernews.min_points", 500.0)
	v.SetDefault("evaluation.signals.trends.enabled", true)
	v.SetDefault("evaluation.signals.trends.baseline_topic", "ChatGPT")
	v.SetDefault("evaluation.signals.trends.min_ratio", 0.25)
	v.SetDefault("evaluation.signals.trends.geo", "")

	v.SetDefault("publish.repo", "")
	v.SetDefault("publish.base_branch", "main")
	v.SetDefault("publish.branch_prefix", "milestones/update-")
	v.SetDefault("publish.labels", []string{"milestone-candidates"})

	v.SetDefault("audit.db_path", "data/audit.db")
	v.SetDefault("audit.export_dir", "data/audit")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", Name)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Setup points v at cfgFile, or at milestone-engine.yaml in the working
// directory and ~/.config/milestone-engine/, and enables env overrides.
func Setup(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Read loads the config file if one exists. It returns the file used, or
// "" when running on defaults alone.
func Read(v *viper.Viper) (string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", eris.Wrapf(types.ErrConfiguration, "reading config: %v", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes v into a Config and fills API keys from loaded secrets when
// neither the file nor the environment set them.
func Load(v *viper.Viper, loaded map[string]string) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, eris.Wrapf(types.ErrConfiguration, "decoding config: %v", err)
	}
	key := loaded[secrets.AnthropicAPIKey]
	if cfg.Extraction.APIKey == "" {
		cfg.Extraction.APIKey = key
	}
	if cfg.Evaluation.APIKey == "" {
		cfg.Evaluation.APIKey = key
	}
	return cfg, nil
}

// RequireAPIKey fails with ErrConfiguration when ai has no key. Commands
// call it before any network traffic.
func RequireAPIKey(stage string, ai types.AIConfig) error {
	if strings.TrimSpace(ai.APIKey) == "" {
		return eris.Wrapf(types.ErrConfiguration,
			"%s: no Anthropic API key (set %s_%s_API_KEY or write .secrets/%s)",
			stage, EnvPrefix, strings.ToUpper(stage), secrets.AnthropicAPIKey)
	}
	return nil
}
