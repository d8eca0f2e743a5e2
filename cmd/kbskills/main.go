// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the kbskills CLI.
package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Stellven/KBSkills/internal/logger"
	"github.com/Stellven/KBSkills/internal/secrets"
	"github.com/Stellven/KBSkills/internal/telemetry"
	"github.com/Stellven/KBSkills/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, loaded before every command runs.
	cfg types.Config

	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "kbskills",
	Short: "Turn a topic into a knowledge-grounded outline",
	Long: `kbskills decomposes a topic into sub-topics, retrieves knowledge for each
from a LightRAG knowledge base (or a local SQLite chunk index), applies the
thinking frameworks of matching skills, and writes a structured outline of
the concerns the knowledge base holds about the topic.

Skills are YAML documents under skills_dir. Settings come from kbskills.yaml,
KBSKILLS_* environment variables, and flags; API keys may also live in
.secrets/.`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTracing(context.Background())
	},
}

func init() {
	// Assigned here rather than in the rootCmd literal to avoid an
	// initialization cycle (loadConfig refers to rootCmd).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		if err := logger.Configure(cfg.Log); err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logger.L.WithField("file", f).Debug("using config file")
		}

		shutdown, err := telemetry.Init(cmd.Context(), cfg.Tracing, version)
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	}

	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./kbskills.yaml or ~/.config/kbskills/kbskills.yaml)")
	pf.String("secrets-dir", ".secrets", "directory of API key files")
	pf.String("data-dir", "", "knowledge base data directory")
	pf.String("skills-dir", "", "skill definition directory")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = viper.BindPFlag("skills_dir", pf.Lookup("skills-dir"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
}

func initConfig() {
	setDefaults(viper.GetViper(), types.DefaultConfig())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("kbskills")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "kbskills"))
		}
	}

	bindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.L.WithError(err).Warn("could not read config file")
		}
	}
}

// bindEnv maps KBSKILLS_<KEY> variables onto config keys, with "." in
// nested keys replaced by "_" (KBSKILLS_LLM_MODEL sets llm.model).
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("KBSKILLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults registers every config key so that environment variables
// override keys absent from the config file.
func setDefaults(v *viper.Viper, d types.Config) {
	defaults := map[string]any{
		"data_dir":   d.DataDir,
		"skills_dir": d.SkillsDir,

		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,

		"llm.provider":    d.LLM.Provider,
		"llm.model":       d.LLM.Model,
		"llm.api_key":     d.LLM.APIKey,
		"llm.base_url":    d.LLM.BaseURL,
		"llm.max_tokens":  d.LLM.MaxTokens,
		"llm.temperature": d.LLM.Temperature,
		"llm.max_retries": d.LLM.MaxRetries,
		"llm.retry_delay": d.LLM.RetryDelay,

		"embedding.provider":   d.Embedding.Provider,
		"embedding.model":      d.Embedding.Model,
		"embedding.api_key":    d.Embedding.APIKey,
		"embedding.base_url":   d.Embedding.BaseURL,
		"embedding.dimensions": d.Embedding.Dimensions,

		"retrieval.backend":           string(d.Retrieval.Backend),
		"retrieval.endpoint":          d.Retrieval.Endpoint,
		"retrieval.api_key":           d.Retrieval.APIKey,
		"retrieval.only_need_context": d.Retrieval.OnlyNeedContext,
		"retrieval.default_mode":      string(d.Retrieval.DefaultMode),
		"retrieval.timeout":           d.Retrieval.Timeout,
		"retrieval.max_results":       d.Retrieval.MaxResults,
		"retrieval.index_path":        d.Retrieval.IndexPath,

		"matcher.weights.domain":    d.Matcher.Weights.Domain,
		"matcher.weights.keyword":   d.Matcher.Weights.Keyword,
		"matcher.weights.intent":    d.Matcher.Weights.Intent,
		"matcher.default_threshold": d.Matcher.DefaultThreshold,
		"matcher.cache_size":        d.Matcher.CacheSize,

		"agent.max_concurrent_retrievals": d.Agent.MaxConcurrentRetrievals,
		"agent.stage_retries":             d.Agent.StageRetries,
		"agent.max_skills":                d.Agent.MaxSkills,
		"agent.max_context_chars":         d.Agent.MaxContextChars,

		"tracing.enabled": d.Tracing.Enabled,
		"tracing.sampler": d.Tracing.Sampler,
		"tracing.ratio":   d.Tracing.Ratio,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// loadConfig decodes viper settings, fills API keys from .secrets/ and the
// provider environment variables, and validates the result.
func loadConfig() (types.Config, error) {
	var c types.Config
	if err := viper.Unmarshal(&c); err != nil {
		return c, errors.Wrap(err, "decoding configuration")
	}

	dir, _ := rootCmd.PersistentFlags().GetString("secrets-dir")
	store, err := secrets.Load(dir)
	if err != nil {
		return c, err
	}
	c.LLM.APIKey = store.Lookup(secrets.KeyForProvider(c.LLM.Provider), c.LLM.APIKey)
	c.Embedding.APIKey = store.Lookup(secrets.KeyForProvider(c.Embedding.Provider), c.Embedding.APIKey)
	c.Retrieval.APIKey = store.Lookup(secrets.LightRAGAPIKey, c.Retrieval.APIKey)

	return c, c.Validate()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
