// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config reads the engine configuration from a YAML file,
// MICROFINANCE_* environment variables and command-line flags via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/microfinance-engine/internal/decision"
	"github.com/pdiddy/microfinance-engine/internal/kyc"
	"github.com/pdiddy/microfinance-engine/internal/ocr"
	"github.com/pdiddy/microfinance-engine/internal/social"
	"github.com/pdiddy/microfinance-engine/internal/store"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

const (
	// FileName is the config file base name, searched as microfinance.yaml.
	FileName  = "microfinance"
	EnvPrefix = "MICROFINANCE"

	DefaultUserAgent = "microfinance-engine/0.1"
)

// Keys for settings that live outside types.EngineConfig.
const (
	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyDataDir   = "store.data_dir"
)

// SetDefaults registers every default. Keys must be registered for
// environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("http.burst", 2)
	v.SetDefault("http.breaker_timeout", 30*time.Second)

	v.SetDefault("kyc.ocr", false)
	v.SetDefault("kyc.ocr_image", ocr.DefaultImage)
	v.SetDefault("kyc.max_document_bytes", kyc.DefaultMaxDocumentBytes)

	v.SetDefault("social.timeout", 15*time.Second)
	v.SetDefault("social.user_agent", DefaultUserAgent)
	v.SetDefault("social.requests_per_second", 1.0)
	v.SetDefault("social.burst", 1)
	v.SetDefault("social.breaker_timeout", 30*time.Second)
	v.SetDefault("social.sentiment", string(types.SentimentLexicon))
	v.SetDefault("social.ai.model", social.DefaultClaudeModel)
	v.SetDefault("social.ai.api_key", "")
	v.SetDefault("social.ai.max_retries", 3)
	v.SetDefault("social.max_posts", social.DefaultMaxPosts)

	v.SetDefault("cache.addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", social.DefaultCacheTTL)

	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.dsn", "")
	v.SetDefault(KeyDataDir, ".")
	v.SetDefault("store.max_results", 20)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_window", time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	def := decision.DefaultPolicy()
	v.SetDefault("policy.weights.credit", def.Weights.Credit)
	v.SetDefault("policy.weights.esg", def.Weights.ESG)
	v.SetDefault("policy.weights.sentiment", def.Weights.Sentiment)
	v.SetDefault("policy.revenue_target", def.RevenueTarget)

	v.SetDefault("concurrency", 4)
}

// Init points v at cfgFile, or at microfinance.yaml in the working
// directory or ~/.config/microfinance/, and enables environment overrides.
// A missing config file is not an error; the path of a file that was read
// is returned.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals and validates the engine configuration.
func Load(v *viper.Viper) (types.EngineConfig, error) {
	var cfg types.EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports settings no component can run with.
func Validate(cfg types.EngineConfig) error {
	switch cfg.Social.Sentiment {
	case types.SentimentLexicon, types.SentimentClaude:
	default:
		return fmt.Errorf("social.sentiment %q: use lexicon or claude", cfg.Social.Sentiment)
	}
	switch cfg.Store.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("store.driver %q: use %s or %s", cfg.Store.Driver, store.DriverSQLite, store.DriverPostgres)
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", cfg.Concurrency)
	}
	for i, p := range cfg.Social.Providers {
		if p.Name == "" || !strings.Contains(p.URL, "{handle}") {
			return fmt.Errorf("social.providers[%d] needs a name and a url containing {handle}", i)
		}
	}
	if len(cfg.Policy.Tiers) > 0 {
		if err := decision.Validate(cfg.Policy); err != nil {
			return err
		}
	}
	return nil
}
