// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/microfinance-engine/internal/cache"
	"github.com/pdiddy/microfinance-engine/internal/config"
	"github.com/pdiddy/microfinance-engine/internal/container"
	"github.com/pdiddy/microfinance-engine/internal/engine"
	"github.com/pdiddy/microfinance-engine/internal/httputil"
	"github.com/pdiddy/microfinance-engine/internal/intake"
	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/internal/ocr"
	"github.com/pdiddy/microfinance-engine/internal/social"
	"github.com/pdiddy/microfinance-engine/internal/store"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// Secret names resolved from .secrets/ or the keyring.
const (
	secretAnthropicKey  = "anthropic-api-key"
	secretRedisPassword = "redis-password"
	secretPostgresDSN   = "postgres-dsn"
)

// loadConfig reads the engine configuration and fills credentials from
// secrets where the config leaves them empty.
func loadConfig() (types.EngineConfig, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	cfg.Social.AI.APIKey = loadedSecrets.Default(secretAnthropicKey, cfg.Social.AI.APIKey)
	if cfg.Cache.Addr != "" {
		cfg.Cache.Password = loadedSecrets.Default(secretRedisPassword, cfg.Cache.Password)
	}
	if cfg.Store.Driver == store.DriverPostgres {
		cfg.Store.DSN = loadedSecrets.Default(secretPostgresDSN, cfg.Store.DSN)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newGuard(cfg types.HTTPConfig) *httputil.Guard {
	return httputil.NewGuard(&http.Client{Timeout: cfg.Timeout}, httputil.GuardConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		BreakerTimeout:    cfg.BreakerTimeout,
	})
}

func newLoader(cfg types.EngineConfig, persist bool) *intake.Loader {
	return &intake.Loader{
		DataDir:          cfg.Store.DataDir,
		UserAgent:        cfg.HTTP.UserAgent,
		Guard:            newGuard(cfg.HTTP),
		MaxDocumentBytes: cfg.KYC.MaxDocumentBytes,
		Persist:          persist,
	}
}

// newExtractor returns the OCR router when OCR is enabled, or nil.
func newExtractor(ctx context.Context, cfg types.KYCConfig) (ocr.Extractor, error) {
	if !cfg.OCR {
		return nil, nil
	}
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("OCR needs a container runtime: %w", err)
	}
	tess, err := ocr.NewTesseractExtractor(ctx, rt, cfg.OCRImage)
	if err != nil {
		return nil, err
	}
	return ocr.NewRouter(tess), nil
}

func newBackend(cfg types.SocialConfig) (social.SentimentBackend, error) {
	if cfg.Sentiment != types.SentimentClaude {
		return social.NewLexiconBackend(), nil
	}
	b, err := social.NewClaudeBackend(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("claude sentiment: %w (store it with 'microfinance secrets set %s')", err, secretAnthropicKey)
	}
	return b, nil
}

// buildEngine wires every stage from cfg. The returned closer releases the
// polarity cache.
func buildEngine(ctx context.Context, cfg types.EngineConfig, st engine.Saver) (*engine.Engine, io.Closer, error) {
	extractor, err := newExtractor(ctx, cfg.KYC)
	if err != nil {
		return nil, nil, err
	}
	backend, err := newBackend(cfg.Social)
	if err != nil {
		return nil, nil, err
	}
	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	closer := io.Closer(nopCloser{})
	if cl, ok := c.(io.Closer); ok {
		closer = cl
	}

	analyzer := social.NewAnalyzer(backend, c)
	if cfg.Cache.TTL > 0 {
		analyzer.CacheTTL = cfg.Cache.TTL
	}
	if cfg.Social.Sentiment == types.SentimentClaude {
		analyzer.MaxRetries = cfg.Social.AI.MaxRetries
	}

	var feeds *social.FeedFetcher
	if len(cfg.Social.Providers) > 0 {
		feeds = &social.FeedFetcher{
			Guard:     newGuard(cfg.Social.HTTPConfig),
			Providers: cfg.Social.Providers,
			UserAgent: cfg.Social.UserAgent,
			MaxPosts:  cfg.Social.MaxPosts,
			Secret:    loadedSecrets.Resolve,
		}
	}

	opts := engine.Options{
		Extractor:        extractor,
		MaxDocumentBytes: cfg.KYC.MaxDocumentBytes,
		Analyzer:         analyzer,
		Feeds:            feeds,
		Policy:           cfg.Policy,
		Store:            st,
	}
	eng, err := engine.New(opts)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	logging.WithComponent(ctx, "cli").Debug().
		Str("sentiment", backend.Name()).
		Bool("ocr", extractor != nil).
		Int("feed_providers", len(cfg.Social.Providers)).
		Msg("engine ready")
	return eng, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
