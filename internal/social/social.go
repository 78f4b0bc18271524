// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package social analyses an applicant's social media posts for sentiment
// and business activity, and fetches posts from feed providers.
package social

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/microfinance-engine/internal/cache"
	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// BusinessKeywords mark a post as business activity.
var BusinessKeywords = []string{"business", "customer", "product", "service", "growth"}

// Thresholds for risk factors and opportunities.
const (
	negativeSentiment = -0.2
	positiveSentiment = 0.6
	lowActivity       = 0.3
	highActivity      = 0.7
)

const (
	riskNegativeSentiment = "Negative social media sentiment"
	riskLowActivity       = "Low business activity"
	oppPositivePresence   = "Strong positive online presence"
	oppHighEngagement     = "High business engagement"
)

// DefaultCacheTTL applies when the Analyzer has a cache but no TTL.
const DefaultCacheTTL = 24 * time.Hour

// SentimentBackend scores the polarity of one text in [-1,1].
type SentimentBackend interface {
	Name() string
	Polarity(ctx context.Context, text string) (float64, error)
}

// Analyzer scores posts with a SentimentBackend, caching polarities.
type Analyzer struct {
	Backend SentimentBackend

	// Cache is optional. Cache failures never fail an analysis.
	Cache    cache.Cache
	CacheTTL time.Duration

	// MaxRetries for backend calls (0 = no retries).
	MaxRetries int
}

// NewAnalyzer returns an Analyzer over backend. A nil backend selects the
// lexicon backend.
func NewAnalyzer(backend SentimentBackend, c cache.Cache) *Analyzer {
	if backend == nil {
		backend = NewLexiconBackend()
	}
	return &Analyzer{Backend: backend, Cache: c, CacheTTL: DefaultCacheTTL}
}

// Analyze scores posts. With no posts every score is zero and no factors
// are reported. Blank posts count toward the averages with zero polarity
// and never reach the backend.
func (a *Analyzer) Analyze(ctx context.Context, posts []string) (types.SocialAnalysis, error) {
	res := types.SocialAnalysis{
		RiskFactors:   []string{},
		Opportunities: []string{},
		Backend:       a.Backend.Name(),
	}
	if len(posts) == 0 {
		return res, nil
	}

	var total float64
	var business int
	for _, text := range posts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pol, err := a.polarity(ctx, text)
		if err != nil {
			res.Error = err.Error()
			return res, fmt.Errorf("scoring post sentiment: %w", err)
		}
		total += pol
		if mentionsBusiness(text) {
			business++
		}
	}

	n := float64(len(posts))
	res.PostCount = len(posts)
	res.SentimentScore = total / n
	res.BusinessActivity = float64(business) / n

	if res.SentimentScore < negativeSentiment {
		res.RiskFactors = append(res.RiskFactors, riskNegativeSentiment)
	}
	if res.BusinessActivity < lowActivity {
		res.RiskFactors = append(res.RiskFactors, riskLowActivity)
	}
	if res.SentimentScore > positiveSentiment {
		res.Opportunities = append(res.Opportunities, oppPositivePresence)
	}
	if res.BusinessActivity > highActivity {
		res.Opportunities = append(res.Opportunities, oppHighEngagement)
	}
	return res, nil
}

func (a *Analyzer) polarity(ctx context.Context, text string) (float64, error) {
	key := CacheKey(a.Backend.Name(), text)
	if a.Cache != nil {
		if raw, ok := a.Cache.Get(ctx, key); ok {
			if v, err := strconv.ParseFloat(string(raw), 64); err == nil {
				return v, nil
			}
		}
	}

	pol, err := callWithRetry(ctx, a.Backend, text, a.MaxRetries)
	if err != nil {
		return 0, err
	}
	pol = clamp(pol)

	if a.Cache != nil {
		ttl := a.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		a.Cache.Set(ctx, key, []byte(strconv.FormatFloat(pol, 'g', -1, 64)), ttl)
	}
	logging.FromContext(ctx).Debug().Str("backend", a.Backend.Name()).Float64("polarity", pol).Msg("post scored")
	return pol, nil
}

// CacheKey identifies a polarity by backend and exact post text.
func CacheKey(backend, text string) string {
	sum := sha256.Sum256([]byte(backend + "\x00" + text))
	return "polarity:" + hex.EncodeToString(sum[:])
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the backend with exponential backoff.
func callWithRetry(ctx context.Context, backend SentimentBackend, text string, maxRetries int) (float64, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		v, err := backend.Polarity(ctx, text)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	if maxRetries == 0 {
		return 0, lastErr
	}
	return 0, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

func mentionsBusiness(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range BusinessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}
