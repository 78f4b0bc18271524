// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/microfinance-engine/internal/httputil"
	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// DefaultMaxPosts caps fetched posts when FeedFetcher.MaxPosts is unset.
const DefaultMaxPosts = 50

// feedResponse is the JSON document a feed provider returns.
type feedResponse struct {
	Posts []struct {
		Text string `json:"text"`
	} `json:"posts"`
}

// FeedFetcher pulls recent posts for a handle from HTTP feed providers.
type FeedFetcher struct {
	Guard     *httputil.Guard
	Providers []types.FeedProvider
	UserAgent string
	MaxPosts  int

	// Secret resolves FeedProvider.APIKeySecret. Nil sends no token.
	Secret func(key string) (string, error)
}

// FeedResult holds fetched posts and the per-provider errors that were
// tolerated.
type FeedResult struct {
	Posts          []string
	ProviderErrors []string
}

// Fetch queries every provider concurrently, then merges posts in provider
// order, dropping duplicates. It fails only when every provider fails.
func (f *FeedFetcher) Fetch(ctx context.Context, handle string) (FeedResult, error) {
	if len(f.Providers) == 0 {
		return FeedResult{}, fmt.Errorf("no feed providers configured")
	}
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return FeedResult{}, fmt.Errorf("empty social handle")
	}

	posts := make([][]string, len(f.Providers))
	errs := make([]error, len(f.Providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range f.Providers {
		g.Go(func() error {
			// Provider failures are recorded, not returned, so one bad
			// provider does not cancel the others.
			posts[i], errs[i] = f.fetchOne(gctx, p, handle)
			return nil
		})
	}
	_ = g.Wait()

	log := logging.WithComponent(ctx, "social")
	var res FeedResult
	var failed []error
	for i, p := range f.Providers {
		if errs[i] != nil {
			res.ProviderErrors = append(res.ProviderErrors, fmt.Sprintf("%s: %v", p.Name, errs[i]))
			failed = append(failed, fmt.Errorf("%s: %w", p.Name, errs[i]))
			log.Warn().Err(errs[i]).Str("provider", p.Name).Msg("feed provider failed")
		}
	}
	if len(failed) == len(f.Providers) {
		return res, fmt.Errorf("all feed providers failed: %w", errors.Join(failed...))
	}

	res.Posts = dedupePosts(posts, f.maxPosts())
	return res, nil
}

func (f *FeedFetcher) fetchOne(ctx context.Context, p types.FeedProvider, handle string) ([]string, error) {
	if f.Guard == nil {
		return nil, fmt.Errorf("no HTTP client configured")
	}
	target := strings.ReplaceAll(p.URL, "{handle}", url.PathEscape(handle))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	if p.APIKeySecret != "" && f.Secret != nil {
		token, err := f.Secret(p.APIKeySecret)
		if err != nil {
			return nil, fmt.Errorf("resolving secret %s: %w", p.APIKeySecret, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.Guard.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}
	out := make([]string, 0, len(body.Posts))
	for _, post := range body.Posts {
		if t := strings.TrimSpace(post.Text); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FeedFetcher) maxPosts() int {
	if f.MaxPosts > 0 {
		return f.MaxPosts
	}
	return DefaultMaxPosts
}

// dedupePosts flattens per-provider posts, dropping any whose normalized
// text was already seen, and stops at limit.
func dedupePosts(groups [][]string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range groups {
		for _, p := range g {
			key := normalizePost(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// normalizePost lowercases text and collapses whitespace.
func normalizePost(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
