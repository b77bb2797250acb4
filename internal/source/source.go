// Package source adapts external Reddit content providers to the two
// operations the rest of the pipeline needs: discovering candidate
// communities and scraping a subreddit's recent posts.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/config"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"golang.org/x/time/rate"
)

// Community is a Reddit community surfaced by SearchCommunities.
type Community struct {
	Name        string
	Title       string
	Description string
	Subscribers int
	URL         string
	IsNSFW      bool
	CreatedUTC  time.Time
}

// Post is a Reddit submission surfaced by ScrapeSubreddit.
type Post struct {
	ID            string
	Title         string
	Content       string
	Author        string
	Score         int
	NumComments   int
	CreatedUTC    time.Time
	URL           string
	SubredditName string
	Flair         string
}

// Source is the RedditSource interface: two interchangeable provider
// variants implement it (ScraperSource, DirectAPISource).
type Source interface {
	SearchCommunities(ctx context.Context, queries []string, limit int) ([]Community, error)
	ScrapeSubreddit(ctx context.Context, name string, maxPosts int, sort, timeFilter string) ([]Post, error)
	ProviderKind() db.APIKind
}

// Factory builds the configured Source variant, keyed on
// config.RedditAPIProvider ("scraper" or "direct"). Picking the variant at
// startup and holding it as a polymorphic value avoids any runtime
// reflection on the config string.
func Factory(cfg *config.Config, creds *config.CredentialStore, limiter *rate.Limiter) (Source, error) {
	switch cfg.RedditAPIProvider {
	case "scraper":
		token, err := creds.Get("reddit_scraper")
		if err != nil {
			return nil, fmt.Errorf("reddit scraper credentials: %w", err)
		}
		return NewScraperSource(cfg.ScraperHost, cfg.ScraperActorID, token, limiter), nil
	case "direct":
		key, err := creds.Get("reddit_direct")
		if err != nil {
			return nil, fmt.Errorf("reddit direct-api credentials: %w", err)
		}
		return NewDirectAPISource(cfg.DirectAPIHost, key, limiter), nil
	default:
		return nil, fmt.Errorf("unknown REDDIT_API_PROVIDER %q", cfg.RedditAPIProvider)
	}
}

// dedupCommunities de-duplicates by name preferring the highest subscriber
// count, drops NSFW, sorts desc by subscribers and truncates to limit — the
// shared normalization both provider variants apply identically (spec
// leaves tie ordering among equal-subscriber duplicates unspecified).
func dedupCommunities(in []Community, limit int) []Community {
	best := make(map[string]Community, len(in))
	order := make([]string, 0, len(in))
	for _, c := range in {
		if c.IsNSFW {
			continue
		}
		existing, ok := best[c.Name]
		if !ok {
			order = append(order, c.Name)
			best[c.Name] = c
			continue
		}
		if c.Subscribers > existing.Subscribers {
			best[c.Name] = c
		}
	}

	out := make([]Community, 0, len(order))
	for _, name := range order {
		out = append(out, best[name])
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Subscribers > out[i].Subscribers {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// firstNonEmpty absorbs upstream field-name variation: authorName → author →
// authorFullname → fallback, tried in order.
func firstNonEmpty(fallback string, candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return fallback
}
