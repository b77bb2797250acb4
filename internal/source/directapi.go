package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"golang.org/x/time/rate"
)

// DirectAPISource calls a RapidAPI-style Reddit gateway directly over
// HTTPS, paginating with an `after` cursor until either the post budget or
// the end of stream is reached.
type DirectAPISource struct {
	host    string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDirectAPISource builds a DirectAPISource against the given gateway host.
func NewDirectAPISource(host, apiKey string, limiter *rate.Limiter) *DirectAPISource {
	return &DirectAPISource{
		host:    host,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
	}
}

// ProviderKind identifies the usage counter bucket for this provider.
func (d *DirectAPISource) ProviderKind() db.APIKind { return db.APIKindRedditRapidAPI }

func (d *DirectAPISource) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("https://%s/%s", d.host, endpoint)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-host", d.host)
	req.Header.Set("x-rapidapi-key", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("direct api %s returned %d: %s", endpoint, resp.StatusCode, string(body))
	}
	return body, nil
}

type directCommunityItem struct {
	Name            string  `json:"name"`
	Title           string  `json:"title"`
	PublicDesc      string  `json:"public_description"`
	Subscribers     int     `json:"subscribers"`
	NumberOfMembers int     `json:"numberOfMembers"`
	URL             string  `json:"url"`
	Over18          bool    `json:"over18"`
	CreatedUTC      float64 `json:"created_utc"`
}

type directSearchResponse struct {
	Data []directCommunityItem `json:"data"`
}

// SearchCommunities calls /subreddits_search and normalizes fields.
func (d *DirectAPISource) SearchCommunities(ctx context.Context, queries []string, limit int) ([]Community, error) {
	var all []Community
	for _, q := range queries {
		body, err := d.get(ctx, "subreddits_search", url.Values{"q": {q}})
		if err != nil {
			return nil, fmt.Errorf("subreddits_search %q: %w", q, err)
		}

		var resp directSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode subreddits_search response: %w", err)
		}

		for _, item := range resp.Data {
			subs := item.Subscribers
			if subs == 0 {
				subs = item.NumberOfMembers
			}
			all = append(all, Community{
				Name:        item.Name,
				Title:       item.Title,
				Description: item.PublicDesc,
				Subscribers: subs,
				URL:         item.URL,
				IsNSFW:      item.Over18,
				CreatedUTC:  time.Unix(int64(item.CreatedUTC), 0),
			})
		}
	}
	return dedupCommunities(all, limit), nil
}

type directPostItem struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	SelfText       string  `json:"selftext"`
	Author         string  `json:"author"`
	AuthorFullname string  `json:"author_fullname"`
	Score          int     `json:"score"`
	NumComments    int     `json:"num_comments"`
	CreatedUTC     float64 `json:"created_utc"`
	Permalink      string  `json:"permalink"`
	Subreddit      string  `json:"subreddit"`
	LinkFlairText  string  `json:"link_flair_text"`
	Over18         bool    `json:"over_18"`
}

type directNewResponse struct {
	Data struct {
		Children []struct {
			Data directPostItem `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

// ScrapeSubreddit paginates /subreddit_new with an `after` cursor until
// maxPosts is satisfied or the stream ends.
func (d *DirectAPISource) ScrapeSubreddit(ctx context.Context, name string, maxPosts int, sort, timeFilter string) ([]Post, error) {
	if err := validateScrapeParams(sort, timeFilter); err != nil {
		return nil, err
	}

	var out []Post
	after := ""

	for len(out) < maxPosts {
		params := url.Values{"subreddit": {name}}
		if after != "" {
			params.Set("after", after)
		}

		body, err := d.get(ctx, "subreddit_new", params)
		if err != nil {
			return nil, fmt.Errorf("subreddit_new %s: %w", name, err)
		}

		var resp directNewResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode subreddit_new response: %w", err)
		}
		if len(resp.Data.Children) == 0 {
			break
		}

		for _, child := range resp.Data.Children {
			if len(out) >= maxPosts {
				break
			}
			item := child.Data
			if item.Over18 {
				continue
			}
			out = append(out, Post{
				ID:            item.ID,
				Title:         item.Title,
				Content:       item.SelfText,
				Author:        firstNonEmpty("[deleted]", item.Author, item.AuthorFullname),
				Score:         item.Score,
				NumComments:   item.NumComments,
				CreatedUTC:    time.Unix(int64(item.CreatedUTC), 0),
				URL:           "https://www.reddit.com" + item.Permalink,
				SubredditName: firstNonEmpty(name, item.Subreddit),
				Flair:         item.LinkFlairText,
			})
		}

		after = resp.Data.After
		if after == "" {
			break
		}
	}

	return out, nil
}
