package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"golang.org/x/time/rate"
)

// ScraperSource runs an external actor (e.g. an Apify-style run) that
// returns a JSON dataset: submit a run, poll for a terminal status, fetch
// the dataset.
type ScraperSource struct {
	host    string
	actorID string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewScraperSource builds a ScraperSource against the given actor host.
func NewScraperSource(host, actorID, token string, limiter *rate.Limiter) *ScraperSource {
	return &ScraperSource{
		host:    host,
		actorID: actorID,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}
}

// ProviderKind identifies the usage counter bucket for this provider.
func (s *ScraperSource) ProviderKind() db.APIKind { return db.APIKindRedditApify }

type actorRunResponse struct {
	Data struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Dataset struct {
			ID string `json:"id"`
		} `json:"defaultDatasetId"`
	} `json:"data"`
}

// runActor submits input, polls every 5s for a terminal status, and returns
// the raw dataset items for the finished run.
func (s *ScraperSource) runActor(ctx context.Context, input map[string]any) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal actor input: %w", err)
	}

	startURL := fmt.Sprintf("https://%s/v2/acts/%s/runs?token=%s", s.host, s.actorID, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to start actor run: %w", err)
	}
	var run actorRunResponse
	err = json.NewDecoder(resp.Body).Decode(&run)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode actor run response: %w", err)
	}

	runID := run.Data.ID
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		statusURL := fmt.Sprintf("https://%s/v2/acts/%s/runs/%s?token=%s", s.host, s.actorID, runID, s.token)
		statusReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return nil, err
		}
		statusResp, err := s.client.Do(statusReq)
		if err != nil {
			return nil, fmt.Errorf("failed to poll actor run: %w", err)
		}
		var polled actorRunResponse
		err = json.NewDecoder(statusResp.Body).Decode(&polled)
		statusResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode actor run status: %w", err)
		}

		switch polled.Data.Status {
		case "SUCCEEDED":
			run = polled
			goto fetchDataset
		case "FAILED", "ABORTED", "TIMED-OUT":
			return nil, fmt.Errorf("actor run ended with status %s", polled.Data.Status)
		}
	}

fetchDataset:
	datasetURL := fmt.Sprintf("https://%s/v2/datasets/%s/items?token=%s", s.host, run.Data.Dataset.ID, s.token)
	datasetReq, err := http.NewRequestWithContext(ctx, http.MethodGet, datasetURL, nil)
	if err != nil {
		return nil, err
	}
	datasetResp, err := s.client.Do(datasetReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer datasetResp.Body.Close()
	return io.ReadAll(datasetResp.Body)
}

type scraperCommunityItem struct {
	Name            string `json:"name"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Subscribers     int    `json:"subscribers"`
	NumberOfMembers int    `json:"numberOfMembers"`
	URL             string `json:"url"`
	NSFW            bool   `json:"nsfw"`
	Over18          bool   `json:"over18"`
	CreatedUTC      float64 `json:"createdUtc"`
}

// SearchCommunities runs the actor in community-search mode and normalizes
// the returned fields.
func (s *ScraperSource) SearchCommunities(ctx context.Context, queries []string, limit int) ([]Community, error) {
	raw, err := s.runActor(ctx, map[string]any{"mode": "search_communities", "queries": queries})
	if err != nil {
		return nil, fmt.Errorf("scraper search communities failed: %w", err)
	}

	var items []scraperCommunityItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode community dataset: %w", err)
	}

	out := make([]Community, 0, len(items))
	for _, item := range items {
		subs := item.Subscribers
		if subs == 0 {
			subs = item.NumberOfMembers
		}
		out = append(out, Community{
			Name:        item.Name,
			Title:       item.Title,
			Description: item.Description,
			Subscribers: subs,
			URL:         item.URL,
			IsNSFW:      item.NSFW || item.Over18,
			CreatedUTC:  time.Unix(int64(item.CreatedUTC), 0),
		})
	}
	return dedupCommunities(out, limit), nil
}

type scraperPostItem struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	Selftext       string  `json:"selftext"`
	Author         string  `json:"author"`
	AuthorName     string  `json:"authorName"`
	AuthorFullname string  `json:"authorFullname"`
	Score          int     `json:"score"`
	NumComments    int     `json:"numberOfComments"`
	CreatedUTC     float64 `json:"createdUtc"`
	URL            string  `json:"url"`
	Subreddit      string  `json:"communityName"`
	Flair          string  `json:"flair"`
	NSFW           bool    `json:"nsfw"`
	Over18         bool    `json:"over18"`
}

// ScrapeSubreddit runs the actor in subreddit-scrape mode and normalizes
// fields, dropping NSFW posts.
func (s *ScraperSource) ScrapeSubreddit(ctx context.Context, name string, maxPosts int, sort, timeFilter string) ([]Post, error) {
	if err := validateScrapeParams(sort, timeFilter); err != nil {
		return nil, err
	}

	raw, err := s.runActor(ctx, map[string]any{
		"mode":      "scrape_subreddit",
		"subreddit": name,
		"maxPosts":  maxPosts,
		"sort":      sort,
		"time":      timeFilter,
	})
	if err != nil {
		return s.scrapeHTMLFallback(ctx, name, maxPosts)
	}

	var items []scraperPostItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode post dataset: %w", err)
	}

	out := make([]Post, 0, len(items))
	for _, item := range items {
		if item.NSFW || item.Over18 {
			continue
		}
		content := item.Body
		if content == "" {
			content = item.Selftext
		}
		out = append(out, Post{
			ID:            item.ID,
			Title:         item.Title,
			Content:       content,
			Author:        firstNonEmpty("[deleted]", item.AuthorName, item.Author, item.AuthorFullname),
			Score:         item.Score,
			NumComments:   item.NumComments,
			CreatedUTC:    time.Unix(int64(item.CreatedUTC), 0),
			URL:           item.URL,
			SubredditName: firstNonEmpty(name, item.Subreddit),
			Flair:         item.Flair,
		})
	}
	return out, nil
}

// scrapeHTMLFallback is used only when the actor dataset call itself fails
// (e.g. the JSON actor endpoint is dead); it scrapes the public HTML
// listing page instead.
func (s *ScraperSource) scrapeHTMLFallback(ctx context.Context, name string, maxPosts int) ([]Post, error) {
	u := fmt.Sprintf("https://old.reddit.com/r/%s/new/", name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "leadsignal-scraper/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("html fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html listing: %w", err)
	}

	var out []Post
	doc.Find("div.thing").Each(func(i int, sel *goquery.Selection) {
		if len(out) >= maxPosts {
			return
		}
		id, _ := sel.Attr("data-fullname")
		title := strings.TrimSpace(sel.Find("a.title").First().Text())
		author := strings.TrimSpace(sel.Find("a.author").First().Text())
		link, _ := sel.Find("a.title").First().Attr("href")
		if id == "" || title == "" {
			return
		}
		out = append(out, Post{
			ID:            strings.TrimPrefix(id, "t3_"),
			Title:         title,
			Author:        firstNonEmpty("[deleted]", author),
			URL:           link,
			SubredditName: name,
			CreatedUTC:    time.Now(),
		})
	})
	return out, nil
}
