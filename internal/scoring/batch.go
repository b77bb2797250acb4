// Package scoring implements the two-phase LLM engine: batch relevancy
// scoring for freshly-fetched posts, and on-demand outreach suggestions for
// the highest scorers.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cheolwanpark/leadsignal/engine/internal/llm"
	"github.com/cheolwanpark/leadsignal/engine/internal/usage"
)

const (
	defaultBatchSize   = 20
	defaultConcurrency = 5
)

// ScoreResult is one post's scoring outcome.
type ScoreResult struct {
	PostID string
	Score  int
	Reason string
}

// Suggestion is one post's generated outreach text.
type Suggestion struct {
	PostID           string
	SuggestedComment string
	SuggestedDM      string
	OK               bool
}

// ProgressFunc reports batch-level progress; batchesDone counts finished
// batches and rises by one per call, while which batch finished is not
// reported since batches run concurrently.
type ProgressFunc func(batchesDone, batchesTotal int)

// Service is the BatchScoringService: batch quick-scoring plus
// on-demand suggestion generation, both fanned out under a bounded
// worker count.
type Service struct {
	client      llm.Client
	usage       *usage.Counter
	batchSize   int
	concurrency int
}

// New builds a Service. batchSize <= 0 defaults to 20, concurrency <= 0
// defaults to 5.
func New(client llm.Client, usageCounter *usage.Counter, batchSize, concurrency int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{client: client, usage: usageCounter, batchSize: batchSize, concurrency: concurrency}
}

type batchResponse struct {
	Scores []struct {
		PostID string `json:"postId"`
		Score  int    `json:"score"`
		Reason string `json:"reason"`
	} `json:"scores"`
}

// BatchScore chunks posts into batches of s.batchSize and scores each batch
// with one LLM call, running up to s.concurrency batches at a time. The
// returned slice always has exactly len(posts) entries, one per input post,
// in no particular order.
func (s *Service) BatchScore(ctx context.Context, userID string, posts []ScorablePost, businessDescription string, onProgress ProgressFunc) []ScoreResult {
	batches := chunkPosts(posts, s.batchSize)

	results := make([]ScoreResult, 0, len(posts))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	done := 0
	total := len(batches)

	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			batchResults := s.scoreBatch(ctx, userID, batch, businessDescription)

			mu.Lock()
			results = append(results, batchResults...)
			done++
			if onProgress != nil {
				onProgress(done, total)
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

func (s *Service) scoreBatch(ctx context.Context, userID string, batch []ScorablePost, businessDescription string) []ScoreResult {
	text, err := s.client.GenerateJSON(ctx, batchSystemInstruction, buildBatchPrompt(businessDescription, batch))
	if s.usage != nil {
		if usageErr := s.usage.Increment(userID, s.client.ProviderKind(), 1, 0, 0); usageErr != nil {
			// usage accounting failure must never block scoring
			_ = usageErr
		}
	}
	if err != nil {
		return fallbackAll(batch, 50, fmt.Sprintf("Batch error: %s", err.Error()))
	}

	var parsed batchResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return fallbackAll(batch, 50, fmt.Sprintf("Batch error: %s", err.Error()))
	}

	byID := make(map[string]ScoreResult, len(parsed.Scores))
	for _, entry := range parsed.Scores {
		byID[entry.PostID] = ScoreResult{PostID: entry.PostID, Score: snapScore(entry.Score), Reason: entry.Reason}
	}

	out := make([]ScoreResult, 0, len(batch))
	for _, post := range batch {
		if result, ok := byID[post.PostID]; ok {
			out = append(out, result)
		} else {
			out = append(out, ScoreResult{PostID: post.PostID, Score: 50, Reason: "Score not returned"})
		}
	}
	return out
}

func fallbackAll(batch []ScorablePost, score int, reason string) []ScoreResult {
	out := make([]ScoreResult, len(batch))
	for i, post := range batch {
		out[i] = ScoreResult{PostID: post.PostID, Score: score, Reason: reason}
	}
	return out
}

func chunkPosts(posts []ScorablePost, size int) [][]ScorablePost {
	if len(posts) == 0 {
		return nil
	}
	var chunks [][]ScorablePost
	for i := 0; i < len(posts); i += size {
		end := i + size
		if end > len(posts) {
			end = len(posts)
		}
		chunks = append(chunks, posts[i:end])
	}
	return chunks
}

// Suggest generates {suggestedComment, suggestedDm} for each post scoring
// 90 or above, sorted desc by score and capped to maxSuggestions; posts
// below 90 are dropped whatever the caller passes. Runs up to s.concurrency
// calls at a time. Posts for which generation fails are omitted from the
// successful set but still present in the returned slice with OK=false.
func (s *Service) Suggest(ctx context.Context, userID string, scored []ScoredPost, businessDescription string, maxSuggestions int, customCommentPrompt, customDmPrompt *string) []Suggestion {
	candidates := topScoring(scored, maxSuggestions)

	out := make([]Suggestion, len(candidates))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for i, candidate := range candidates {
		i, candidate := i, candidate
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = s.suggestOne(ctx, userID, candidate.Post, businessDescription, customCommentPrompt, customDmPrompt)
		}()
	}
	wg.Wait()
	return out
}

// SuggestOnDemand generates a single suggestion outside of the batch flow,
// invoked when a user opens a lead that lacks one.
func (s *Service) SuggestOnDemand(ctx context.Context, userID string, post ScorablePost, businessDescription string, customCommentPrompt, customDmPrompt *string) Suggestion {
	return s.suggestOne(ctx, userID, post, businessDescription, customCommentPrompt, customDmPrompt)
}

type suggestionResponse struct {
	SuggestedComment string `json:"suggestedComment"`
	SuggestedDm      string `json:"suggestedDm"`
}

func (s *Service) suggestOne(ctx context.Context, userID string, post ScorablePost, businessDescription string, customCommentPrompt, customDmPrompt *string) Suggestion {
	text, err := s.client.GenerateJSON(ctx, suggestionSystemInstruction, buildSuggestionPrompt(businessDescription, post, customCommentPrompt, customDmPrompt))
	if s.usage != nil {
		_ = s.usage.Increment(userID, s.client.ProviderKind(), 1, 0, 0)
	}
	if err != nil {
		return Suggestion{PostID: post.PostID, OK: false}
	}

	var parsed suggestionResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return Suggestion{PostID: post.PostID, OK: false}
	}

	return Suggestion{PostID: post.PostID, SuggestedComment: parsed.SuggestedComment, SuggestedDM: parsed.SuggestedDm, OK: true}
}

// ScoredPost pairs a post with its already-computed relevancy score, the
// input shape Suggest needs to rank candidates.
type ScoredPost struct {
	Post  ScorablePost
	Score int
}

func topScoring(scored []ScoredPost, limit int) []ScoredPost {
	if limit <= 0 {
		return nil
	}
	sorted := make([]ScoredPost, len(scored))
	copy(sorted, scored)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]ScoredPost, 0, limit)
	for _, sp := range sorted {
		if sp.Score < 90 {
			break
		}
		kept = append(kept, sp)
		if len(kept) == limit {
			break
		}
	}
	return kept
}
