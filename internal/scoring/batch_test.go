package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

type fakeLLM struct {
	calls     int64
	fail      bool
	genFunc   func(systemPrompt, userPrompt string) (string, error)
	providerK db.APIKind
}

func (f *fakeLLM) ProviderKind() db.APIKind { return f.providerK }

func (f *fakeLLM) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.fail {
		return "", fmt.Errorf("upstream failure")
	}
	if f.genFunc != nil {
		return f.genFunc(systemPrompt, userPrompt)
	}
	return `{"scores":[]}`, nil
}

func makePosts(n int) []ScorablePost {
	posts := make([]ScorablePost, n)
	for i := range posts {
		posts[i] = ScorablePost{PostID: fmt.Sprintf("p%d", i), Subreddit: "test", Title: "t", Content: "c"}
	}
	return posts
}

func TestBatchScoreCallCountMatchesCeilDivision(t *testing.T) {
	fake := &fakeLLM{providerK: db.APIKindLLMGemini}
	svc := New(fake, nil, 20, 5)

	posts := makePosts(99)
	results := svc.BatchScore(context.Background(), "user-1", posts, "a business", nil)

	if len(results) != 99 {
		t.Fatalf("expected 99 results, got %d", len(results))
	}
	if got := atomic.LoadInt64(&fake.calls); got != 5 {
		t.Fatalf("expected ceil(99/20) = 5 LLM calls, got %d", got)
	}
}

func TestBatchScoreFallsBackOnBatchError(t *testing.T) {
	fake := &fakeLLM{providerK: db.APIKindLLMGemini, fail: true}
	svc := New(fake, nil, 20, 5)

	posts := makePosts(3)
	results := svc.BatchScore(context.Background(), "user-1", posts, "a business", nil)

	for _, r := range results {
		if r.Score != 50 {
			t.Errorf("expected fallback score 50, got %d", r.Score)
		}
		if r.Reason != "Batch error: upstream failure" {
			t.Errorf("expected batch error reason, got %q", r.Reason)
		}
	}
}

func TestBatchScoreMissingPostGetsFallback(t *testing.T) {
	fake := &fakeLLM{
		providerK: db.APIKindLLMGemini,
		genFunc: func(systemPrompt, userPrompt string) (string, error) {
			return `{"scores":[{"postId":"p0","score":95,"reason":"great fit"}]}`, nil
		},
	}
	svc := New(fake, nil, 20, 1)

	posts := makePosts(2)
	results := svc.BatchScore(context.Background(), "user-1", posts, "a business", nil)

	byID := map[string]ScoreResult{}
	for _, r := range results {
		byID[r.PostID] = r
	}

	if byID["p0"].Score != 100 { // 95 snaps to 100
		t.Errorf("expected p0 snapped to 100, got %d", byID["p0"].Score)
	}
	if byID["p1"].Score != 50 || byID["p1"].Reason != "Score not returned" {
		t.Errorf("expected p1 fallback, got %+v", byID["p1"])
	}
}

func TestSuggestCapsToLimitAndFiltersBelowThreshold(t *testing.T) {
	fake := &fakeLLM{
		providerK: db.APIKindLLMGemini,
		genFunc: func(systemPrompt, userPrompt string) (string, error) {
			b, _ := json.Marshal(suggestionResponse{SuggestedComment: "nice", SuggestedDm: "hi"})
			return string(b), nil
		},
	}
	svc := New(fake, nil, 20, 5)

	scored := []ScoredPost{
		{Post: ScorablePost{PostID: "a"}, Score: 100},
		{Post: ScorablePost{PostID: "b"}, Score: 90},
		{Post: ScorablePost{PostID: "c"}, Score: 80}, // below threshold, excluded
	}

	out := svc.Suggest(context.Background(), "user-1", scored, "a business", 1, nil, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 suggestion (capped), got %d", len(out))
	}
	if out[0].PostID != "a" {
		t.Errorf("expected top-scored post 'a', got %q", out[0].PostID)
	}
}

func TestSuggestOnDemandEmbedsCustomPrompts(t *testing.T) {
	var capturedPrompt string
	fake := &fakeLLM{
		providerK: db.APIKindLLMGemini,
		genFunc: func(systemPrompt, userPrompt string) (string, error) {
			capturedPrompt = userPrompt
			b, _ := json.Marshal(suggestionResponse{SuggestedComment: "nice", SuggestedDm: "hi"})
			return string(b), nil
		},
	}
	svc := New(fake, nil, 20, 5)

	comment := "always mention our 14-day free trial"
	dm := "close with a calendly link"
	svc.SuggestOnDemand(context.Background(), "user-1", ScorablePost{PostID: "a"}, "a business", &comment, &dm)

	if !strings.Contains(capturedPrompt, comment) {
		t.Errorf("expected prompt to embed custom comment instructions, got %q", capturedPrompt)
	}
	if !strings.Contains(capturedPrompt, dm) {
		t.Errorf("expected prompt to embed custom DM instructions, got %q", capturedPrompt)
	}
}
