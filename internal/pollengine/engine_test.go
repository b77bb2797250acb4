package pollengine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/email"
	"github.com/cheolwanpark/leadsignal/engine/internal/scoring"
	"github.com/cheolwanpark/leadsignal/engine/internal/source"
	"github.com/cheolwanpark/leadsignal/engine/internal/usage"
	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func setupTestDB(t *testing.T) *db.DB {
	tmpFile := t.TempDir() + "/test.db"
	database, err := db.Init(tmpFile)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return database
}

func insertUser(t *testing.T, database *db.DB, tier db.Tier) *db.User {
	u := &db.User{ID: uuid.NewString(), Email: uuid.NewString() + "@test.com", Tier: tier, Status: db.UserActive}
	_, err := database.Exec(`INSERT INTO users (id, email, tier, status) VALUES (?, ?, ?, ?)`, u.ID, u.Email, u.Tier, u.Status)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return u
}

func insertActiveCampaign(t *testing.T, database *db.DB, userID string, subreddits ...string) *db.Campaign {
	c := &db.Campaign{
		ID:                  uuid.NewString(),
		OwnerUserID:         userID,
		Status:              db.CampaignDiscovering,
		BusinessDescription: "a SaaS tool for freelance developers",
		SearchQueries:       []string{"freelance tool"},
		PollIntervalHours:   6,
	}
	if err := database.CreateCampaign(c); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	subs := make([]db.CampaignSubreddit, len(subreddits))
	for i, name := range subreddits {
		subs[i] = db.CampaignSubreddit{Name: name, Active: true}
	}
	if err := database.ReplaceCampaignSubreddits(c.ID, subs); err != nil {
		t.Fatalf("failed to set subreddits: %v", err)
	}
	if err := database.SetCampaignStatus(c.ID, db.CampaignActive); err != nil {
		t.Fatalf("failed to activate campaign: %v", err)
	}
	c.Status = db.CampaignActive
	return c
}

type fakeSource struct {
	posts map[string][]source.Post
	kind  db.APIKind
}

func (f *fakeSource) ProviderKind() db.APIKind { return f.kind }
func (f *fakeSource) SearchCommunities(ctx context.Context, queries []string, limit int) ([]source.Community, error) {
	return nil, nil
}
func (f *fakeSource) ScrapeSubreddit(ctx context.Context, name string, maxPosts int, sort, timeFilter string) ([]source.Post, error) {
	return f.posts[name], nil
}

var batchLineRe = regexp.MustCompile(`\[(\S+)\].*?Title: (.*?) Content:`)

// fakeLLM scores "relevant" titled posts high and everything else low,
// and returns canned outreach text for the suggestion prompt.
type fakeLLM struct {
	calls int
}

func (f *fakeLLM) ProviderKind() db.APIKind { return db.APIKindLLMGemini }

func (f *fakeLLM) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if strings.Contains(systemPrompt, "\"scores\"") {
		matches := batchLineRe.FindAllStringSubmatch(userPrompt, -1)
		var sb strings.Builder
		sb.WriteString(`{"scores":[`)
		for i, m := range matches {
			if i > 0 {
				sb.WriteString(",")
			}
			score := 0
			reason := "Not relevant"
			if strings.Contains(strings.ToLower(m[2]), "relevant") {
				score = 90
				reason = "Highly relevant"
			}
			sb.WriteString(fmt.Sprintf(`{"postId":%q,"score":%d,"reason":%q}`, m[1], score, reason))
		}
		sb.WriteString("]}")
		return sb.String(), nil
	}
	return `{"suggestedComment":"Nice post!","suggestedDm":"Hi, saw your post."}`, nil
}

func TestRunPollHappyPathOneRelevantLead(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	user := insertUser(t, database, db.TierStarter)
	campaign := insertActiveCampaign(t, database, user.ID, "programming")

	now := time.Now()
	src := &fakeSource{kind: db.APIKindRedditApify, posts: map[string][]source.Post{
		"programming": {
			{ID: "post_high", Title: "relevant question about freelancing", Content: "body", Score: 50, NumComments: 10, CreatedUTC: now},
			{ID: "post_low", Title: "unrelated cat picture", Content: "body", Score: 100, NumComments: 50, CreatedUTC: now},
		},
	}}

	llm := &fakeLLM{}
	scoringSvc := scoring.New(llm, usage.New(database), 20, 5)
	emailSender := &recordingSender{}
	engine := New(database, src, scoringSvc, emailSender, usage.New(database), 50, 90)

	job, err := engine.RunPoll(context.Background(), campaign.ID, db.TriggerManual, nil)
	if err != nil {
		t.Fatalf("RunPoll failed: %v", err)
	}

	if job.PostsFetched != 2 {
		t.Errorf("expected postsFetched=2, got %d", job.PostsFetched)
	}
	if job.PostsScored != 2 {
		t.Errorf("expected postsScored=2, got %d", job.PostsScored)
	}
	if job.LeadsCreated != 1 {
		t.Errorf("expected leadsCreated=1, got %d", job.LeadsCreated)
	}
	if job.LeadsDeleted != 1 {
		t.Errorf("expected leadsDeleted=1, got %d", job.LeadsDeleted)
	}
	if job.SuggestionsGenerated != 1 {
		t.Errorf("expected suggestionsGenerated=1, got %d", job.SuggestionsGenerated)
	}
	if job.Status != db.PollJobCompleted {
		t.Errorf("expected status COMPLETED, got %s", job.Status)
	}

	leads, err := database.LeadsForPollJob(job.ID)
	if err != nil {
		t.Fatalf("LeadsForPollJob failed: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 surviving lead, got %d", len(leads))
	}
	if *leads[0].RelevancyScore != 90 {
		t.Errorf("expected surviving lead score 90, got %d", *leads[0].RelevancyScore)
	}
	if !leads[0].HasSuggestions {
		t.Errorf("expected surviving lead to have suggestions")
	}
	if !emailSender.sent {
		t.Errorf("expected a summary email to be sent")
	}
}

type recordingCallbacks struct {
	NoopCallbacks
	leadsCreated []db.Lead
	stats        *PollStats
	errMsg       string
}

func (c *recordingCallbacks) OnLeadCreated(lead db.Lead) {
	c.leadsCreated = append(c.leadsCreated, lead)
}

func (c *recordingCallbacks) OnComplete(stats PollStats) {
	c.stats = &stats
}

func (c *recordingCallbacks) OnError(msg string) {
	c.errMsg = msg
}

func TestRunPollCallbacksReportSurvivorsAndCompletion(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	user := insertUser(t, database, db.TierStarter)
	campaign := insertActiveCampaign(t, database, user.ID, "programming")

	now := time.Now()
	src := &fakeSource{kind: db.APIKindRedditApify, posts: map[string][]source.Post{
		"programming": {
			{ID: "post_high", Title: "relevant question about freelancing", Content: "body", Score: 50, NumComments: 10, CreatedUTC: now},
			{ID: "post_low", Title: "unrelated cat picture", Content: "body", Score: 100, NumComments: 50, CreatedUTC: now},
		},
	}}

	scoringSvc := scoring.New(&fakeLLM{}, usage.New(database), 20, 5)
	engine := New(database, src, scoringSvc, &recordingSender{}, usage.New(database), 50, 90)

	cb := &recordingCallbacks{}
	job, err := engine.RunPoll(context.Background(), campaign.ID, db.TriggerManual, cb)
	if err != nil {
		t.Fatalf("RunPoll failed: %v", err)
	}

	if len(cb.leadsCreated) != 1 {
		t.Fatalf("expected OnLeadCreated once for the surviving lead, got %d calls", len(cb.leadsCreated))
	}
	if cb.leadsCreated[0].RedditPostID != "post_high" {
		t.Errorf("expected the surviving lead to be post_high, got %q", cb.leadsCreated[0].RedditPostID)
	}
	if cb.stats == nil {
		t.Fatal("expected OnComplete to be called")
	}
	if cb.stats.LeadsCreated != job.LeadsCreated || cb.stats.LeadsDeleted != job.LeadsDeleted {
		t.Errorf("expected OnComplete stats to match the final job counters, got %+v vs job %+v", cb.stats, job)
	}
	if cb.errMsg != "" {
		t.Errorf("expected no OnError call on a successful run, got %q", cb.errMsg)
	}
}

func TestRunPollRejectsExpiredFreeTrial(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	user := insertUser(t, database, db.TierFreeTrial)
	past := time.Now().Add(-24 * time.Hour)
	if _, err := database.Exec(`UPDATE users SET trial_ends_at = ? WHERE id = ?`, past, user.ID); err != nil {
		t.Fatalf("failed to expire trial: %v", err)
	}
	campaign := insertActiveCampaign(t, database, user.ID, "programming")

	src := &fakeSource{kind: db.APIKindRedditApify, posts: map[string][]source.Post{}}
	scoringSvc := scoring.New(&fakeLLM{}, usage.New(database), 20, 5)
	engine := New(database, src, scoringSvc, &recordingSender{}, usage.New(database), 50, 90)

	_, err := engine.RunPoll(context.Background(), campaign.ID, db.TriggerManual, nil)
	if err == nil {
		t.Fatal("expected RunPoll to fail for expired free trial user")
	}

	jobs, countErr := countPollJobs(database, campaign.ID)
	if countErr != nil {
		t.Fatalf("failed to count poll jobs: %v", countErr)
	}
	if jobs != 0 {
		t.Errorf("expected no PollJob created, found %d", jobs)
	}
}

func TestRunPollIdempotentReRunFetchesNothingNew(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	user := insertUser(t, database, db.TierStarter)
	campaign := insertActiveCampaign(t, database, user.ID, "programming")

	now := time.Now()
	src := &fakeSource{kind: db.APIKindRedditApify, posts: map[string][]source.Post{
		"programming": {
			{ID: "post_high", Title: "relevant question", Content: "body", Score: 50, NumComments: 10, CreatedUTC: now},
		},
	}}
	scoringSvc := scoring.New(&fakeLLM{}, usage.New(database), 20, 5)
	firstSender := &recordingSender{}
	engine := New(database, src, scoringSvc, firstSender, usage.New(database), 50, 90)

	first, err := engine.RunPoll(context.Background(), campaign.ID, db.TriggerManual, nil)
	if err != nil {
		t.Fatalf("first RunPoll failed: %v", err)
	}
	if first.PostsFetched != 1 {
		t.Fatalf("expected first run to fetch 1 post, got %d", first.PostsFetched)
	}

	secondSender := &recordingSender{}
	engine2 := New(database, src, scoringSvc, secondSender, usage.New(database), 50, 90)
	second, err := engine2.RunPoll(context.Background(), campaign.ID, db.TriggerManual, nil)
	if err != nil {
		t.Fatalf("second RunPoll failed: %v", err)
	}

	if second.PostsFetched != 0 {
		t.Errorf("expected second run to fetch 0 new posts, got %d", second.PostsFetched)
	}
	if second.Status != db.PollJobCompleted {
		t.Errorf("expected second run COMPLETED, got %s", second.Status)
	}
	if secondSender.sent {
		t.Errorf("expected no email sent on a zero-lead re-run")
	}
}

type recordingSender struct {
	sent bool
}

func (r *recordingSender) Send(ctx context.Context, toEmail, subject, htmlBody string) bool {
	r.sent = true
	return true
}

var _ email.Sender = (*recordingSender)(nil)

func countPollJobs(database *db.DB, campaignID string) (int, error) {
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM poll_jobs WHERE campaign_id = ?`, campaignID).Scan(&n)
	return n, err
}
