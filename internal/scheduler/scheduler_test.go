package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/email"
	"github.com/cheolwanpark/leadsignal/engine/internal/pollengine"
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

func insertActiveCampaign(t *testing.T, database *db.DB, userID, subreddit string) *db.Campaign {
	c := &db.Campaign{
		ID: uuid.NewString(), OwnerUserID: userID, Status: db.CampaignDiscovering,
		BusinessDescription: "desc", SearchQueries: []string{"q"}, PollIntervalHours: 6,
	}
	if err := database.CreateCampaign(c); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	if err := database.ReplaceCampaignSubreddits(c.ID, []db.CampaignSubreddit{{Name: subreddit, Active: true}}); err != nil {
		t.Fatalf("failed to set subreddits: %v", err)
	}
	if err := database.SetCampaignStatus(c.ID, db.CampaignActive); err != nil {
		t.Fatalf("failed to activate campaign: %v", err)
	}
	return c
}

type emptySource struct{ kind db.APIKind }

func (f *emptySource) ProviderKind() db.APIKind { return f.kind }
func (f *emptySource) SearchCommunities(ctx context.Context, queries []string, limit int) ([]source.Community, error) {
	return nil, nil
}
func (f *emptySource) ScrapeSubreddit(ctx context.Context, name string, maxPosts int, sort, timeFilter string) ([]source.Post, error) {
	return nil, nil
}

type stubLLM struct{}

func (stubLLM) ProviderKind() db.APIKind { return db.APIKindLLMGemini }
func (stubLLM) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return `{"scores":[]}`, nil
}

// TestSweepSkipsNonMatchingHours exercises scenario: three users on
// different tiers/hour-sets, invoking the sweep at hour 11 should only
// poll the tier whose pollHoursUTC includes 11.
func TestSweepSkipsNonMatchingHours(t *testing.T) {
	if time.Now().UTC().Hour() == 11 {
		t.Skip("flaky at exactly hour 11 UTC boundary, PollsAt gating uses wall clock")
	}

	database := setupTestDB(t)
	defer database.Close()

	userA := insertUser(t, database, db.TierStarter) // hours {7,16}
	userB := insertUser(t, database, db.TierGrowth)  // hours {7,11,16,22}
	userC := insertUser(t, database, db.TierExpired) // not pollable at all

	insertActiveCampaign(t, database, userA.ID, "golang")
	campaignB := insertActiveCampaign(t, database, userB.ID, "golang")
	insertActiveCampaign(t, database, userC.ID, "golang")

	src := &emptySource{kind: db.APIKindRedditApify}
	scoringSvc := scoring.New(stubLLM{}, usage.New(database), 20, 5)
	engine := pollengine.New(database, src, scoringSvc, noopSender{}, usage.New(database), 50, 90)
	sched := New(database, engine, true, []int{7, 16}, []int{7, 11, 16, 22})

	stats := sched.runSweepAtHour(context.Background(), 11)

	if stats.UsersChecked != 2 { // C is EXPIRED, never pollable, excluded by PollableUsers
		t.Errorf("expected 2 pollable users checked (A, B), got %d", stats.UsersChecked)
	}
	if stats.CampaignsPolled != 1 {
		t.Errorf("expected exactly B's 1 campaign polled, got %d", stats.CampaignsPolled)
	}
	if stats.CampaignsSkipped < 1 {
		t.Errorf("expected A's campaign skipped, got %d skipped", stats.CampaignsSkipped)
	}

	// emptySource returns no posts, so the poll completes right after the
	// fetch phase and never reaches the phase that stamps lastPollAt; the
	// scheduled PollJob row is what shows B's campaign was polled.
	jobs, err := database.PollJobsForCampaign(campaignB.ID, 10)
	if err != nil {
		t.Fatalf("PollJobsForCampaign failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Trigger != db.TriggerScheduled {
		t.Errorf("expected B's campaign to have been polled (one scheduled poll job), got %d jobs", len(jobs))
	}
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, toEmail, subject, htmlBody string) bool { return true }

var _ email.Sender = noopSender{}
