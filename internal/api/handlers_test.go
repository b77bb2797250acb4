package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/campaign"
	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/pollengine"
	"github.com/cheolwanpark/leadsignal/engine/internal/scheduler"
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

func insertUserWithSession(t *testing.T, database *db.DB, tier db.Tier) (*db.User, string) {
	u := &db.User{ID: uuid.NewString(), Email: uuid.NewString() + "@test.com", Tier: tier, Status: db.UserActive}
	if _, err := database.Exec(`INSERT INTO users (id, email, tier, status) VALUES (?, ?, ?, ?)`, u.ID, u.Email, u.Tier, u.Status); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	token := uuid.NewString()
	if _, err := database.Exec(`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, u.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("failed to insert session: %v", err)
	}
	return u, token
}

type noopLLM struct{}

func (noopLLM) ProviderKind() db.APIKind { return db.APIKindLLMGemini }
func (noopLLM) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return `{"queries":["freelance tool"]}`, nil
}

type noopSource struct{}

func (noopSource) ProviderKind() db.APIKind { return db.APIKindRedditApify }
func (noopSource) SearchCommunities(ctx context.Context, queries []string, limit int) ([]source.Community, error) {
	return nil, nil
}
func (noopSource) ScrapeSubreddit(ctx context.Context, name string, maxPosts int, sort, timeFilter string) ([]source.Post, error) {
	return nil, nil
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, toEmail, subject, htmlBody string) bool { return true }

func setupRouter(t *testing.T, database *db.DB) http.Handler {
	campaigns := campaign.New(database, noopLLM{})
	scoringSvc := scoring.New(noopLLM{}, usage.New(database), 20, 5)
	engine := pollengine.New(database, noopSource{}, scoringSvc, noopSender{}, usage.New(database), 50, 90)
	sched := scheduler.New(database, engine, false, []int{7, 16}, []int{7, 11, 16, 22})
	return SetupRouter(database, campaigns, engine, sched)
}

func authedRequest(method, path, token string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestCreateCampaignRequiresAuth(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	router := setupRouter(t, database)

	req := authedRequest("POST", "/campaigns/", "", CreateCampaignRequest{BusinessDescription: "x"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateCampaignSuccess(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	router := setupRouter(t, database)

	_, token := insertUserWithSession(t, database, db.TierStarter)

	req := authedRequest("POST", "/campaigns/", token, CreateCampaignRequest{BusinessDescription: "a SaaS tool", PollIntervalHours: 6})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CampaignResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "DISCOVERING" {
		t.Errorf("expected new campaign status DISCOVERING, got %q", resp.Status)
	}
	if len(resp.SearchQueries) == 0 {
		t.Errorf("expected derived search queries, got none")
	}
}

func TestCreateCampaignRejectsAtPlanLimit(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	router := setupRouter(t, database)

	_, token := insertUserWithSession(t, database, db.TierFreeTrial)

	first := authedRequest("POST", "/campaigns/", token, CreateCampaignRequest{BusinessDescription: "first"})
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, first)
	if w1.Code != http.StatusCreated {
		t.Fatalf("expected first campaign to succeed, got %d", w1.Code)
	}

	second := authedRequest("POST", "/campaigns/", token, CreateCampaignRequest{BusinessDescription: "second"})
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, second)
	if w2.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 at plan limit, got %d: %s", w2.Code, w2.Body.String())
	}
	var body LimitErrorResponse
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Limit != 1 {
		t.Errorf("expected limit 1, got %d", body.Limit)
	}
	if body.CurrentPlan != "FREE_TRIAL" {
		t.Errorf("expected current plan FREE_TRIAL, got %q", body.CurrentPlan)
	}
	if body.UpgradeTo != "GROWTH" {
		t.Errorf("expected upgrade target GROWTH, got %q", body.UpgradeTo)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	router := setupRouter(t, database)

	req := httptest.NewRequest("GET", "/campaigns/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetLeadGeneratesSuggestionsOnDemand(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()

	u := &db.User{ID: uuid.NewString(), Email: "x@test.com", Tier: db.TierStarter, Status: db.UserActive}
	if _, err := database.Exec(`INSERT INTO users (id, email, tier, status) VALUES (?, ?, ?, ?)`, u.ID, u.Email, u.Tier, u.Status); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	c := &db.Campaign{ID: uuid.NewString(), OwnerUserID: u.ID, Status: db.CampaignActive, BusinessDescription: "a SaaS tool", SearchQueries: []string{"q"}, PollIntervalHours: 6}
	if err := database.CreateCampaign(c); err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	lead := &db.Lead{ID: uuid.NewString(), CampaignID: c.ID, RedditPostID: "p1", SubredditName: "golang", Title: "t", Content: "c", Author: "a", PostURL: "u", Status: db.LeadNew}
	if err := database.InsertUnscoredLead(lead); err != nil {
		t.Fatalf("insert lead: %v", err)
	}

	suggestLLM := noopLLMWithSuggestion{}
	engine := pollengine.New(database, noopSource{}, scoring.New(suggestLLM, usage.New(database), 20, 5), noopSender{}, usage.New(database), 50, 90)
	sched := scheduler.New(database, engine, false, []int{7, 16}, []int{7, 11, 16, 22})
	router := SetupRouter(database, campaign.New(database, noopLLM{}), engine, sched)

	req := httptest.NewRequest("GET", "/campaigns/"+c.ID+"/leads/"+lead.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp LeadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SuggestedComment == "" {
		t.Errorf("expected an on-demand suggestion to have been generated")
	}
}

type noopLLMWithSuggestion struct{}

func (noopLLMWithSuggestion) ProviderKind() db.APIKind { return db.APIKindLLMGemini }
func (noopLLMWithSuggestion) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return `{"suggestedComment":"nice post","suggestedDm":"hi there"}`, nil
}

func TestTriggerSweepEndpoint(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	router := setupRouter(t, database)

	req := httptest.NewRequest("POST", "/admin/sweep", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	database := setupTestDB(t)
	defer database.Close()
	router := setupRouter(t, database)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
