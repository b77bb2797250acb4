// Package campaign implements the CampaignService: creation with
// LLM-derived search queries, subreddit selection, and the status
// mutations that gate whether a campaign is eligible to be polled.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/llm"
	"github.com/cheolwanpark/leadsignal/engine/internal/plan"
	"github.com/google/uuid"
)

// ErrNotAuthorized is returned when a caller mutates a campaign they don't own.
var ErrNotAuthorized = errors.New("not authorized")

// ErrPlanLimitExceeded is the sentinel a LimitError wraps, so callers can
// still gate on it with errors.Is without caring about the detail fields.
var ErrPlanLimitExceeded = errors.New("plan limit exceeded")

// LimitError reports which plan cap blocked an operation, the user's
// current plan, and the tier to upgrade to — the Go shape of
// plan_usage.py's LimitCheckResult (reason/max_count/current_plan/
// upgrade_to).
type LimitError struct {
	Limit       int
	CurrentPlan db.Tier
	UpgradeTo   db.Tier
}

func (e *LimitError) Error() string {
	if e.UpgradeTo == "" {
		return fmt.Sprintf("reached the maximum of %d on the %s plan", e.Limit, e.CurrentPlan)
	}
	return fmt.Sprintf("reached the maximum of %d on the %s plan; upgrade to %s for more", e.Limit, e.CurrentPlan, e.UpgradeTo)
}

func (e *LimitError) Unwrap() error { return ErrPlanLimitExceeded }

func newLimitError(limit int, tier db.Tier) *LimitError {
	return &LimitError{Limit: limit, CurrentPlan: tier, UpgradeTo: plan.NextTier(tier)}
}

const searchQuerySystemInstruction = `You generate Reddit search queries for lead generation. Given a business
description, return a JSON object: {"queries": ["phrase one", "phrase two",
...]} with 4 to 6 short phrases (2-5 words each) that someone with a problem
this business solves might post about on Reddit.`

// Service is the CampaignService.
type Service struct {
	db  *db.DB
	llm llm.Client
}

// New builds a Service.
func New(database *db.DB, client llm.Client) *Service {
	return &Service{db: database, llm: client}
}

// Create derives search queries for description via the LLM (falling back to
// a keyword extractor on parse failure) and persists a new campaign in
// DISCOVERING status. Rejects if the user is already at their tier's
// maxProfiles. customCommentPrompt/customDmPrompt, if non-nil, override the
// default outreach-suggestion instructions for every lead this campaign
// generates.
func (s *Service) Create(ctx context.Context, user *db.User, description string, pollIntervalHours int, customCommentPrompt, customDmPrompt *string) (*db.Campaign, error) {
	count, err := s.db.CountActiveCampaigns(user.ID)
	if err != nil {
		return nil, fmt.Errorf("count active campaigns: %w", err)
	}
	limits := plan.Resolve(user.Tier)
	if limits.MaxProfiles != plan.Unbounded && count >= limits.MaxProfiles {
		return nil, newLimitError(limits.MaxProfiles, user.Tier)
	}

	queries := s.deriveSearchQueries(ctx, description)

	c := &db.Campaign{
		ID:                  uuid.NewString(),
		OwnerUserID:         user.ID,
		Status:              db.CampaignDiscovering,
		BusinessDescription: description,
		SearchQueries:       queries,
		PollIntervalHours:   pollIntervalHours,
		CustomCommentPrompt: customCommentPrompt,
		CustomDmPrompt:      customDmPrompt,
	}
	if err := s.db.CreateCampaign(c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

type searchQueryResponse struct {
	Queries []string `json:"queries"`
}

func (s *Service) deriveSearchQueries(ctx context.Context, description string) []string {
	text, err := s.llm.GenerateJSON(ctx, searchQuerySystemInstruction, description)
	if err == nil {
		var parsed searchQueryResponse
		if jsonErr := json.Unmarshal([]byte(text), &parsed); jsonErr == nil && len(parsed.Queries) > 0 {
			return parsed.Queries
		}
	}
	return keywordFallback(description)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "for": true,
	"of": true, "to": true, "in": true, "on": true, "with": true, "is": true,
	"are": true, "that": true, "this": true, "we": true, "our": true, "it": true,
}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// keywordFallback splits description on whitespace, strips punctuation,
// drops stop-words and tokens shorter than 3 characters.
func keywordFallback(description string) []string {
	cleaned := punctuation.ReplaceAllString(description, "")
	var keywords []string
	for _, tok := range strings.Fields(cleaned) {
		lower := strings.ToLower(tok)
		if len(lower) < 3 || stopWords[lower] {
			continue
		}
		keywords = append(keywords, lower)
	}
	if len(keywords) == 0 {
		return []string{description}
	}
	return keywords
}

// SelectSubreddits replaces a campaign's subreddit selection atomically and
// transitions it to ACTIVE. Rejects if the selection exceeds the tier's
// maxSubredditsPerProfile, or if user doesn't own the campaign.
func (s *Service) SelectSubreddits(user *db.User, campaignID string, selection []db.CampaignSubreddit) error {
	c, err := s.requireOwned(user, campaignID)
	if err != nil {
		return err
	}

	limits := plan.Resolve(user.Tier)
	if limits.MaxSubredditsPerProfile != plan.Unbounded && len(selection) > limits.MaxSubredditsPerProfile {
		return newLimitError(limits.MaxSubredditsPerProfile, user.Tier)
	}

	for i := range selection {
		selection[i].CampaignID = c.ID
		selection[i].Active = true
	}
	if err := s.db.ReplaceCampaignSubreddits(c.ID, selection); err != nil {
		return fmt.Errorf("replace subreddits: %w", err)
	}
	return s.db.SetCampaignStatus(c.ID, db.CampaignActive)
}

// Pause sets status to PAUSED.
func (s *Service) Pause(user *db.User, campaignID string) error {
	return s.setStatus(user, campaignID, db.CampaignPaused)
}

// Resume sets status to ACTIVE.
func (s *Service) Resume(user *db.User, campaignID string) error {
	return s.setStatus(user, campaignID, db.CampaignActive)
}

// Delete soft-deletes the campaign by setting status to DELETED.
func (s *Service) Delete(user *db.User, campaignID string) error {
	return s.setStatus(user, campaignID, db.CampaignDeleted)
}

func (s *Service) setStatus(user *db.User, campaignID string, status db.CampaignStatus) error {
	c, err := s.requireOwned(user, campaignID)
	if err != nil {
		return err
	}
	if err := s.db.SetCampaignStatus(c.ID, status); err != nil {
		return fmt.Errorf("set campaign status: %w", err)
	}
	return nil
}

func (s *Service) requireOwned(user *db.User, campaignID string) (*db.Campaign, error) {
	c, err := s.db.GetCampaign(campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if c.OwnerUserID != user.ID {
		return nil, ErrNotAuthorized
	}
	return c, nil
}
