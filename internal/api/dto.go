package api

import (
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

// ErrorResponse is the standard error response shape.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// LimitErrorResponse is the 402 body for a campaign.LimitError: it names
// the limit hit, the user's current plan, and the tier to upgrade to, so
// a client can render an upgrade prompt without parsing the error string.
type LimitErrorResponse struct {
	Error       string `json:"error"`
	Limit       int    `json:"limit"`
	CurrentPlan string `json:"current_plan"`
	UpgradeTo   string `json:"upgrade_to,omitempty"`
}

// CreateCampaignRequest is the request body for POST /campaigns.
type CreateCampaignRequest struct {
	BusinessDescription string  `json:"business_description" example:"a SaaS tool for freelance developers"`
	PollIntervalHours   int     `json:"poll_interval_hours" example:"6"`
	CustomCommentPrompt *string `json:"custom_comment_prompt,omitempty"`
	CustomDmPrompt      *string `json:"custom_dm_prompt,omitempty"`
}

// SelectSubredditsRequest is the request body for
// POST /campaigns/{id}/subreddits.
type SelectSubredditsRequest struct {
	Subreddits []string `json:"subreddits" example:"golang,programming"`
}

// CampaignResponse is the safe DTO for db.Campaign.
type CampaignResponse struct {
	ID                  string     `json:"id"`
	Status              string     `json:"status"`
	BusinessDescription string     `json:"business_description"`
	SearchQueries       []string   `json:"search_queries"`
	PollIntervalHours   int        `json:"poll_interval_hours"`
	LastPollAt          *time.Time `json:"last_poll_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CustomCommentPrompt *string    `json:"custom_comment_prompt,omitempty"`
	CustomDmPrompt      *string    `json:"custom_dm_prompt,omitempty"`
}

func toCampaignResponse(c *db.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                  c.ID,
		Status:              string(c.Status),
		BusinessDescription: c.BusinessDescription,
		SearchQueries:       c.SearchQueries,
		PollIntervalHours:   c.PollIntervalHours,
		LastPollAt:          c.LastPollAt,
		CreatedAt:           c.CreatedAt,
		CustomCommentPrompt: c.CustomCommentPrompt,
		CustomDmPrompt:      c.CustomDmPrompt,
	}
}

// LeadResponse is the safe DTO for db.Lead.
type LeadResponse struct {
	ID               string     `json:"id"`
	SubredditName    string     `json:"subreddit_name"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	Author           string     `json:"author"`
	PostURL          string     `json:"post_url"`
	RedditScore      int        `json:"reddit_score"`
	NumComments      int        `json:"num_comments"`
	RelevancyScore   *int       `json:"relevancy_score,omitempty"`
	RelevancyReason  string     `json:"relevancy_reason"`
	SuggestedComment string     `json:"suggested_comment,omitempty"`
	SuggestedDM      string     `json:"suggested_dm,omitempty"`
	HasSuggestions   bool       `json:"has_suggestions"`
	Status           string     `json:"status"`
	DiscoveredAt     time.Time  `json:"discovered_at"`
}

func toLeadResponse(l *db.Lead) LeadResponse {
	return LeadResponse{
		ID:               l.ID,
		SubredditName:    l.SubredditName,
		Title:            l.Title,
		Content:          l.Content,
		Author:           l.Author,
		PostURL:          l.PostURL,
		RedditScore:      l.RedditScore,
		NumComments:      l.NumComments,
		RelevancyScore:   l.RelevancyScore,
		RelevancyReason:  l.RelevancyReason,
		SuggestedComment: l.SuggestedComment,
		SuggestedDM:      l.SuggestedDM,
		HasSuggestions:   l.HasSuggestions,
		Status:           string(l.Status),
		DiscoveredAt:     l.DiscoveredAt,
	}
}

// PollJobResponse is the safe DTO for db.PollJob.
type PollJobResponse struct {
	ID                   string     `json:"id"`
	Status               string     `json:"status"`
	Trigger              string     `json:"trigger"`
	SubredditsPolled     int        `json:"subreddits_polled"`
	PostsFetched         int        `json:"posts_fetched"`
	PostsScored          int        `json:"posts_scored"`
	LeadsCreated         int        `json:"leads_created"`
	LeadsDeleted         int        `json:"leads_deleted"`
	SuggestionsGenerated int        `json:"suggestions_generated"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

func toPollJobResponse(j *db.PollJob) PollJobResponse {
	return PollJobResponse{
		ID:                   j.ID,
		Status:               string(j.Status),
		Trigger:              string(j.Trigger),
		SubredditsPolled:     j.SubredditsPolled,
		PostsFetched:         j.PostsFetched,
		PostsScored:          j.PostsScored,
		LeadsCreated:         j.LeadsCreated,
		LeadsDeleted:         j.LeadsDeleted,
		SuggestionsGenerated: j.SuggestionsGenerated,
		ErrorMessage:         j.ErrorMessage,
		StartedAt:            j.StartedAt,
		CompletedAt:          j.CompletedAt,
	}
}
