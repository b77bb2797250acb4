package db

import "time"

// Tier is a subscription class that resolves to a PlanLimits row.
type Tier string

const (
	TierFreeTrial Tier = "FREE_TRIAL"
	TierStarter   Tier = "STARTER"
	TierGrowth    Tier = "GROWTH"
	TierPro       Tier = "PRO"
	TierExpired   Tier = "EXPIRED"
)

// UserStatus gates pollability alongside Tier and subscription dates.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// CampaignStatus tracks a campaign through discovery, activity and deletion.
type CampaignStatus string

const (
	CampaignDiscovering CampaignStatus = "DISCOVERING"
	CampaignActive      CampaignStatus = "ACTIVE"
	CampaignPaused      CampaignStatus = "PAUSED"
	CampaignCompleted   CampaignStatus = "COMPLETED"
	CampaignDeleted     CampaignStatus = "DELETED"
)

// PollJobStatus is the terminal or in-flight state of one pipeline run.
type PollJobStatus string

const (
	PollJobRunning   PollJobStatus = "RUNNING"
	PollJobCompleted PollJobStatus = "COMPLETED"
	PollJobFailed    PollJobStatus = "FAILED"
	PollJobPartial   PollJobStatus = "PARTIAL"
)

// PollJobTrigger records what started a run.
type PollJobTrigger string

const (
	TriggerManual    PollJobTrigger = "manual"
	TriggerScheduled PollJobTrigger = "scheduled"
	TriggerFirstPoll PollJobTrigger = "first_poll"
)

// LeadStatus is the user-facing workflow state of a Lead.
type LeadStatus string

const (
	LeadNew       LeadStatus = "NEW"
	LeadContacted LeadStatus = "CONTACTED"
	LeadDismissed LeadStatus = "DISMISSED"
)

// APIKind identifies which metered external call a UsageRecord counts.
type APIKind string

const (
	APIKindRedditApify    APIKind = "REDDIT_APIFY"
	APIKindRedditRapidAPI APIKind = "REDDIT_RAPIDAPI"
	APIKindLLMGemini      APIKind = "LLM_GEMINI"
	APIKindLLMOpenAI      APIKind = "LLM_OPENAI"
	APIKindEmbedding      APIKind = "EMBEDDING"
)

// User is the account a Campaign belongs to.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Tier               Tier       `json:"tier"`
	Status             UserStatus `json:"status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Pollable reports whether a poll may run on this user's behalf.
// status=active ∧ tier≠EXPIRED ∧ (tier=FREE_TRIAL ⇒ trialEndsAt>now)
// ∧ (tier≠FREE_TRIAL ⇒ subscriptionEndsAt is null ∨ >now)
func (u *User) Pollable(now time.Time) bool {
	if u.Status != UserActive || u.Tier == TierExpired {
		return false
	}
	if u.Tier == TierFreeTrial {
		return u.TrialEndsAt != nil && u.TrialEndsAt.After(now)
	}
	return u.SubscriptionEndsAt == nil || u.SubscriptionEndsAt.After(now)
}

// Campaign is a user's persistent query against Reddit.
type Campaign struct {
	ID                  string         `json:"id"`
	OwnerUserID         string         `json:"owner_user_id"`
	Status              CampaignStatus `json:"status"`
	BusinessDescription string         `json:"business_description"`
	SearchQueries       []string       `json:"search_queries"`
	PollIntervalHours   int            `json:"poll_interval_hours"`
	LastPollAt          *time.Time     `json:"last_poll_at,omitempty"`
	CustomCommentPrompt *string        `json:"custom_comment_prompt,omitempty"`
	CustomDmPrompt      *string        `json:"custom_dm_prompt,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// CampaignSubreddit is one community selected (or once selected) for a campaign.
type CampaignSubreddit struct {
	CampaignID     string   `json:"campaign_id"`
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Subscribers    int      `json:"subscribers"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
	Active         bool     `json:"active"`
}

// PollJob is the durable record of one pipeline execution.
type PollJob struct {
	ID                   string         `json:"id"`
	CampaignID           string         `json:"campaign_id"`
	Status               PollJobStatus  `json:"status"`
	Trigger              PollJobTrigger `json:"trigger"`
	SubredditsPolled     int            `json:"subreddits_polled"`
	PostsFetched         int            `json:"posts_fetched"`
	PostsScored          int            `json:"posts_scored"`
	LeadsCreated         int            `json:"leads_created"`
	LeadsDeleted         int            `json:"leads_deleted"`
	SuggestionsGenerated int            `json:"suggestions_generated"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	StartedAt            time.Time      `json:"started_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// Lead is a Reddit post saved against a campaign with a computed score.
type Lead struct {
	ID                     string     `json:"id"`
	CampaignID             string     `json:"campaign_id"`
	PollJobID              *string    `json:"poll_job_id,omitempty"`
	RedditPostID           string     `json:"reddit_post_id"`
	SubredditName          string     `json:"subreddit_name"`
	Title                  string     `json:"title"`
	Content                string     `json:"content"`
	Author                 string     `json:"author"`
	PostURL                string     `json:"post_url"`
	RedditScore            int        `json:"reddit_score"`
	NumComments            int        `json:"num_comments"`
	CreatedAtUTC           int64      `json:"created_at_utc"`
	RelevancyScore         *int       `json:"relevancy_score"`
	RelevancyReason        string     `json:"relevancy_reason,omitempty"`
	SuggestedComment       string     `json:"suggested_comment,omitempty"`
	SuggestedDM            string     `json:"suggested_dm,omitempty"`
	HasSuggestions         bool       `json:"has_suggestions"`
	SuggestionsGeneratedAt *time.Time `json:"suggestions_generated_at,omitempty"`
	Status                 LeadStatus `json:"status"`
	DiscoveredAt           time.Time  `json:"discovered_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// SubredditPoll is a global observability record per subreddit name.
type SubredditPoll struct {
	Name             string     `json:"name"`
	LastPollAt       *time.Time `json:"last_poll_at,omitempty"`
	LastPostTime     *time.Time `json:"last_post_timestamp,omitempty"`
	PollCount        int        `json:"poll_count"`
	TotalPostsFound  int        `json:"total_posts_found"`
}

// UsageRecord is a per-(user, apiKind, UTC day) accumulator.
type UsageRecord struct {
	UserID       string    `json:"user_id"`
	APIKind      APIKind   `json:"api_kind"`
	UTCDay       time.Time `json:"utc_day"`
	CallCount    int       `json:"call_count"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
}
