// Package pollengine implements the seven-phase poll pipeline: fetch new
// posts, persist them unscored, score them in batches, drop the low
// scorers, generate outreach suggestions for the best of what remains,
// finalize the job, and send a summary email. Every phase commits before
// the next begins; a crash between phases leaves auditable rows behind.
package pollengine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/email"
	"github.com/cheolwanpark/leadsignal/engine/internal/plan"
	"github.com/cheolwanpark/leadsignal/engine/internal/scoring"
	"github.com/cheolwanpark/leadsignal/engine/internal/source"
	"github.com/cheolwanpark/leadsignal/engine/internal/usage"
	"github.com/google/uuid"
)

const (
	fetchConcurrency    = 8
	defaultMaxPostsPoll = 20
	minPostsPerSub      = 5
)

// Engine is the PollEngine.
type Engine struct {
	db      *db.DB
	source  source.Source
	scoring *scoring.Service
	email   email.Sender
	usage   *usage.Counter

	// minRelevancyScore is MIN_RELEVANCY_SCORE: leads scoring below this
	// are dropped in the cleanup phase.
	minRelevancyScore int
	// autoSuggestionThreshold is AUTO_SUGGESTION_THRESHOLD: only leads at
	// or above this score are eligible for auto-generated suggestions.
	autoSuggestionThreshold int
}

// New builds an Engine. minRelevancyScore and autoSuggestionThreshold come
// from MIN_RELEVANCY_SCORE/AUTO_SUGGESTION_THRESHOLD.
func New(database *db.DB, src source.Source, scoringSvc *scoring.Service, emailSender email.Sender, usageCounter *usage.Counter, minRelevancyScore, autoSuggestionThreshold int) *Engine {
	return &Engine{
		db: database, source: src, scoring: scoringSvc, email: emailSender, usage: usageCounter,
		minRelevancyScore: minRelevancyScore, autoSuggestionThreshold: autoSuggestionThreshold,
	}
}

// RunPoll runs one poll job to completion and returns its final record.
func (e *Engine) RunPoll(ctx context.Context, campaignID string, trigger db.PollJobTrigger, cb Callbacks) (*db.PollJob, error) {
	if cb == nil {
		cb = NoopCallbacks{}
	}

	campaign, user, subs, err := e.validate(campaignID)
	if err != nil {
		return nil, err
	}

	job := &db.PollJob{
		ID:         uuid.NewString(),
		CampaignID: campaign.ID,
		Status:     db.PollJobRunning,
		Trigger:    trigger,
		StartedAt:  time.Now(),
	}
	if err := e.db.CreatePollJob(job); err != nil {
		return nil, fmt.Errorf("create poll job: %w", err)
	}

	if err := e.run(ctx, job, campaign, user, subs, cb); err != nil {
		now := time.Now()
		job.Status = db.PollJobFailed
		job.ErrorMessage = err.Error()
		job.CompletedAt = &now
		_ = e.db.FinishPollJob(job.ID, db.PollJobFailed, err.Error(), now)
		cb.OnError(err.Error())
		return job, err
	}

	cb.OnComplete(statsFromJob(job))
	return job, nil
}

func (e *Engine) validate(campaignID string) (*db.Campaign, *db.User, []db.CampaignSubreddit, error) {
	campaign, err := e.db.GetCampaign(campaignID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.Status != db.CampaignActive {
		return nil, nil, nil, fmt.Errorf("campaign %s is not active (status=%s)", campaignID, campaign.Status)
	}

	user, err := e.db.GetUser(campaign.OwnerUserID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load owning user: %w", err)
	}
	if !user.Pollable(time.Now()) {
		return nil, nil, nil, fmt.Errorf("user %s is not pollable", user.ID)
	}

	subs, err := e.db.ActiveSubreddits(campaignID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load active subreddits: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil, nil, fmt.Errorf("campaign %s has no active subreddits", campaignID)
	}

	return campaign, user, subs, nil
}

func (e *Engine) run(ctx context.Context, job *db.PollJob, campaign *db.Campaign, user *db.User, subs []db.CampaignSubreddit, cb Callbacks) error {
	limits := plan.Resolve(user.Tier)

	cb.OnPhase("fetch")
	newPosts, err := e.fetchPhase(ctx, job, campaign, subs, limits, user.ID, cb)
	if err != nil {
		return err
	}
	if err := e.db.UpdatePollJobCounters(job); err != nil {
		return fmt.Errorf("persist fetch counters: %w", err)
	}

	if job.PostsFetched == 0 {
		now := time.Now()
		job.Status = db.PollJobCompleted
		job.CompletedAt = &now
		if err := e.db.FinishPollJob(job.ID, db.PollJobCompleted, "", now); err != nil {
			return fmt.Errorf("finish empty poll job: %w", err)
		}
		cb.OnPhase("completed (no posts)")
		return nil
	}

	cb.OnPhase("persist")
	leads, err := e.persistPhase(job, newPosts)
	if err != nil {
		return err
	}

	cb.OnPhase("score")
	if err := e.scorePhase(ctx, job, campaign, leads, cb); err != nil {
		return err
	}

	cb.OnPhase("cleanup")
	if err := e.cleanupPhase(job, cb); err != nil {
		return err
	}

	cb.OnPhase("suggestions")
	if err := e.suggestPhase(ctx, job, campaign, limits); err != nil {
		return err
	}

	cb.OnPhase("finalize")
	if err := e.finalizePhase(job, campaign); err != nil {
		return err
	}

	cb.OnPhase("email")
	e.emailPhase(ctx, job, user) // never fails the job

	return nil
}

type fetchedPost struct {
	subreddit string
	post      source.Post
}

// fetchPhase scrapes every active subreddit up to fetchConcurrency at a
// time, deduplicating against leads already on file for the campaign plus
// posts seen earlier in this same fetch under a shared, mutex-guarded set.
func (e *Engine) fetchPhase(ctx context.Context, job *db.PollJob, campaign *db.Campaign, subs []db.CampaignSubreddit, limits plan.Limits, userID string, cb Callbacks) ([]fetchedPost, error) {
	seen, err := e.db.ExistingRedditPostIDs(campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("load existing post ids: %w", err)
	}

	maxPostsPoll := limits.MaxPostsPerPoll
	if maxPostsPoll == 0 {
		maxPostsPoll = defaultMaxPostsPoll
	}
	postsPerSub := maxPostsPoll / len(subs)
	if postsPerSub < minPostsPerSub {
		postsPerSub = minPostsPerSub
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, fetchConcurrency)
	var newPosts []fetchedPost

	for _, sub := range subs {
		sub := sub
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			posts, err := e.source.ScrapeSubreddit(ctx, sub.Name, postsPerSub, "new", "day")
			if err != nil {
				cb.OnSubredditFetched(sub.Name, 0, err)
				return
			}

			var lastPostTime *time.Time
			added := 0
			mu.Lock()
			for _, p := range posts {
				if _, exists := seen[p.ID]; exists {
					continue
				}
				seen[p.ID] = struct{}{}
				newPosts = append(newPosts, fetchedPost{subreddit: sub.Name, post: p})
				added++
				if lastPostTime == nil || p.CreatedUTC.After(*lastPostTime) {
					t := p.CreatedUTC
					lastPostTime = &t
				}
			}
			job.SubredditsPolled++
			job.PostsFetched += added
			mu.Unlock()

			if e.usage != nil {
				_ = e.usage.Increment(userID, e.source.ProviderKind(), 1, 0, 0)
			}
			if err := e.db.RecordSubredditPoll(sub.Name, len(posts), lastPostTime, time.Now()); err != nil {
				_ = err // observability write failure must not abort the fetch
			}
			cb.OnSubredditFetched(sub.Name, added, nil)
		}()
	}

	wg.Wait()
	return newPosts, nil
}

func (e *Engine) persistPhase(job *db.PollJob, newPosts []fetchedPost) ([]db.Lead, error) {
	leads := make([]db.Lead, 0, len(newPosts))
	for _, fp := range newPosts {
		l := db.Lead{
			ID:            uuid.NewString(),
			CampaignID:    job.CampaignID,
			PollJobID:     &job.ID,
			RedditPostID:  fp.post.ID,
			SubredditName: fp.subreddit,
			Title:         fp.post.Title,
			Content:       fp.post.Content,
			Author:        fp.post.Author,
			PostURL:       fp.post.URL,
			RedditScore:   fp.post.Score,
			NumComments:   fp.post.NumComments,
			CreatedAtUTC:  fp.post.CreatedUTC.Unix(),
			Status:        db.LeadNew,
		}
		if err := e.db.InsertUnscoredLead(&l); err != nil {
			return nil, fmt.Errorf("insert unscored lead %s: %w", l.RedditPostID, err)
		}
		leads = append(leads, l)
	}
	return leads, nil
}

func (e *Engine) scorePhase(ctx context.Context, job *db.PollJob, campaign *db.Campaign, leads []db.Lead, cb Callbacks) error {
	posts := make([]scoring.ScorablePost, len(leads))
	for i, l := range leads {
		posts[i] = scoring.ScorablePost{
			PostID:      l.ID,
			Subreddit:   l.SubredditName,
			RedditScore: l.RedditScore,
			NumComments: l.NumComments,
			Title:       l.Title,
			Content:     l.Content,
		}
	}

	results := e.scoring.BatchScore(ctx, campaign.OwnerUserID, posts, campaign.BusinessDescription, func(done, total int) {
		cb.OnBatchScored(done, total)
	})

	scored := 0
	for _, r := range results {
		if err := e.db.UpdateLeadScore(r.PostID, r.Score, r.Reason); err != nil {
			return fmt.Errorf("update lead score %s: %w", r.PostID, err)
		}
		scored++
	}
	job.PostsScored = scored
	return e.db.UpdatePollJobCounters(job)
}

func (e *Engine) cleanupPhase(job *db.PollJob, cb Callbacks) error {
	deleted, err := e.db.DeleteLowScoreLeads(job.ID, e.minRelevancyScore)
	if err != nil {
		return fmt.Errorf("delete low-score leads: %w", err)
	}
	job.LeadsDeleted = deleted
	job.LeadsCreated = job.PostsFetched - deleted
	if job.LeadsCreated < 0 {
		job.LeadsCreated = 0
	}
	if err := e.db.UpdatePollJobCounters(job); err != nil {
		return err
	}

	survivors, err := e.db.LeadsForPollJob(job.ID)
	if err != nil {
		return fmt.Errorf("load surviving leads: %w", err)
	}
	for _, l := range survivors {
		cb.OnLeadCreated(l)
	}
	return nil
}

func (e *Engine) suggestPhase(ctx context.Context, job *db.PollJob, campaign *db.Campaign, limits plan.Limits) error {
	survivors, err := e.db.TopUnsuggestedLeads(job.ID, e.autoSuggestionThreshold, limits.MaxAutoSuggestions)
	if err != nil {
		return fmt.Errorf("load top leads: %w", err)
	}
	if len(survivors) == 0 {
		return nil
	}

	scored := make([]scoring.ScoredPost, len(survivors))
	for i, l := range survivors {
		score := 0
		if l.RelevancyScore != nil {
			score = *l.RelevancyScore
		}
		scored[i] = scoring.ScoredPost{
			Post: scoring.ScorablePost{
				PostID:      l.ID,
				Subreddit:   l.SubredditName,
				RedditScore: l.RedditScore,
				NumComments: l.NumComments,
				Title:       l.Title,
				Content:     l.Content,
			},
			Score: score,
		}
	}

	suggestions := e.scoring.Suggest(ctx, campaign.OwnerUserID, scored, campaign.BusinessDescription, limits.MaxAutoSuggestions, campaign.CustomCommentPrompt, campaign.CustomDmPrompt)
	generated := 0
	now := time.Now()
	for _, s := range suggestions {
		if !s.OK {
			continue
		}
		if err := e.db.SetLeadSuggestions(s.PostID, s.SuggestedComment, s.SuggestedDM, now); err != nil {
			return fmt.Errorf("set lead suggestions %s: %w", s.PostID, err)
		}
		generated++
	}
	job.SuggestionsGenerated = generated
	return e.db.UpdatePollJobCounters(job)
}

func (e *Engine) finalizePhase(job *db.PollJob, campaign *db.Campaign) error {
	now := time.Now()
	job.Status = db.PollJobCompleted
	job.CompletedAt = &now
	if err := e.db.FinishPollJob(job.ID, db.PollJobCompleted, "", now); err != nil {
		return fmt.Errorf("finish poll job: %w", err)
	}
	if err := e.db.SetCampaignLastPollAt(campaign.ID, now); err != nil {
		return fmt.Errorf("stamp campaign last poll: %w", err)
	}
	return nil
}

func (e *Engine) emailPhase(ctx context.Context, job *db.PollJob, user *db.User) {
	leads, err := e.db.LeadsForPollJob(job.ID)
	if err != nil {
		return
	}

	var scored []db.Lead
	for _, l := range leads {
		if l.RelevancyScore != nil {
			scored = append(scored, l)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return *scored[i].RelevancyScore > *scored[j].RelevancyScore })
	if len(scored) > 10 {
		scored = scored[:10]
	}

	subject, body := renderSummaryEmail(job, scored)
	e.email.Send(ctx, user.Email, subject, body)
}

// SuggestForLead returns lead's existing suggestions, or generates them
// on demand via scoring.SuggestOnDemand when the lead has none yet — the
// single-call path a "view lead" HTTP handler uses instead of waiting for
// the next scheduled poll's batch suggestion phase.
func (e *Engine) SuggestForLead(ctx context.Context, leadID string) (*db.Lead, error) {
	lead, err := e.db.GetLead(leadID)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if lead.HasSuggestions {
		return lead, nil
	}

	campaign, err := e.db.GetCampaign(lead.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	post := scoring.ScorablePost{
		PostID:      lead.ID,
		Subreddit:   lead.SubredditName,
		RedditScore: lead.RedditScore,
		NumComments: lead.NumComments,
		Title:       lead.Title,
		Content:     lead.Content,
	}
	suggestion := e.scoring.SuggestOnDemand(ctx, campaign.OwnerUserID, post, campaign.BusinessDescription, campaign.CustomCommentPrompt, campaign.CustomDmPrompt)
	if !suggestion.OK {
		return lead, nil
	}

	now := time.Now()
	if err := e.db.SetLeadSuggestions(lead.ID, suggestion.SuggestedComment, suggestion.SuggestedDM, now); err != nil {
		return nil, fmt.Errorf("set lead suggestions: %w", err)
	}
	lead.SuggestedComment = suggestion.SuggestedComment
	lead.SuggestedDM = suggestion.SuggestedDM
	lead.HasSuggestions = true
	lead.SuggestionsGeneratedAt = &now
	return lead, nil
}
