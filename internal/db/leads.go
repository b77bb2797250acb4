package db

import (
	"database/sql"
	"fmt"
	"time"
)

// ExistingRedditPostIDs builds the Phase-1 dedup set for a campaign.
func (db *DB) ExistingRedditPostIDs(campaignID string) (map[string]struct{}, error) {
	rows, err := db.Query(`SELECT reddit_post_id FROM leads WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing lead ids: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan lead id: %w", err)
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

// InsertUnscoredLead persists a Phase 2 placeholder row with a null score.
func (db *DB) InsertUnscoredLead(l *Lead) error {
	_, err := db.Exec(`
		INSERT INTO leads (id, campaign_id, poll_job_id, reddit_post_id, subreddit_name, title, content,
		                    author, post_url, reddit_score, num_comments, created_at_utc,
		                    relevancy_reason, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.CampaignID, l.PollJobID, l.RedditPostID, l.SubredditName, l.Title, l.Content,
		l.Author, l.PostURL, l.RedditScore, l.NumComments, l.CreatedAtUTC, "Pending scoring", LeadNew)
	if err != nil {
		return fmt.Errorf("failed to insert unscored lead: %w", err)
	}
	return nil
}

// LeadsForPollJob returns every Lead row produced by a given run.
func (db *DB) LeadsForPollJob(pollJobID string) ([]Lead, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, poll_job_id, reddit_post_id, subreddit_name, title, content, author,
		       post_url, reddit_score, num_comments, created_at_utc, relevancy_score, relevancy_reason,
		       suggested_comment, suggested_dm, has_suggestions, suggestions_generated_at, status,
		       discovered_at, updated_at
		FROM leads WHERE poll_job_id = ?
	`, pollJobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads for poll job: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func scanLeads(rows *sql.Rows) ([]Lead, error) {
	var out []Lead
	for rows.Next() {
		var l Lead
		var pollJobID sql.NullString
		var score sql.NullInt64
		var suggestionsAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.CampaignID, &pollJobID, &l.RedditPostID, &l.SubredditName, &l.Title, &l.Content,
			&l.Author, &l.PostURL, &l.RedditScore, &l.NumComments, &l.CreatedAtUTC, &score, &l.RelevancyReason,
			&l.SuggestedComment, &l.SuggestedDM, &l.HasSuggestions, &suggestionsAt, &l.Status,
			&l.DiscoveredAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		if pollJobID.Valid {
			l.PollJobID = &pollJobID.String
		}
		if score.Valid {
			v := int(score.Int64)
			l.RelevancyScore = &v
		}
		if suggestionsAt.Valid {
			l.SuggestionsGeneratedAt = &suggestionsAt.Time
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LeadsForCampaign returns a campaign's leads, most recently discovered
// first, for the read-only API surface.
func (db *DB) LeadsForCampaign(campaignID string, limit int) ([]Lead, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, poll_job_id, reddit_post_id, subreddit_name, title, content, author,
		       post_url, reddit_score, num_comments, created_at_utc, relevancy_score, relevancy_reason,
		       suggested_comment, suggested_dm, has_suggestions, suggestions_generated_at, status,
		       discovered_at, updated_at
		FROM leads WHERE campaign_id = ?
		ORDER BY discovered_at DESC
		LIMIT ?
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads for campaign: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

// GetLead loads a single lead by id.
func (db *DB) GetLead(id string) (*Lead, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, poll_job_id, reddit_post_id, subreddit_name, title, content, author,
		       post_url, reddit_score, num_comments, created_at_utc, relevancy_score, relevancy_reason,
		       suggested_comment, suggested_dm, has_suggestions, suggestions_generated_at, status,
		       discovered_at, updated_at
		FROM leads WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead: %w", err)
	}
	defer rows.Close()
	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, fmt.Errorf("lead %s not found", id)
	}
	return &leads[0], nil
}

// UpdateLeadScore sets the score and reason assigned in Phase 3.
func (db *DB) UpdateLeadScore(id string, score int, reason string) error {
	_, err := db.Exec(`
		UPDATE leads SET relevancy_score = ?, relevancy_reason = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, score, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update lead score: %w", err)
	}
	return nil
}

// DeleteLowScoreLeads removes every lead from this job scoring below the
// cutoff or left unscored, and reports how many rows were removed.
func (db *DB) DeleteLowScoreLeads(pollJobID string, minScore int) (int, error) {
	res, err := db.Exec(`
		DELETE FROM leads WHERE poll_job_id = ? AND (relevancy_score IS NULL OR relevancy_score < ?)
	`, pollJobID, minScore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete low-score leads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted leads: %w", err)
	}
	return int(n), nil
}

// TopUnsuggestedLeads returns up to limit survivors of this job with score
// at or above minScore, highest first, for Phase 5 auto-suggestion.
func (db *DB) TopUnsuggestedLeads(pollJobID string, minScore, limit int) ([]Lead, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, poll_job_id, reddit_post_id, subreddit_name, title, content, author,
		       post_url, reddit_score, num_comments, created_at_utc, relevancy_score, relevancy_reason,
		       suggested_comment, suggested_dm, has_suggestions, suggestions_generated_at, status,
		       discovered_at, updated_at
		FROM leads
		WHERE poll_job_id = ? AND relevancy_score >= ?
		ORDER BY relevancy_score DESC
		LIMIT ?
	`, pollJobID, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

// SetLeadSuggestions persists the Phase 5 / on-demand suggestion outcome.
func (db *DB) SetLeadSuggestions(id, comment, dm string, at time.Time) error {
	_, err := db.Exec(`
		UPDATE leads SET suggested_comment = ?, suggested_dm = ?, has_suggestions = 1,
		       suggestions_generated_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, comment, dm, at, id)
	if err != nil {
		return fmt.Errorf("failed to set lead suggestions: %w", err)
	}
	return nil
}
