package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateCampaign inserts a campaign with the status set on c.
func (db *DB) CreateCampaign(c *Campaign) error {
	queries, err := json.Marshal(c.SearchQueries)
	if err != nil {
		return fmt.Errorf("failed to marshal search queries: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO campaigns (id, owner_user_id, status, business_description, search_queries, poll_interval_hours, custom_comment_prompt, custom_dm_prompt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OwnerUserID, c.Status, c.BusinessDescription, string(queries), c.PollIntervalHours, c.CustomCommentPrompt, c.CustomDmPrompt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetCampaign loads a campaign by id.
func (db *DB) GetCampaign(id string) (*Campaign, error) {
	var c Campaign
	var queries string
	var lastPoll sql.NullTime
	var commentPrompt, dmPrompt sql.NullString

	err := db.QueryRow(`
		SELECT id, owner_user_id, status, business_description, search_queries,
		       poll_interval_hours, last_poll_at, custom_comment_prompt, custom_dm_prompt, created_at
		FROM campaigns WHERE id = ?
	`, id).Scan(&c.ID, &c.OwnerUserID, &c.Status, &c.BusinessDescription, &queries,
		&c.PollIntervalHours, &lastPoll, &commentPrompt, &dmPrompt, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if err := json.Unmarshal([]byte(queries), &c.SearchQueries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search queries: %w", err)
	}
	if lastPoll.Valid {
		c.LastPollAt = &lastPoll.Time
	}
	if commentPrompt.Valid {
		c.CustomCommentPrompt = &commentPrompt.String
	}
	if dmPrompt.Valid {
		c.CustomDmPrompt = &dmPrompt.String
	}
	return &c, nil
}

// CountActiveCampaigns counts a user's non-deleted campaigns, for PlanLimits gating.
func (db *DB) CountActiveCampaigns(userID string) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM campaigns WHERE owner_user_id = ? AND status != 'DELETED'
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	return n, nil
}

// ActiveCampaignsForUser returns every ACTIVE campaign owned by userID.
func (db *DB) ActiveCampaignsForUser(userID string) ([]Campaign, error) {
	rows, err := db.Query(`
		SELECT id, owner_user_id, status, business_description, search_queries,
		       poll_interval_hours, last_poll_at, custom_comment_prompt, custom_dm_prompt, created_at
		FROM campaigns WHERE owner_user_id = ? AND status = 'ACTIVE'
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		var queries string
		var lastPoll sql.NullTime
		var commentPrompt, dmPrompt sql.NullString
		if err := rows.Scan(&c.ID, &c.OwnerUserID, &c.Status, &c.BusinessDescription, &queries,
			&c.PollIntervalHours, &lastPoll, &commentPrompt, &dmPrompt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		_ = json.Unmarshal([]byte(queries), &c.SearchQueries)
		if lastPoll.Valid {
			c.LastPollAt = &lastPoll.Time
		}
		if commentPrompt.Valid {
			c.CustomCommentPrompt = &commentPrompt.String
		}
		if dmPrompt.Valid {
			c.CustomDmPrompt = &dmPrompt.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCampaignStatus updates only the status column.
func (db *DB) SetCampaignStatus(id string, status CampaignStatus) error {
	_, err := db.Exec(`UPDATE campaigns SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set campaign status: %w", err)
	}
	return nil
}

// SetCampaignLastPollAt stamps the campaign's last successful poll time.
func (db *DB) SetCampaignLastPollAt(id string, at time.Time) error {
	_, err := db.Exec(`UPDATE campaigns SET last_poll_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to set last_poll_at: %w", err)
	}
	return nil
}

// ReplaceCampaignSubreddits performs a delete-then-insert of the campaign's
// subreddit selection inside one transaction.
func (db *DB) ReplaceCampaignSubreddits(campaignID string, subs []CampaignSubreddit) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM campaign_subreddits WHERE campaign_id = ?`, campaignID); err != nil {
		return fmt.Errorf("failed to clear subreddits: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO campaign_subreddits (campaign_id, name, title, description, subscribers, relevance_score, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range subs {
		if _, err := stmt.Exec(campaignID, s.Name, s.Title, s.Description, s.Subscribers, s.RelevanceScore, s.Active); err != nil {
			return fmt.Errorf("failed to insert subreddit %s: %w", s.Name, err)
		}
	}

	return tx.Commit()
}

// ActiveSubreddits returns the campaign's currently-active subreddit selection.
func (db *DB) ActiveSubreddits(campaignID string) ([]CampaignSubreddit, error) {
	rows, err := db.Query(`
		SELECT campaign_id, name, title, description, subscribers, relevance_score, active
		FROM campaign_subreddits WHERE campaign_id = ? AND active = 1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subreddits: %w", err)
	}
	defer rows.Close()

	var out []CampaignSubreddit
	for rows.Next() {
		var s CampaignSubreddit
		var rel sql.NullFloat64
		if err := rows.Scan(&s.CampaignID, &s.Name, &s.Title, &s.Description, &s.Subscribers, &rel, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan subreddit: %w", err)
		}
		if rel.Valid {
			s.RelevanceScore = &rel.Float64
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
