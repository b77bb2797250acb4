package db

import (
	"database/sql"
	"fmt"
	"time"
)

// CreatePollJob inserts a PollJob row in RUNNING status.
func (db *DB) CreatePollJob(j *PollJob) error {
	_, err := db.Exec(`
		INSERT INTO poll_jobs (id, campaign_id, status, trigger, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, j.ID, j.CampaignID, j.Status, j.Trigger, j.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create poll job: %w", err)
	}
	return nil
}

// UpdatePollJobCounters persists the monotone counters tracked through a run.
func (db *DB) UpdatePollJobCounters(j *PollJob) error {
	_, err := db.Exec(`
		UPDATE poll_jobs SET subreddits_polled = ?, posts_fetched = ?, posts_scored = ?,
		       leads_created = ?, leads_deleted = ?, suggestions_generated = ?
		WHERE id = ?
	`, j.SubredditsPolled, j.PostsFetched, j.PostsScored, j.LeadsCreated, j.LeadsDeleted, j.SuggestionsGenerated, j.ID)
	if err != nil {
		return fmt.Errorf("failed to update poll job counters: %w", err)
	}
	return nil
}

// FinishPollJob transitions a job to a terminal status and stamps completedAt.
func (db *DB) FinishPollJob(id string, status PollJobStatus, errMsg string, completedAt time.Time) error {
	_, err := db.Exec(`
		UPDATE poll_jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to finish poll job: %w", err)
	}
	return nil
}

// PollJobsForCampaign returns a campaign's poll jobs, most recent first.
func (db *DB) PollJobsForCampaign(campaignID string, limit int) ([]PollJob, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, status, trigger, subreddits_polled, posts_fetched, posts_scored,
		       leads_created, leads_deleted, suggestions_generated, error_message, started_at, completed_at
		FROM poll_jobs WHERE campaign_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll jobs for campaign: %w", err)
	}
	defer rows.Close()

	var out []PollJob
	for rows.Next() {
		var j PollJob
		var errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.CampaignID, &j.Status, &j.Trigger, &j.SubredditsPolled, &j.PostsFetched,
			&j.PostsScored, &j.LeadsCreated, &j.LeadsDeleted, &j.SuggestionsGenerated, &errMsg, &j.StartedAt,
			&completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll job: %w", err)
		}
		j.ErrorMessage = errMsg.String
		if completedAt.Valid {
			j.CompletedAt = &completedAt.Time
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// GetPollJob loads a poll job by id.
func (db *DB) GetPollJob(id string) (*PollJob, error) {
	var j PollJob
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := db.QueryRow(`
		SELECT id, campaign_id, status, trigger, subreddits_polled, posts_fetched, posts_scored,
		       leads_created, leads_deleted, suggestions_generated, error_message, started_at, completed_at
		FROM poll_jobs WHERE id = ?
	`, id).Scan(&j.ID, &j.CampaignID, &j.Status, &j.Trigger, &j.SubredditsPolled, &j.PostsFetched, &j.PostsScored,
		&j.LeadsCreated, &j.LeadsDeleted, &j.SuggestionsGenerated, &errMsg, &j.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("poll job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll job: %w", err)
	}
	j.ErrorMessage = errMsg.String
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}
