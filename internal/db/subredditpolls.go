package db

import (
	"fmt"
	"time"
)

// RecordSubredditPoll upserts the observability row for one subreddit,
// following the same ON CONFLICT DO UPDATE idiom used for usage counters.
func (db *DB) RecordSubredditPoll(name string, postsFound int, lastPostTime *time.Time, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO subreddit_polls (name, last_poll_at, last_post_timestamp, poll_count, total_posts_found)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_poll_at = excluded.last_poll_at,
			last_post_timestamp = COALESCE(excluded.last_post_timestamp, subreddit_polls.last_post_timestamp),
			poll_count = subreddit_polls.poll_count + 1,
			total_posts_found = subreddit_polls.total_posts_found + excluded.total_posts_found
	`, name, at, lastPostTime, postsFound)
	if err != nil {
		return fmt.Errorf("failed to record subreddit poll: %w", err)
	}
	return nil
}
