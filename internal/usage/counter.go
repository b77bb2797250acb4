// Package usage implements per-(user, api kind, UTC day) call counters used
// for observability and abuse gating.
package usage

import (
	"fmt"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

// Counter increments usage atomically via an upsert, the same ON CONFLICT
// DO UPDATE idiom the teacher uses for article/comment storage.
type Counter struct {
	db *db.DB
}

// New builds a Counter over the given database handle.
func New(database *db.DB) *Counter {
	return &Counter{db: database}
}

// Increment adds the given call and token counts to today's UTC bucket
// for (userID, kind). Safe under concurrent calls for the same key.
func (c *Counter) Increment(userID string, kind db.APIKind, calls, inputTokens, outputTokens int) error {
	day := utcMidnight(time.Now())
	_, err := c.db.Exec(`
		INSERT INTO usage_records (user_id, api_kind, utc_day, call_count, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, api_kind, utc_day) DO UPDATE SET
			call_count = usage_records.call_count + excluded.call_count,
			input_tokens = usage_records.input_tokens + excluded.input_tokens,
			output_tokens = usage_records.output_tokens + excluded.output_tokens
	`, userID, kind, day, calls, inputTokens, outputTokens)
	if err != nil {
		return fmt.Errorf("failed to increment usage for %s/%s: %w", userID, kind, err)
	}
	return nil
}

// Today returns the accumulated usage row for (userID, kind) for the current
// UTC day, or a zero-valued record if nothing has been recorded yet.
func (c *Counter) Today(userID string, kind db.APIKind) (db.UsageRecord, error) {
	day := utcMidnight(time.Now())
	rec := db.UsageRecord{UserID: userID, APIKind: kind, UTCDay: day}
	err := c.db.QueryRow(`
		SELECT call_count, input_tokens, output_tokens FROM usage_records
		WHERE user_id = ? AND api_kind = ? AND utc_day = ?
	`, userID, kind, day).Scan(&rec.CallCount, &rec.InputTokens, &rec.OutputTokens)
	if err != nil && err.Error() != "sql: no rows in result set" {
		return rec, fmt.Errorf("failed to read usage: %w", err)
	}
	return rec, nil
}

func utcMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
