package db

import (
	"database/sql"
	"fmt"
	"time"
)

// GetUser loads a user by id.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	var trialEnds, subEnds sql.NullTime
	err := db.QueryRow(`
		SELECT id, email, tier, status, trial_ends_at, subscription_ends_at, created_at
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.Tier, &u.Status, &trialEnds, &subEnds, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if trialEnds.Valid {
		u.TrialEndsAt = &trialEnds.Time
	}
	if subEnds.Valid {
		u.SubscriptionEndsAt = &subEnds.Time
	}
	return &u, nil
}

// PollableUsers returns every user with at least one ACTIVE campaign who
// passes User.Pollable, for the scheduler's hourly sweep.
func (db *DB) PollableUsers(now time.Time) ([]User, error) {
	rows, err := db.Query(`
		SELECT DISTINCT u.id, u.email, u.tier, u.status, u.trial_ends_at, u.subscription_ends_at, u.created_at
		FROM users u
		JOIN campaigns c ON c.owner_user_id = u.id
		WHERE c.status = 'ACTIVE'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pollable users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var trialEnds, subEnds sql.NullTime
		if err := rows.Scan(&u.ID, &u.Email, &u.Tier, &u.Status, &trialEnds, &subEnds, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if trialEnds.Valid {
			u.TrialEndsAt = &trialEnds.Time
		}
		if subEnds.Valid {
			u.SubscriptionEndsAt = &subEnds.Time
		}
		if u.Pollable(now) {
			users = append(users, u)
		}
	}
	return users, rows.Err()
}
