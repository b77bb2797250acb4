package db

import (
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

// Init opens the database connection and creates the schema if absent.
func Init(dbPath string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{sqlDB}

	if err := database.createSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return database, nil
}

func (db *DB) createSchema() error {
	schema := `
	PRAGMA journal_mode=WAL;
	PRAGMA busy_timeout=5000;
	PRAGMA foreign_keys=ON;

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		tier TEXT NOT NULL DEFAULT 'FREE_TRIAL',
		status TEXT NOT NULL DEFAULT 'active',
		trial_ends_at DATETIME,
		subscription_ends_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DISCOVERING',
		business_description TEXT NOT NULL,
		search_queries TEXT NOT NULL DEFAULT '[]',
		poll_interval_hours INTEGER NOT NULL DEFAULT 24,
		last_poll_at DATETIME,
		custom_comment_prompt TEXT,
		custom_dm_prompt TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (owner_user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_campaigns_user ON campaigns(owner_user_id);

	CREATE TABLE IF NOT EXISTS campaign_subreddits (
		campaign_id TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT,
		description TEXT,
		subscribers INTEGER DEFAULT 0,
		relevance_score REAL,
		active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (campaign_id, name),
		FOREIGN KEY (campaign_id) REFERENCES campaigns(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS poll_jobs (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'RUNNING',
		trigger TEXT NOT NULL,
		subreddits_polled INTEGER NOT NULL DEFAULT 0,
		posts_fetched INTEGER NOT NULL DEFAULT 0,
		posts_scored INTEGER NOT NULL DEFAULT 0,
		leads_created INTEGER NOT NULL DEFAULT 0,
		leads_deleted INTEGER NOT NULL DEFAULT 0,
		suggestions_generated INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME,
		FOREIGN KEY (campaign_id) REFERENCES campaigns(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_poll_jobs_campaign ON poll_jobs(campaign_id);

	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL,
		poll_job_id TEXT,
		reddit_post_id TEXT NOT NULL,
		subreddit_name TEXT NOT NULL,
		title TEXT,
		content TEXT,
		author TEXT,
		post_url TEXT,
		reddit_score INTEGER DEFAULT 0,
		num_comments INTEGER DEFAULT 0,
		created_at_utc INTEGER NOT NULL,
		relevancy_score INTEGER,
		relevancy_reason TEXT,
		suggested_comment TEXT,
		suggested_dm TEXT,
		has_suggestions INTEGER NOT NULL DEFAULT 0,
		suggestions_generated_at DATETIME,
		status TEXT NOT NULL DEFAULT 'NEW',
		discovered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (campaign_id) REFERENCES campaigns(id) ON DELETE CASCADE,
		FOREIGN KEY (poll_job_id) REFERENCES poll_jobs(id) ON DELETE SET NULL,
		UNIQUE(campaign_id, reddit_post_id)
	);
	CREATE INDEX IF NOT EXISTS idx_leads_reddit_post ON leads(reddit_post_id);
	CREATE INDEX IF NOT EXISTS idx_leads_poll_job ON leads(poll_job_id);
	CREATE INDEX IF NOT EXISTS idx_leads_campaign ON leads(campaign_id);

	CREATE TABLE IF NOT EXISTS subreddit_polls (
		name TEXT PRIMARY KEY,
		last_poll_at DATETIME,
		last_post_timestamp DATETIME,
		poll_count INTEGER NOT NULL DEFAULT 0,
		total_posts_found INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS usage_records (
		user_id TEXT NOT NULL,
		api_kind TEXT NOT NULL,
		utc_day DATETIME NOT NULL,
		call_count INTEGER NOT NULL DEFAULT 0,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, api_kind, utc_day)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_records_user ON usage_records(user_id);

	CREATE TABLE IF NOT EXISTS provider_credentials (
		provider TEXT PRIMARY KEY,
		encrypted_value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
