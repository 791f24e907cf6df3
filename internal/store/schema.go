package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as unix milliseconds so range filters compare
// integers rather than driver-formatted strings.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS competitors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		base_url TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		competitor_id INTEGER NOT NULL REFERENCES competitors(id),
		asset_type TEXT NOT NULL,
		url TEXT NOT NULL,
		crawl_frequency TEXT NOT NULL DEFAULT 'daily',
		priority_threshold TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		UNIQUE (competitor_id, url)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id),
		content_hash TEXT NOT NULL,
		text TEXT,
		html TEXT,
		structured TEXT,
		status_code INTEGER NOT NULL DEFAULT 0,
		captured_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_asset_captured
		ON snapshots (asset_id, captured_at DESC)`,
	`CREATE TABLE IF NOT EXISTS changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id),
		snapshot_before_id INTEGER NOT NULL REFERENCES snapshots(id),
		snapshot_after_id INTEGER NOT NULL UNIQUE REFERENCES snapshots(id),
		category TEXT NOT NULL,
		priority TEXT,
		summary TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		before_excerpt TEXT NOT NULL DEFAULT '',
		after_excerpt TEXT NOT NULL DEFAULT '',
		diff_metadata TEXT,
		change_percentage REAL NOT NULL DEFAULT 0,
		suppressed_reason TEXT,
		detected_at INTEGER NOT NULL,
		sent INTEGER NOT NULL DEFAULT 0,
		sent_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_changes_pending
		ON changes (priority, sent, detected_at)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		change_id INTEGER NOT NULL REFERENCES changes(id),
		priority TEXT NOT NULL,
		delivery_type TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		sent_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		purpose TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

// migrate creates any missing tables and indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}
