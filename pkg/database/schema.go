package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS departments (
	name TEXT PRIMARY KEY,
	position SERIAL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS departments_name_lower_idx ON departments (LOWER(name))`,
	`CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	seq BIGSERIAL,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	role TEXT NOT NULL,
	department TEXT NULL REFERENCES departments(name),
	phone TEXT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	location TEXT NOT NULL,
	latitude DOUBLE PRECISION NULL,
	longitude DOUBLE PRECISION NULL,
	image_url TEXT NULL,
	reported_by TEXT NOT NULL,
	reporter_name TEXT NOT NULL,
	status TEXT NOT NULL,
	department TEXT NULL,
	assigned_to TEXT NULL,
	assigned_to_name TEXT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ NULL,
	resolution_note TEXT NULL,
	resolution_image_url TEXT NULL,
	rejection_reason TEXT NULL,
	upvotes TEXT[] NOT NULL DEFAULT '{}',
	upvote_count INTEGER NOT NULL DEFAULT 0,
	priority TEXT NOT NULL,
	sla_deadline TIMESTAMPTZ NULL,
	is_overdue BOOLEAN NOT NULL DEFAULT FALSE,
	feedback JSONB NULL
)`,
	`CREATE INDEX IF NOT EXISTS issues_assigned_status_idx ON issues (assigned_to, status)`,
	`CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	issue_id TEXT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	read BOOLEAN NOT NULL DEFAULT FALSE,
	priority TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS notifications_issue_type_idx ON notifications (issue_id, type)`,
	`CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	issue_id TEXT NOT NULL REFERENCES issues(id),
	user_id TEXT NOT NULL,
	user_name TEXT NOT NULL,
	user_role TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS comments_issue_idx ON comments (issue_id, created_at)`,
}

// EnsureSchema creates the tables used by the repositories when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	return WithTx(ctx, db, func(tx *sqlx.Tx) error {
		for i, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
