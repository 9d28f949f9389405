package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements are written to run on both Postgres and SQLite so the
// tests exercise the exact DDL production uses. Uniqueness of phone numbers
// and of (student, date) pairs is declared here, at the storage layer; the
// application only catches the resulting conflict errors.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		project_id TEXT REFERENCES projects(id) ON DELETE CASCADE,
		name       TEXT,
		phone      TEXT,
		school     TEXT,
		year       TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS students_global_phone
		ON students (phone) WHERE project_id IS NULL AND phone IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS students_project_phone
		ON students (project_id, phone) WHERE project_id IS NOT NULL AND phone IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS attendances (
		id         TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		date       TEXT NOT NULL,
		checked_at TIMESTAMP NOT NULL,
		UNIQUE (student_id, date)
	)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
