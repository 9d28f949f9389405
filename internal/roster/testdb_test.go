package roster

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"rollcall/internal/store"
)

// newTestDB opens a throwaway SQLite database and applies the production
// schema. A single connection keeps the foreign_keys pragma in effect for
// every statement.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", t.TempDir()+"/rollcall.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewRepository(db), db
}

func strptr(s string) *string { return &s }

func testTime() time.Time {
	return time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
}

// seedProject inserts an owner account and a project, returning its scope.
func seedProject(t *testing.T, repo *Repository, db *sql.DB, owner string) Scope {
	t.Helper()
	seedUser(t, db, owner)
	p, err := repo.CreateProject(context.Background(), owner, "Test Book")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return In(p.ID)
}

func seedUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, 'x', CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO NOTHING
	`, id, id+"@example.com")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}
