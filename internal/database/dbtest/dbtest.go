// Package dbtest provides migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/cicero/internal/database"
)

// New returns a fresh migrated SQLite database that is closed when the
// test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// InsertUser creates a local account row and returns its id.
func InsertUser(t testing.TB, db *bun.DB, email string) uuid.UUID {
	t.Helper()

	hash := "$argon2id$placeholder"
	now := time.Now().UTC()
	u := &database.User{
		ID:           uuid.New(),
		Name:         "Test",
		Email:        email,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := db.NewInsert().Model(u).Exec(context.Background()); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return u.ID
}
