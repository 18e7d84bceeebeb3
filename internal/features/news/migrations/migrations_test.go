package migrations

import (
	"context"
	"testing"

	"genienews/internal/core"
)

var newsTables = []string{
	"news_sources",
	"news_media_assets",
	"news_raw_articles",
	"news_raw_article_media",
	"news_curated_articles",
	"news_ingestion_logs",
	"news_digest_segments",
}

func openTestDB(t *testing.T) *core.Database {
	t.Helper()

	db, err := core.OpenDatabase(":memory:", core.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableCount(t *testing.T, db *core.Database, table string) int {
	t.Helper()

	var count int
	err := db.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to check table %s: %v", table, err)
	}
	return count
}

func TestNewsMigrations(t *testing.T) {
	db := openTestDB(t)
	manager := NewManager(db, core.NewNopLogger())
	ctx := context.Background()

	if err := manager.Migrate(ctx); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	for _, table := range newsTables {
		if tableCount(t, db, table) != 1 {
			t.Errorf("Table %s was not created", table)
		}
	}

	// Re-running is a no-op
	if err := manager.Migrate(ctx); err != nil {
		t.Fatalf("Failed to re-apply migrations: %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Failed to get status: %v", err)
	}
	if status.AppliedCount != len(manager.Migrations()) {
		t.Errorf("Expected %d applied migrations, got %d", len(manager.Migrations()), status.AppliedCount)
	}

	pending, err := manager.GetPendingMigrations(ctx)
	if err != nil {
		t.Fatalf("Failed to get pending migrations: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending migrations, got %d", len(pending))
	}
}

func TestMigrationRollback(t *testing.T) {
	db := openTestDB(t)
	manager := NewManager(db, core.NewNopLogger())
	ctx := context.Background()

	if err := manager.Migrate(ctx); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	if err := manager.Rollback(ctx); err != nil {
		t.Fatalf("Failed to rollback migrations: %v", err)
	}

	for _, table := range newsTables {
		if tableCount(t, db, table) != 0 {
			t.Errorf("Table %s was not removed during rollback", table)
		}
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Failed to get status: %v", err)
	}
	if len(status.Pending) != len(manager.Migrations()) {
		t.Errorf("Expected %d pending migrations after rollback, got %d", len(manager.Migrations()), len(status.Pending))
	}

	if err := manager.Rollback(ctx); err == nil {
		t.Error("Expected an error when nothing is left to roll back")
	}
}

func TestUniqueConstraints(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := NewManager(db, core.NewNopLogger()).Migrate(ctx); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	insertSource := `INSERT INTO news_sources (name, feed_url) VALUES (?, ?)`
	if _, err := db.ExecWithTimeout(ctx, insertSource, "A", "https://a.example/feed"); err != nil {
		t.Fatalf("Failed to insert source: %v", err)
	}
	if _, err := db.ExecWithTimeout(ctx, insertSource, "A again", "https://a.example/feed"); err == nil {
		t.Error("Expected duplicate feed_url to be rejected")
	}

	insertDigest := `INSERT INTO news_digest_segments (date, audio_file, script) VALUES (?, ?, ?)`
	if _, err := db.ExecWithTimeout(ctx, insertDigest, "2025-01-01", "a.mp3", "s"); err != nil {
		t.Fatalf("Failed to insert digest: %v", err)
	}
	if _, err := db.ExecWithTimeout(ctx, insertDigest, "2025-01-01", "b.mp3", "s"); err == nil {
		t.Error("Expected duplicate digest date to be rejected")
	}
}
