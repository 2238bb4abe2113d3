package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/vigintitres/scripta/backend/internal/posts"
	"go.uber.org/zap"
)

func testDSN() string {
	return fmt.Sprintf("file:scripta_db_%d?mode=memory&cache=shared", time.Now().UnixNano())
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", zap.NewNop()); err == nil {
		t.Fatalf("expected error for empty database path")
	}
}

func TestBackfillMigrationAssignsDefaults(t *testing.T) {
	dsn := testDSN()

	db, err := OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Simulate rows imported before the defaults existed.
	if err := db.Exec(
		"INSERT INTO blog_posts (id, title, content, excerpt, category, status, image_url, author_id, author_name, author_avatar_url, likes, liked_by_json, created_at_s, updated_at_s) VALUES (?, ?, ?, '', '', '', '', 'author-1', 'Author', '', 0, '[]', 0, 0)",
		"legacy-post", "Legacy", "Body",
	).Error; err != nil {
		t.Fatalf("failed to insert legacy row: %v", err)
	}
	if err := db.Exec("DELETE FROM db_migrations").Error; err != nil {
		t.Fatalf("failed to reset migration ledger: %v", err)
	}

	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("migration run failed: %v", err)
	}

	var post posts.Post
	if err := db.Where("id = ?", "legacy-post").First(&post).Error; err != nil {
		t.Fatalf("failed to load backfilled row: %v", err)
	}
	if post.Category != string(posts.CategoryJournal) {
		t.Fatalf("expected category backfilled to journal, got %q", post.Category)
	}
	if post.Status != string(posts.StatusPublished) {
		t.Fatalf("expected status backfilled to published, got %q", post.Status)
	}
}

func TestMigrationsRunOnce(t *testing.T) {
	dsn := testDSN()

	db, err := OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	var count int64
	if err := db.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recorded migration, got %d", count)
	}

	if err := applyMigrations(db, zap.NewNop()); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
	if err := db.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to recount migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("rerunning migrations must not add records, got %d", count)
	}
}
