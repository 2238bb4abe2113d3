package posts

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type blobRecorder struct {
	refs []string
	err  error
}

func (r *blobRecorder) Delete(_ context.Context, ref string) error {
	r.refs = append(r.refs, ref)
	return r.err
}

type eventRecorder struct {
	created []Post
	updated []Post
	deleted []Post
	liked   []Post
}

func (r *eventRecorder) PostCreated(post Post) { r.created = append(r.created, post) }
func (r *eventRecorder) PostUpdated(post Post) { r.updated = append(r.updated, post) }
func (r *eventRecorder) PostDeleted(post Post) { r.deleted = append(r.deleted, post) }
func (r *eventRecorder) PostLiked(post Post, _ string) {
	r.liked = append(r.liked, post)
}

type sequentialIDs struct {
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("post-%d", p.next), nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:scripta_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Post{}); err != nil {
		t.Fatalf("failed to migrate post schema: %v", err)
	}
	return db
}

type serviceFixture struct {
	service *Service
	db      *gorm.DB
	blobs   *blobRecorder
	events  *eventRecorder
	clock   *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := openTestDatabase(t)
	blobs := &blobRecorder{}
	events := &eventRecorder{}
	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequentialIDs{},
		Blobs:      blobs,
		Events:     events,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return &serviceFixture{service: service, db: db, blobs: blobs, events: events, clock: clock}
}

func mustPostID(t *testing.T, value string) PostID {
	t.Helper()
	id, err := NewPostID(value)
	if err != nil {
		t.Fatalf("unexpected post id error: %v", err)
	}
	return id
}

func testAuthor() Author {
	return Author{ID: "author-1", Name: "The Writer", AvatarURL: "https://example.com/avatar.png"}
}
