package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrAuthorRequired indicates a mutation attempted without an authenticated session.
	ErrAuthorRequired = errors.New("posts: authenticated author required")
	// ErrPostNotFound indicates no record exists for the requested id.
	ErrPostNotFound = errors.New("posts: post not found")

	noOpLogger = zap.NewNop()
)

// ServiceError wraps a failure with a dotted operation code for log correlation.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "posts.service.new"
	opList       = "posts.list"
	opGet        = "posts.get"
	opCreate     = "posts.create"
	opUpdate     = "posts.update"
	opDelete     = "posts.delete"
	opToggleLike = "posts.toggle_like"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider generates identifiers for new posts.
type IDProvider interface {
	NewID() (string, error)
}

// BlobDeleter removes a stored blob by its recorded reference. Cleanup through
// it is best-effort: failures are logged, never surfaced.
type BlobDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// EventPublisher receives post lifecycle notifications.
type EventPublisher interface {
	PostCreated(post Post)
	PostUpdated(post Post)
	PostDeleted(post Post)
	PostLiked(post Post, userID string)
}

type noopPublisher struct{}

func (noopPublisher) PostCreated(Post)       {}
func (noopPublisher) PostUpdated(Post)       {}
func (noopPublisher) PostDeleted(Post)       {}
func (noopPublisher) PostLiked(Post, string) {}

// ListCache holds a serialized snapshot of the published-post listing.
type ListCache interface {
	Get(ctx context.Context) ([]byte, bool)
	Set(ctx context.Context, payload []byte)
	Invalidate(ctx context.Context)
}

// ServiceConfig describes the dependencies of the post store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Blobs      BlobDeleter
	Cache      ListCache
	Events     EventPublisher
	Logger     *zap.Logger
}

// Service reads and writes blog post records.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	blobs      BlobDeleter
	cache      ListCache
	events     EventPublisher
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService constructs the post store service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	events := cfg.Events
	if events == nil {
		events = noopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		blobs:      cfg.Blobs,
		cache:      cfg.Cache,
		events:     events,
		logger:     logger,
		tracer:     otel.Tracer("scripta/posts"),
	}, nil
}

// List returns every post, drafts included, newest first. Records stored
// without a category or status read back as "journal" and "published";
// records without a creation timestamp sort as oldest.
func (s *Service) List(ctx context.Context) ([]Post, error) {
	ctx, span := s.tracer.Start(ctx, opList)
	defer span.End()

	var records []Post
	err := s.db.WithContext(ctx).
		Order("created_at_s DESC").
		Find(&records).Error
	if err != nil {
		return nil, newServiceError(opList, "query_failed", err)
	}

	for i := range records {
		records[i].applyReadDefaults()
	}
	span.SetAttributes(attribute.Int("posts.count", len(records)))
	return records, nil
}

// ListPublished returns published posts, newest first, serving from the list
// cache when one is configured and warm.
func (s *Service) ListPublished(ctx context.Context) ([]Post, error) {
	if s.cache != nil {
		if payload, ok := s.cache.Get(ctx); ok {
			var cached []Post
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		}
	}

	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	published := make([]Post, 0, len(records))
	for _, record := range records {
		if record.Status == string(StatusPublished) {
			published = append(published, record)
		}
	}

	if s.cache != nil {
		if payload, err := json.Marshal(published); err == nil {
			s.cache.Set(ctx, payload)
		}
	}
	return published, nil
}

// Get returns a single post by id with read defaults applied.
func (s *Service) Get(ctx context.Context, id PostID) (Post, error) {
	ctx, span := s.tracer.Start(ctx, opGet)
	defer span.End()

	var record Post
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, newServiceError(opGet, "query_failed", err)
	}
	record.applyReadDefaults()
	return record, nil
}

// Create validates the draft and appends a new record with server-assigned
// id and timestamps. It returns the stored record so callers never need a
// client-side timestamp approximation.
func (s *Service) Create(ctx context.Context, author Author, draft Draft) (Post, error) {
	ctx, span := s.tracer.Start(ctx, opCreate)
	defer span.End()

	if author.ID == "" {
		return Post{}, ErrAuthorRequired
	}
	draft = draft.normalize()
	if err := draft.validate(); err != nil {
		return Post{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Post{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	record := Post{
		ID:               id,
		Title:            draft.Title,
		Content:          draft.Content,
		Excerpt:          draft.Excerpt,
		Category:         string(draft.Category),
		Status:           string(draft.Status),
		ImageURL:         draft.ImageURL,
		AuthorID:         author.ID,
		AuthorName:       author.Name,
		AuthorAvatarURL:  author.AvatarURL,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	record.SetLikedBy(nil)

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Post{}, newServiceError(opCreate, "write_failed", err)
	}

	span.SetAttributes(attribute.String("post.id", record.ID))
	s.invalidateCache(ctx)
	s.events.PostCreated(record)
	return record, nil
}

// Update overwrites the author-editable fields of an existing record and
// stamps the update time. A replaced image blob is deleted best-effort.
func (s *Service) Update(ctx context.Context, author Author, id PostID, draft Draft) (Post, error) {
	ctx, span := s.tracer.Start(ctx, opUpdate)
	defer span.End()

	if author.ID == "" {
		return Post{}, ErrAuthorRequired
	}
	draft = draft.normalize()
	if err := draft.validate(); err != nil {
		return Post{}, err
	}

	var record Post
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, newServiceError(opUpdate, "query_failed", err)
	}

	previousImageURL := record.ImageURL

	record.Title = draft.Title
	record.Content = draft.Content
	record.Excerpt = draft.Excerpt
	record.Category = string(draft.Category)
	record.Status = string(draft.Status)
	record.ImageURL = draft.ImageURL
	record.UpdatedAtSeconds = s.clock().UTC().Unix()

	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return Post{}, newServiceError(opUpdate, "write_failed", err)
	}

	// Old blob cleanup runs after the record write so a failed write never
	// strands the post pointing at a deleted image.
	if previousImageURL != "" && previousImageURL != record.ImageURL {
		s.deleteBlob(ctx, previousImageURL)
	}

	span.SetAttributes(attribute.String("post.id", record.ID))
	s.invalidateCache(ctx)
	s.events.PostUpdated(record)
	return record, nil
}

// Delete removes the record and attempts exactly one best-effort delete of
// its image blob when one was recorded.
func (s *Service) Delete(ctx context.Context, author Author, id PostID) error {
	ctx, span := s.tracer.Start(ctx, opDelete)
	defer span.End()

	if author.ID == "" {
		return ErrAuthorRequired
	}

	var record Post
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPostNotFound
	}
	if err != nil {
		return newServiceError(opDelete, "query_failed", err)
	}

	if err := s.db.WithContext(ctx).Delete(&Post{}, "id = ?", record.ID).Error; err != nil {
		return newServiceError(opDelete, "write_failed", err)
	}

	if record.ImageURL != "" {
		s.deleteBlob(ctx, record.ImageURL)
	}

	s.invalidateCache(ctx)
	s.events.PostDeleted(record)
	return nil
}

// ToggleLike adds or removes the caller from the post's liker set.
func (s *Service) ToggleLike(ctx context.Context, userID string, id PostID) (Post, error) {
	ctx, span := s.tracer.Start(ctx, opToggleLike)
	defer span.End()

	if userID == "" {
		return Post{}, ErrAuthorRequired
	}

	var record Post
	err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, newServiceError(opToggleLike, "query_failed", err)
	}

	likers := record.LikedBy()
	found := false
	next := make([]string, 0, len(likers)+1)
	for _, liker := range likers {
		if liker == userID {
			found = true
			continue
		}
		next = append(next, liker)
	}
	if !found {
		next = append(next, userID)
	}
	record.SetLikedBy(next)
	record.UpdatedAtSeconds = s.clock().UTC().Unix()

	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return Post{}, newServiceError(opToggleLike, "write_failed", err)
	}

	record.applyReadDefaults()
	s.invalidateCache(ctx)
	s.events.PostLiked(record, userID)
	return record, nil
}

func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn("image blob cleanup failed", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
