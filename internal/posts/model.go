package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category partitions posts across the site's sections.
type Category string

const (
	CategoryJournal Category = "journal"
	CategoryArchive Category = "archive"
	CategoryNotes   Category = "notes"
)

// Status controls whether a post is publicly visible.
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidPostID indicates that a post identifier is empty or exceeds storage bounds.
	ErrInvalidPostID = errors.New("posts: invalid post id")
	// ErrInvalidCategory indicates an unknown category value.
	ErrInvalidCategory = errors.New("posts: invalid category")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("posts: invalid status")
	// ErrEmptyTitle indicates a submission whose title is blank after trimming.
	ErrEmptyTitle = errors.New("posts: title must not be empty")
	// ErrEmptyContent indicates a submission whose content is blank after trimming.
	ErrEmptyContent = errors.New("posts: content must not be empty")
)

// PostID represents a validated post identifier.
type PostID string

// NewPostID validates raw input and returns a PostID.
func NewPostID(rawInput string) (PostID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPostID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidPostID, maxIdentifierLength)
	}
	return PostID(trimmed), nil
}

// String returns the underlying string identifier.
func (id PostID) String() string {
	return string(id)
}

// ParseCategory validates a raw category value. Empty input falls back to "journal".
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(CategoryJournal):
		return CategoryJournal, nil
	case string(CategoryArchive):
		return CategoryArchive, nil
	case string(CategoryNotes):
		return CategoryNotes, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

// ParseStatus validates a raw status value. Empty input falls back to "published".
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(StatusPublished):
		return StatusPublished, nil
	case string(StatusDraft):
		return StatusDraft, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Post models a persisted blog post record.
type Post struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	Title            string `gorm:"column:title;size:512;not null"`
	Content          string `gorm:"column:content;type:text;not null"`
	Excerpt          string `gorm:"column:excerpt;type:text"`
	Category         string `gorm:"column:category;size:32"`
	Status           string `gorm:"column:status;size:32"`
	ImageURL         string `gorm:"column:image_url;size:512"`
	AuthorID         string `gorm:"column:author_id;size:190;not null;index"`
	AuthorName       string `gorm:"column:author_name;size:320"`
	AuthorAvatarURL  string `gorm:"column:author_avatar_url;size:512"`
	Likes            int    `gorm:"column:likes;not null;default:0"`
	LikedByJSON      string `gorm:"column:liked_by_json;type:text;not null;default:'[]'"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "blog_posts"
}

// LikedBy decodes the liker identifier set. A corrupt or empty column reads as no likers.
func (p *Post) LikedBy() []string {
	if p.LikedByJSON == "" {
		return []string{}
	}
	var likers []string
	if err := json.Unmarshal([]byte(p.LikedByJSON), &likers); err != nil {
		return []string{}
	}
	if likers == nil {
		return []string{}
	}
	return likers
}

// SetLikedBy encodes the liker identifier set and syncs the like count.
func (p *Post) SetLikedBy(likers []string) {
	if likers == nil {
		likers = []string{}
	}
	encoded, err := json.Marshal(likers)
	if err != nil {
		encoded = []byte("[]")
		likers = []string{}
	}
	p.LikedByJSON = string(encoded)
	p.Likes = len(likers)
}

// applyReadDefaults fills the enumerated fields a record may have been stored without.
func (p *Post) applyReadDefaults() {
	if _, err := ParseCategory(p.Category); err != nil || p.Category == "" {
		p.Category = string(CategoryJournal)
	}
	if _, err := ParseStatus(p.Status); err != nil || p.Status == "" {
		p.Status = string(StatusPublished)
	}
}

// Draft carries the author-editable fields of a post submission.
type Draft struct {
	Title    string
	Content  string
	Excerpt  string
	Category Category
	Status   Status
	ImageURL string
}

// normalize trims the free-text fields and fills enum defaults.
func (d Draft) normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	d.Excerpt = strings.TrimSpace(d.Excerpt)
	if d.Category == "" {
		d.Category = CategoryJournal
	}
	if d.Status == "" {
		d.Status = StatusPublished
	}
	return d
}

func (d Draft) validate() error {
	if d.Title == "" {
		return ErrEmptyTitle
	}
	if d.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// Author identifies the session on whose behalf a mutation runs. Passing it
// explicitly keeps the service testable without a live session observer.
type Author struct {
	ID        string
	Name      string
	AvatarURL string
}
