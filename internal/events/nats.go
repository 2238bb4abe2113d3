package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vigintitres/scripta/backend/internal/posts"
	"go.uber.org/zap"
)

const (
	subjectPostCreated = "post.created"
	subjectPostUpdated = "post.updated"
	subjectPostDeleted = "post.deleted"
	subjectPostLiked   = "post.liked"
)

// PostEvent is the payload published for post lifecycle changes.
type PostEvent struct {
	PostID     string `json:"post_id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Status     string `json:"status"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	ImageURL   string `json:"image_url,omitempty"`
	Likes      int    `json:"likes"`
	LikedBy    string `json:"liked_by,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// NATSPublisher emits post lifecycle events to NATS subjects. Publishing is
// best-effort: failures are logged and dropped.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher connects to the NATS server at the given URL.
func NewNATSPublisher(url string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// PostCreated publishes a post.created event.
func (p *NATSPublisher) PostCreated(post posts.Post) {
	p.publish(subjectPostCreated, eventFromPost(post, ""))
}

// PostUpdated publishes a post.updated event.
func (p *NATSPublisher) PostUpdated(post posts.Post) {
	p.publish(subjectPostUpdated, eventFromPost(post, ""))
}

// PostDeleted publishes a post.deleted event.
func (p *NATSPublisher) PostDeleted(post posts.Post) {
	p.publish(subjectPostDeleted, eventFromPost(post, ""))
}

// PostLiked publishes a post.liked event carrying the toggling user.
func (p *NATSPublisher) PostLiked(post posts.Post, userID string) {
	p.publish(subjectPostLiked, eventFromPost(post, userID))
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	p.conn.Close()
}

func (p *NATSPublisher) publish(subject string, event PostEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("post event encoding failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("post event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func eventFromPost(post posts.Post, likedBy string) PostEvent {
	return PostEvent{
		PostID:     post.ID,
		Title:      post.Title,
		Category:   post.Category,
		Status:     post.Status,
		AuthorID:   post.AuthorID,
		AuthorName: post.AuthorName,
		ImageURL:   post.ImageURL,
		Likes:      post.Likes,
		LikedBy:    likedBy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}
