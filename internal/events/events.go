// Package events publishes post activity to Redis pub/sub or Kafka.
// Delivery is best-effort: a failed publish never fails the request that caused it.
package events

import (
	"context"
	"log/slog"
	"time"

	"snapgram/internal/middleware"
	"snapgram/internal/observability"
)

// Type names a domain event.
type Type string

const (
	PostCreated   Type = "post.created"
	PostLiked     Type = "post.liked"
	PostUnliked   Type = "post.unliked"
	PostCommented Type = "post.commented"
	PostDeleted   Type = "post.deleted"
	UserFollowed  Type = "user.followed"
)

// Event is one domain occurrence. RecipientID is the user the event concerns,
// such as the author of a liked post, and is zero when there is none.
type Event struct {
	Type        Type      `json:"type"`
	ActorID     uint      `json:"actor_id"`
	RecipientID uint      `json:"recipient_id,omitempty"`
	PostID      uint      `json:"post_id,omitempty"`
	CommentID   uint      `json:"comment_id,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher delivers events to a backend.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Emit stamps ev, hands it to p and logs failures instead of returning them.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "event publish failed",
			slog.String("event", string(ev.Type)),
			slog.Uint64("post_id", uint64(ev.PostID)),
			slog.String("error", err.Error()),
		)
	}
}

func record(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.EventsPublished.WithLabelValues(backend, result).Inc()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
