// Package repository stores scheduler events and forum posts. The in-memory
// implementations are the default; the gorm implementations persist to SQLite.
package repository

import (
	"context"
	"errors"

	"github.com/kjstillabower/plants-doctor/internal/models"
)

// ErrNotFound is returned when a post does not exist.
var ErrNotFound = errors.New("not found")

// EventRepository holds calendar events per owner, bucketed by date.
type EventRepository interface {
	// AddEvent appends e to its owner's date bucket.
	AddEvent(ctx context.Context, owner string, e models.CalendarEvent) error
	// EventsOn returns owner's events on date in insertion order.
	EventsOn(ctx context.Context, owner, date string) ([]models.CalendarEvent, error)
	// AllEvents returns owner's events ordered by date, then insertion.
	AllEvents(ctx context.Context, owner string) ([]models.CalendarEvent, error)
}

// PostRepository holds forum posts with their replies.
type PostRepository interface {
	// CreatePost stores p ahead of every existing post.
	CreatePost(ctx context.Context, p models.ForumPost) error
	// AddReply appends r to post postID. Unknown posts return ErrNotFound.
	AddReply(ctx context.Context, postID string, r models.ForumReply) error
	// ListPosts returns posts newest first, replies in arrival order.
	ListPosts(ctx context.Context) ([]models.ForumPost, error)
	GetPost(ctx context.Context, id string) (models.ForumPost, error)
	CountPosts(ctx context.Context) (int64, error)
}
