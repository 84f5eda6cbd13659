package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kjstillabower/plants-doctor/internal/models"
)

// MemoryEventRepository implements EventRepository in process memory.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]map[string][]models.CalendarEvent
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[string]map[string][]models.CalendarEvent)}
}

func (r *MemoryEventRepository) AddEvent(ctx context.Context, owner string, e models.CalendarEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDate, ok := r.events[owner]
	if !ok {
		byDate = make(map[string][]models.CalendarEvent)
		r.events[owner] = byDate
	}
	byDate[e.Date] = append(byDate[e.Date], e)
	return nil
}

func (r *MemoryEventRepository) EventsOn(ctx context.Context, owner, date string) ([]models.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.CalendarEvent{}, r.events[owner][date]...), nil
}

func (r *MemoryEventRepository) AllEvents(ctx context.Context, owner string) ([]models.CalendarEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDate := r.events[owner]
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := []models.CalendarEvent{}
	for _, d := range dates {
		out = append(out, byDate[d]...)
	}
	return out, nil
}

// MemoryPostRepository implements PostRepository in process memory.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts []models.ForumPost
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{}
}

func (r *MemoryPostRepository) CreatePost(ctx context.Context, p models.ForumPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Replies = append([]models.ForumReply{}, p.Replies...)
	r.posts = append([]models.ForumPost{p}, r.posts...)
	return nil
}

func (r *MemoryPostRepository) AddReply(ctx context.Context, postID string, reply models.ForumReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.posts {
		if r.posts[i].ID == postID {
			r.posts[i].Replies = append(r.posts[i].Replies, reply)
			return nil
		}
	}
	return fmt.Errorf("post %s: %w", postID, ErrNotFound)
}

func (r *MemoryPostRepository) ListPosts(ctx context.Context) ([]models.ForumPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ForumPost, len(r.posts))
	for i, p := range r.posts {
		out[i] = clonePost(p)
	}
	return out, nil
}

func (r *MemoryPostRepository) GetPost(ctx context.Context, id string) (models.ForumPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.posts {
		if p.ID == id {
			return clonePost(p), nil
		}
	}
	return models.ForumPost{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
}

func (r *MemoryPostRepository) CountPosts(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.posts)), nil
}

func clonePost(p models.ForumPost) models.ForumPost {
	p.Replies = append([]models.ForumReply{}, p.Replies...)
	return p
}
