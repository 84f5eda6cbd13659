// Package forum implements the community board: posts with flat reply threads.
package forum

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/repository"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

const (
	MsgPostFieldsRequired = "Please provide both a title and content for your post."
	MsgReplyRequired      = "Please write a reply first."
)

// Service creates and reads forum posts. All user text is reduced to plain text
// before it is stored.
type Service struct {
	repo   repository.PostRepository
	policy *bluemonday.Policy
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo repository.PostRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		policy: bluemonday.StrictPolicy(),
		logger: logger,
		now:    time.Now,
	}
}

// plain strips all markup. StrictPolicy escapes entities, which are undone so
// the stored value is the text the user typed.
func (s *Service) plain(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

// CreatePost stores a new post ahead of all existing posts.
func (s *Service) CreatePost(ctx context.Context, author models.User, title, content string) (models.ForumPost, error) {
	title, content = s.plain(title), s.plain(content)
	if title == "" || content == "" {
		return models.ForumPost{}, fmt.Errorf("%w: %s", validation.ErrInvalidRequest, MsgPostFieldsRequired)
	}
	p := models.ForumPost{
		ID:        uuid.New().String(),
		Author:    models.AuthorFrom(author),
		Title:     title,
		Content:   content,
		Timestamp: s.now().UTC(),
		Replies:   []models.ForumReply{},
	}
	if err := s.repo.CreatePost(ctx, p); err != nil {
		return models.ForumPost{}, fmt.Errorf("create post: %w", err)
	}
	observability.ForumPostsTotal.Inc()
	s.logger.Info("forum post created", zap.String("post_id", p.ID))
	return p, nil
}

// AddReply appends a reply to postID. Other posts are untouched.
func (s *Service) AddReply(ctx context.Context, author models.User, postID, content string) (models.ForumReply, error) {
	content = s.plain(content)
	if content == "" {
		return models.ForumReply{}, fmt.Errorf("%w: %s", validation.ErrInvalidRequest, MsgReplyRequired)
	}
	r := models.ForumReply{
		ID:        uuid.New().String(),
		Author:    models.AuthorFrom(author),
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	if err := s.repo.AddReply(ctx, postID, r); err != nil {
		return models.ForumReply{}, fmt.Errorf("add reply: %w", err)
	}
	observability.ForumRepliesTotal.Inc()
	s.logger.Debug("forum reply added", zap.String("post_id", postID), zap.String("reply_id", r.ID))
	return r, nil
}

// List returns every post, newest first.
func (s *Service) List(ctx context.Context) ([]models.ForumPost, error) {
	posts, err := s.repo.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Get returns one post with its replies. Unknown IDs wrap repository.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.ForumPost, error) {
	p, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return models.ForumPost{}, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}
