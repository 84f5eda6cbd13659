package forum

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/models"
)

// samplePosts returns the starter threads, oldest first, dated relative to now.
func samplePosts(now time.Time) []models.ForumPost {
	return []models.ForumPost{
		{
			ID:        "2",
			Author:    models.Author{Name: "Maria G.", Picture: models.AvatarURL("Maria")},
			Title:     "Natural pesticide recommendations for aphids",
			Content:   "My kale is getting overrun by aphids. Does anyone have effective organic or natural pesticide solutions that have worked for them? I'd prefer not to use harsh chemicals.",
			Timestamp: now.Add(-48 * time.Hour),
			Replies:   []models.ForumReply{},
		},
		{
			ID:        "1",
			Author:    models.Author{Name: "John Farmer", Picture: models.AvatarURL("John")},
			Title:     "Best time to plant tomatoes in a temperate climate?",
			Content:   "I was wondering if anyone has advice on the optimal time to plant tomato seedlings outdoors. I am in a zone 6 climate. Last year a late frost got me!",
			Timestamp: now.Add(-24 * time.Hour),
			Replies: []models.ForumReply{
				{
					ID:        "r1",
					Author:    models.Author{Name: "Agri-Expert Jane", Picture: models.AvatarURL("Jane")},
					Content:   "A good rule of thumb is to wait about two weeks after your last expected frost date. Keep an eye on the 10-day forecast!",
					Timestamp: now.Add(-12 * time.Hour),
				},
			},
		},
	}
}

// SeedSamplePosts loads the starter threads into an empty board.
// A board that already has posts is left alone.
func (s *Service) SeedSamplePosts(ctx context.Context) error {
	n, err := s.repo.CountPosts(ctx)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	if n > 0 {
		return nil
	}
	posts := samplePosts(s.now().UTC())
	for _, p := range posts {
		if err := s.repo.CreatePost(ctx, p); err != nil {
			return fmt.Errorf("seed post %s: %w", p.ID, err)
		}
	}
	s.logger.Info("forum seeded with sample posts", zap.Int("count", len(posts)))
	return nil
}
