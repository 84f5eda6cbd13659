package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kjstillabower/plants-doctor/internal/models"
)

// Seq columns record insertion order; IDs are the public UUIDs.

type eventRecord struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex;size:36"`
	Owner       string `gorm:"index:idx_events_owner_date"`
	Date        string `gorm:"index:idx_events_owner_date;size:10"`
	Title       string
	Description string
	CreatedAt   time.Time
}

func (eventRecord) TableName() string { return "calendar_events" }

type postRecord struct {
	Seq           uint   `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"uniqueIndex;size:36"`
	AuthorName    string
	AuthorPicture string
	Title         string
	Content       string
	Timestamp     time.Time
}

func (postRecord) TableName() string { return "forum_posts" }

type replyRecord struct {
	Seq           uint   `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"uniqueIndex;size:36"`
	PostID        string `gorm:"index;size:36"`
	AuthorName    string
	AuthorPicture string
	Content       string
	Timestamp     time.Time
}

func (replyRecord) TableName() string { return "forum_replies" }

// OpenSQLite opens (or creates) the database at path and migrates the schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&eventRecord{}, &postRecord{}, &replyRecord{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}

// GormEventRepository implements EventRepository on gorm.
type GormEventRepository struct{ db *gorm.DB }

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) AddEvent(ctx context.Context, owner string, e models.CalendarEvent) error {
	rec := eventRecord{ID: e.ID, Owner: owner, Date: e.Date, Title: e.Title, Description: e.Description}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *GormEventRepository) EventsOn(ctx context.Context, owner, date string) ([]models.CalendarEvent, error) {
	var recs []eventRecord
	err := r.db.WithContext(ctx).
		Where("owner = ? AND date = ?", owner, date).
		Order("seq asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toEvents(recs), nil
}

func (r *GormEventRepository) AllEvents(ctx context.Context, owner string) ([]models.CalendarEvent, error) {
	var recs []eventRecord
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("date asc, seq asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toEvents(recs), nil
}

func toEvents(recs []eventRecord) []models.CalendarEvent {
	out := make([]models.CalendarEvent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.CalendarEvent{ID: rec.ID, Date: rec.Date, Title: rec.Title, Description: rec.Description})
	}
	return out
}

// GormPostRepository implements PostRepository on gorm.
type GormPostRepository struct{ db *gorm.DB }

func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) CreatePost(ctx context.Context, p models.ForumPost) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := postRecord{
			ID:            p.ID,
			AuthorName:    p.Author.Name,
			AuthorPicture: p.Author.Picture,
			Title:         p.Title,
			Content:       p.Content,
			Timestamp:     p.Timestamp,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		for _, reply := range p.Replies {
			if err := tx.Create(toReplyRecord(p.ID, reply)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormPostRepository) AddReply(ctx context.Context, postID string, reply models.ForumReply) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post postRecord
		if err := tx.Where("id = ?", postID).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("post %s: %w", postID, ErrNotFound)
			}
			return err
		}
		return tx.Create(toReplyRecord(postID, reply)).Error
	})
}

func (r *GormPostRepository) ListPosts(ctx context.Context) ([]models.ForumPost, error) {
	db := r.db.WithContext(ctx)
	var posts []postRecord
	if err := db.Order("seq desc").Find(&posts).Error; err != nil {
		return nil, err
	}
	var replies []replyRecord
	if err := db.Order("seq asc").Find(&replies).Error; err != nil {
		return nil, err
	}
	byPost := make(map[string][]models.ForumReply)
	for _, rec := range replies {
		byPost[rec.PostID] = append(byPost[rec.PostID], fromReplyRecord(rec))
	}
	out := make([]models.ForumPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, fromPostRecord(p, byPost[p.ID]))
	}
	return out, nil
}

func (r *GormPostRepository) GetPost(ctx context.Context, id string) (models.ForumPost, error) {
	db := r.db.WithContext(ctx)
	var post postRecord
	if err := db.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ForumPost{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
		}
		return models.ForumPost{}, err
	}
	var recs []replyRecord
	if err := db.Where("post_id = ?", id).Order("seq asc").Find(&recs).Error; err != nil {
		return models.ForumPost{}, err
	}
	replies := make([]models.ForumReply, 0, len(recs))
	for _, rec := range recs {
		replies = append(replies, fromReplyRecord(rec))
	}
	return fromPostRecord(post, replies), nil
}

func (r *GormPostRepository) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&postRecord{}).Count(&n).Error
	return n, err
}

func toReplyRecord(postID string, reply models.ForumReply) *replyRecord {
	return &replyRecord{
		ID:            reply.ID,
		PostID:        postID,
		AuthorName:    reply.Author.Name,
		AuthorPicture: reply.Author.Picture,
		Content:       reply.Content,
		Timestamp:     reply.Timestamp,
	}
}

func fromReplyRecord(rec replyRecord) models.ForumReply {
	return models.ForumReply{
		ID:        rec.ID,
		Author:    models.Author{Name: rec.AuthorName, Picture: rec.AuthorPicture},
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
	}
}

func fromPostRecord(p postRecord, replies []models.ForumReply) models.ForumPost {
	if replies == nil {
		replies = []models.ForumReply{}
	}
	return models.ForumPost{
		ID:        p.ID,
		Author:    models.Author{Name: p.AuthorName, Picture: p.AuthorPicture},
		Title:     p.Title,
		Content:   p.Content,
		Timestamp: p.Timestamp,
		Replies:   replies,
	}
}
