// Package seed populates the database with demo users, posts and
// interactions for development and load testing.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"snapgram/internal/auth"
	"snapgram/internal/middleware"
	"snapgram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	// Seed fixes the fake data generator; zero picks a random seed.
	Seed      int64
	BatchSize int
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Follows  int
	Likes    int
	Comments int
}

// Seeder writes a Preset's worth of data.
type Seeder struct {
	db   *gorm.DB
	opts Options
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	return &Seeder{db: db, opts: opts}
}

// Run creates users, their posts, follow edges, likes and comments.
func (s *Seeder) Run(ctx context.Context, p Preset) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	db := s.db.WithContext(ctx)
	f := NewFactory(db, s.opts.Seed, hash, p.MaxDays)
	sum := &Summary{}

	users := make([]*models.User, 0, p.Users)
	for i := 0; i < p.Users; i++ {
		u, err := f.CreateUser(i + 1)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)
	middleware.Logger.Info("seeded users", slog.Int("count", sum.Users))

	posts := make([]*models.Post, 0, p.Users*p.PostsPerUser)
	for _, u := range users {
		for j := 0; j < p.PostsPerUser; j++ {
			posts = append(posts, f.BuildPost(u))
		}
	}
	if err := f.CreatePostsBatch(posts, s.opts.BatchSize); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)
	middleware.Logger.Info("seeded posts", slog.Int("count", sum.Posts))

	var follows []*models.Follow
	for i, u := range users {
		for _, j := range f.pick(len(users), p.FollowsPerUser, i) {
			follows = append(follows, f.BuildFollow(u, users[j]))
		}
	}
	if sum.Follows, err = insert(db, follows, s.opts.BatchSize); err != nil {
		return nil, fmt.Errorf("create follows: %w", err)
	}

	var likes []*models.PostLike
	var comments []*models.Comment
	for _, post := range posts {
		for _, j := range f.pick(len(users), p.LikesPerPost, -1) {
			likes = append(likes, f.BuildLike(users[j], post))
		}
		for k := 0; k < p.CommentsPerPost; k++ {
			commenter := users[f.faker.Number(0, len(users)-1)]
			comments = append(comments, f.BuildComment(commenter, post))
		}
	}
	if sum.Likes, err = insert(db, likes, s.opts.BatchSize); err != nil {
		return nil, fmt.Errorf("create likes: %w", err)
	}
	if sum.Comments, err = insert(db, comments, s.opts.BatchSize); err != nil {
		return nil, fmt.Errorf("create comments: %w", err)
	}

	middleware.Logger.Info("seeding completed",
		slog.Int("follows", sum.Follows),
		slog.Int("likes", sum.Likes),
		slog.Int("comments", sum.Comments),
	)
	return sum, nil
}

// insert batch-creates rows, skipping duplicates of unique pairs, and
// reports how many rows were actually written.
func insert[T any](db *gorm.DB, rows []*T, batchSize int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ClearAll removes every seeded table's rows, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE comments, post_likes, posts, follows, users RESTART IDENTITY CASCADE`).Error
	}
	for _, table := range []string{"comments", "post_likes", "posts", "follows", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
