package seed

import (
	"fmt"
	"time"

	"snapgram/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db           *gorm.DB
	faker        *gofakeit.Faker
	passwordHash string
	maxDays      int
	// synthetic ID counter when running in DryRun mode
	dryRun bool
	nextID uint
}

// NewFactory binds a factory to db. A zero seed draws a random one.
// Every user gets passwordHash so seeded accounts can log in.
func NewFactory(db *gorm.DB, seed int64, passwordHash string, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 90
	}
	return &Factory{
		db:           db,
		faker:        gofakeit.New(seed),
		passwordHash: passwordHash,
		maxDays:      maxDays,
		dryRun:       db == nil,
		nextID:       1000,
	}
}

// BuildUser returns an unsaved user with a unique handle.
func (f *Factory) BuildUser(n int, overrides ...func(*models.User)) *models.User {
	handle := fmt.Sprintf("%s_%d", f.faker.Username(), n)
	if len(handle) > 30 {
		handle = handle[len(handle)-30:]
	}
	user := &models.User{
		Username: handle,
		Email:    fmt.Sprintf("%s@example.com", handle),
		Password: f.passwordHash,
		Bio:      f.faker.Sentence(8),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID()),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser persists a generated user.
func (f *Factory) CreateUser(n int, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(n, overrides...)
	if f.dryRun {
		f.nextID++
		user.ID = f.nextID
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved image post by author with a created_at
// spread over the factory's window.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:    author.ID,
		Caption:   f.faker.Sentence(f.faker.Number(3, 12)),
		ImageURL:  fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()),
		CreatedAt: f.pastTime(),
	}
	post.UpdatedAt = post.CreatedAt
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post, batchSize int) error {
	if len(posts) == 0 {
		return nil
	}
	if f.dryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		return nil
	}
	return f.db.Omit("User", "Likes", "Comments").CreateInBatches(posts, batchSize).Error
}

// BuildComment returns an unsaved comment by user on post.
func (f *Factory) BuildComment(user *models.User, post *models.Post) *models.Comment {
	text := f.faker.Sentence(f.faker.Number(2, 14))
	if len(text) > 500 {
		text = text[:500]
	}
	return &models.Comment{
		PostID:    post.ID,
		UserID:    user.ID,
		Text:      text,
		CreatedAt: f.after(post.CreatedAt),
	}
}

// BuildLike returns an unsaved like by user on post.
func (f *Factory) BuildLike(user *models.User, post *models.Post) *models.PostLike {
	return &models.PostLike{PostID: post.ID, UserID: user.ID, CreatedAt: f.after(post.CreatedAt)}
}

// BuildFollow returns an unsaved follow edge.
func (f *Factory) BuildFollow(follower, followee *models.User) *models.Follow {
	return &models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}
}

// pick returns up to n distinct indexes in [0, size), skipping skip.
func (f *Factory) pick(size, n, skip int) []int {
	candidates := make([]int, 0, size)
	for i := 0; i < size; i++ {
		if i != skip {
			candidates = append(candidates, i)
		}
	}
	f.faker.ShuffleAnySlice(candidates)
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return time.Now().Add(-back).UTC()
}

// after returns a time between t and now.
func (f *Factory) after(t time.Time) time.Time {
	span := time.Since(t)
	if span <= time.Minute {
		return t
	}
	return t.Add(time.Duration(f.faker.Number(1, int(span/time.Minute))) * time.Minute)
}
