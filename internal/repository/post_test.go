package repository

import (
	"context"
	"sync"
	"testing"

	"snapgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_CreateRequiresAuthor(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)

	err := repo.Create(context.Background(), &models.Post{UserID: 404, Caption: "x", ImageURL: "/uploads/x.png"})
	assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)
}

func TestPostRepository_GetByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	p := createPost(t, repo, alice.ID, "sunset")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "sunset", got.Caption)
	assert.Equal(t, alice.ID, got.UserID)
	assert.Empty(t, got.Likes)
	assert.Empty(t, got.Comments)

	_, err = repo.GetByID(ctx, p.ID+100)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListByAuthorsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	a := createUser(t, db, "a")
	b := createUser(t, db, "b")
	c := createUser(t, db, "c")

	pa := createPost(t, repo, a.ID, "a1")
	pc := createPost(t, repo, c.ID, "c1")
	pb := createPost(t, repo, b.ID, "b1")

	posts, err := repo.ListByAuthors(ctx, []uint{a.ID, b.ID, a.ID}, Page{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, pb.ID, posts[0].ID)
	assert.Equal(t, pa.ID, posts[1].ID)
	for _, p := range posts {
		assert.NotEqual(t, pc.ID, p.ID)
	}

	posts, err = repo.ListByAuthors(ctx, nil, Page{})
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestPostRepository_ListByAuthorPaging(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	a := createUser(t, db, "a")
	var ids []uint
	for _, caption := range []string{"p1", "p2", "p3", "p4", "p5"} {
		ids = append(ids, createPost(t, repo, a.ID, caption).ID)
	}

	page, err := repo.ListByAuthor(ctx, a.ID, Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	all, err := repo.ListByAuthor(ctx, a.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := repo.ListByAuthor(ctx, a.ID+50, Page{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_ToggleLike(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author")
	fan := createUser(t, db, "fan")
	p := createPost(t, repo, author.ID, "cat")

	got, liked, err := repo.ToggleLike(ctx, p.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []uint{fan.ID}, got.LikerIDs())

	got, liked, err = repo.ToggleLike(ctx, p.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Empty(t, got.LikerIDs())

	_, _, err = repo.ToggleLike(ctx, p.ID+1, fan.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ToggleLikeConcurrent(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author")
	p := createPost(t, repo, author.ID, "dog")

	const likers = 8
	users := make([]*models.User, likers)
	for i := range users {
		users[i] = createUser(t, db, "fan"+string(rune('a'+i)))
	}

	// Each fan likes once; the author toggles an even number of times.
	var wg sync.WaitGroup
	errs := make(chan error, likers+4)
	for _, u := range users {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, _, err := repo.ToggleLike(ctx, p.ID, id)
			errs <- err
		}(u.ID)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.ToggleLike(ctx, p.ID, author.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Likes, likers)
	assert.False(t, got.HasLike(author.ID))

	var rows int64
	require.NoError(t, db.Model(&models.PostLike{}).Where("post_id = ?", p.ID).Count(&rows).Error)
	assert.Equal(t, int64(likers), rows)
}

func TestPostRepository_AddCommentKeepsOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "author")
	other := createUser(t, db, "other")
	p := createPost(t, repo, author.ID, "tree")

	_, err := repo.AddComment(ctx, &models.Comment{PostID: p.ID, UserID: other.ID, Text: "first"})
	require.NoError(t, err)
	got, err := repo.AddComment(ctx, &models.Comment{PostID: p.ID, UserID: author.ID, Text: "second"})
	require.NoError(t, err)

	require.Len(t, got.Comments, 2)
	assert.Equal(t, "first", got.Comments[0].Text)
	assert.Equal(t, other.ID, got.Comments[0].UserID)
	assert.Equal(t, "second", got.Comments[1].Text)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	_, err = repo.AddComment(ctx, &models.Comment{PostID: p.ID + 9, UserID: other.ID, Text: "lost"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_DeleteIfOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner")
	stranger := createUser(t, db, "stranger")
	p := createPost(t, repo, owner.ID, "mine")

	_, _, err := repo.ToggleLike(ctx, p.ID, stranger.ID)
	require.NoError(t, err)
	_, err = repo.AddComment(ctx, &models.Comment{PostID: p.ID, UserID: stranger.ID, Text: "nice"})
	require.NoError(t, err)

	_, err = repo.DeleteIfOwner(ctx, p.ID, stranger.ID)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.Contains(t, err.Error(), "not found or unauthorized")

	_, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)

	deleted, err := repo.DeleteIfOwner(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ImageURL, deleted.ImageURL)

	_, err = repo.GetByID(ctx, p.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	var likes, comments int64
	db.Model(&models.PostLike{}).Where("post_id = ?", p.ID).Count(&likes)
	db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments)
	assert.Zero(t, likes)
	assert.Zero(t, comments)

	_, err = repo.DeleteIfOwner(ctx, p.ID, owner.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
