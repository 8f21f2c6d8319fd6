package server

import (
	"context"
	"time"

	"snapgram/internal/models"
)

// deletedUsername stands in for authors whose account no longer resolves.
const deletedUsername = "[deleted]"

// PostResponse is a post with its author and commenters joined in.
type PostResponse struct {
	ID        uint               `json:"id"`
	User      models.UserSummary `json:"user"`
	Caption   string             `json:"caption"`
	Image     string             `json:"image"`
	Thumbnail string             `json:"thumbnail,omitempty"`
	Likes     []uint             `json:"likes"`
	Comments  []CommentResponse  `json:"comments"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type CommentResponse struct {
	ID        uint               `json:"id"`
	User      models.UserSummary `json:"user"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"created_at"`
}

// presentPosts resolves every author and commenter in one summary lookup.
func (s *Server) presentPosts(ctx context.Context, posts []*models.Post) ([]PostResponse, error) {
	var ids []uint
	for _, p := range posts {
		ids = append(ids, p.UserID)
		for _, cm := range p.Comments {
			ids = append(ids, cm.UserID)
		}
	}

	summaries, err := s.userRepo.GetSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, presentPost(p, summaries))
	}
	return out, nil
}

func (s *Server) presentPost(ctx context.Context, post *models.Post) (*PostResponse, error) {
	out, err := s.presentPosts(ctx, []*models.Post{post})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func presentPost(p *models.Post, summaries map[uint]models.UserSummary) PostResponse {
	comments := make([]CommentResponse, 0, len(p.Comments))
	for _, cm := range p.Comments {
		comments = append(comments, CommentResponse{
			ID:        cm.ID,
			User:      summaryOf(summaries, cm.UserID),
			Text:      cm.Text,
			CreatedAt: cm.CreatedAt,
		})
	}
	return PostResponse{
		ID:        p.ID,
		User:      summaryOf(summaries, p.UserID),
		Caption:   p.Caption,
		Image:     p.ImageURL,
		Thumbnail: p.ThumbnailURL,
		Likes:     p.LikerIDs(),
		Comments:  comments,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func summaryOf(summaries map[uint]models.UserSummary, id uint) models.UserSummary {
	if sum, ok := summaries[id]; ok {
		return sum
	}
	return models.UserSummary{ID: id, Username: deletedUsername, Avatar: models.DefaultAvatarURL}
}
