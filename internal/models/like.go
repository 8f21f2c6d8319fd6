package models

import "time"

// PostLike records one user's membership in a post's like set.
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_post_user,priority:1" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_post_user,priority:2;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
