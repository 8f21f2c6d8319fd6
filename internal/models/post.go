// Package models contains data structures for the application's domain models.
package models

import "time"

// Post represents an image post in the Snapgram application.
type Post struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index:idx_posts_user_created,priority:1" json:"user_id"`
	User         *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Caption      string     `gorm:"type:text;not null" json:"caption"`
	ImageURL     string     `gorm:"size:2048;not null" json:"image"`
	ThumbnailURL string     `gorm:"size:2048" json:"thumbnail,omitempty"`
	Likes        []PostLike `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Comments     []Comment  `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time  `gorm:"index:idx_posts_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LikerIDs returns the ids of users who liked the post, in like order.
func (p *Post) LikerIDs() []uint {
	ids := make([]uint, 0, len(p.Likes))
	for _, l := range p.Likes {
		ids = append(ids, l.UserID)
	}
	return ids
}

// HasLike reports whether userID is in the post's like set.
func (p *Post) HasLike(userID uint) bool {
	for _, l := range p.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}
