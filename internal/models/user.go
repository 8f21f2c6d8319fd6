package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultAvatarURL is assigned to users who have not uploaded an avatar.
const DefaultAvatarURL = "https://randomuser.me/api/portraits/men/32.jpg"

// User represents an account in the Snapgram application.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"size:30;not null;uniqueIndex:idx_users_username" json:"username"`
	Email     string         `gorm:"size:254;not null;uniqueIndex:idx_users_email" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	Avatar    string         `gorm:"size:1024" json:"avatar"`
	Bio       string         `gorm:"size:500" json:"bio"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Followers and Following are loaded from the follows table, never persisted here.
	Followers []uint `gorm:"-" json:"followers"`
	Following []uint `gorm:"-" json:"following"`
}

// BeforeCreate fills in the placeholder avatar.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.Avatar == "" {
		u.Avatar = DefaultAvatarURL
	}
	return nil
}

// UserSummary is the denormalized author shape attached to posts and comments at read time.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Summary projects a user onto its public summary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
