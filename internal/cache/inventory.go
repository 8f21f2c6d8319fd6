package cache

import (
	"fmt"
	"time"
)

const (
	UserProfileKeyPrefix = "user:%d:profile"
	UserSummaryKeyPrefix = "user:%d:summary"
)

const (
	UserProfileTTL = 5 * time.Minute
	UserSummaryTTL = 5 * time.Minute
)

// UserProfileKey is the cache key for a user row without credentials.
func UserProfileKey(userID uint) string {
	return fmt.Sprintf(UserProfileKeyPrefix, userID)
}

// UserSummaryKey is the cache key for a user's handle and avatar.
func UserSummaryKey(userID uint) string {
	return fmt.Sprintf(UserSummaryKeyPrefix, userID)
}
