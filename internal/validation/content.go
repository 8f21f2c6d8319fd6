package validation

import (
	"fmt"
	"net/url"
	"unicode/utf8"
)

// Length bounds for user-authored content, counted in characters.
const (
	CaptionMaxLength = 2200
	CommentMaxLength = 500
	BioMaxLength     = 500
	avatarMaxLength  = 1024
)

// ValidateCaption expects an already trimmed caption.
func ValidateCaption(caption string) error {
	if caption == "" {
		return fmt.Errorf("caption is required")
	}
	if utf8.RuneCountInString(caption) > CaptionMaxLength {
		return fmt.Errorf("caption must not exceed %d characters", CaptionMaxLength)
	}
	return nil
}

// ValidateCommentText expects already trimmed text.
func ValidateCommentText(text string) error {
	if text == "" {
		return fmt.Errorf("comment text is required")
	}
	if utf8.RuneCountInString(text) > CommentMaxLength {
		return fmt.Errorf("comment must not exceed %d characters", CommentMaxLength)
	}
	return nil
}

// ValidateBio allows an empty bio.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > BioMaxLength {
		return fmt.Errorf("bio must not exceed %d characters", BioMaxLength)
	}
	return nil
}

// ValidateAvatarURL requires an absolute http(s) URL.
func ValidateAvatarURL(raw string) error {
	if len(raw) > avatarMaxLength {
		return fmt.Errorf("avatar URL must not exceed %d characters", avatarMaxLength)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("avatar must be an absolute http(s) URL")
	}
	return nil
}
