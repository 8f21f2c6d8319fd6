package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCaption(t *testing.T) {
	t.Parallel()
	assert.Error(t, ValidateCaption(""))
	assert.NoError(t, ValidateCaption("sunset"))
	assert.NoError(t, ValidateCaption(strings.Repeat("c", CaptionMaxLength)))
	assert.Error(t, ValidateCaption(strings.Repeat("c", CaptionMaxLength+1)))
}

func TestValidateCommentText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"Empty", "", true},
		{"Single Char", "x", false},
		{"Exactly 500", strings.Repeat("a", 500), false},
		{"501", strings.Repeat("a", 501), true},
		{"500 Multibyte Runes", strings.Repeat("é", 500), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommentText(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBioAndAvatar(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateBio(""))
	assert.Error(t, ValidateBio(strings.Repeat("b", BioMaxLength+1)))

	assert.NoError(t, ValidateAvatarURL("https://cdn.example.com/a.png"))
	assert.Error(t, ValidateAvatarURL("/relative.png"))
	assert.Error(t, ValidateAvatarURL("ftp://example.com/a.png"))
}
