package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "secret1", false},
		{"Exactly Min Length", "abcdef", false},
		{"Exactly Max Bytes", strings.Repeat("a", 72), false},
		{"Empty", "", true},
		{"Too Short", "abc", true},
		{"Too Long", strings.Repeat("a", 73), true},
		{"Unicode Counted As Runes", "ÅÅÅÅÅÅ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"Valid", "test_user123", false},
		{"Dots Allowed", "jane.doe", false},
		{"Min Length", "abc", false},
		{"Too Short", "tu", true},
		{"Too Long", strings.Repeat("u", 31), true},
		{"Illegal Chars", "user@123", true},
		{"Spaces", "user name", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("user@"))
	assert.Error(t, ValidateEmail("user.example.com"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@example.com"))
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestValidateRegistration_ReportsFirstViolation(t *testing.T) {
	t.Parallel()

	err := ValidateRegistration(Registration{Username: "ab", Email: "bad", Password: "x"})
	assert.EqualError(t, err, "username must be at least 3 characters long")

	err = ValidateRegistration(Registration{Username: "alice", Email: "bad", Password: "x"})
	assert.EqualError(t, err, "invalid email format")

	err = ValidateRegistration(Registration{Username: "alice", Email: "a@b.io", Password: "x"})
	assert.EqualError(t, err, "password must be at least 6 characters long")

	assert.NoError(t, ValidateRegistration(Registration{Username: "alice", Email: "a@b.io", Password: "hunter22"}))
}

func TestValidateLogin(t *testing.T) {
	t.Parallel()
	assert.Error(t, ValidateLogin("", "pw"))
	assert.Error(t, ValidateLogin("a@b.io", ""))
	assert.NoError(t, ValidateLogin("a@b.io", "pw"))
}
