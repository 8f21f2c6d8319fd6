// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
	passwordMinLength = 6
	// bcrypt ignores everything past 72 bytes.
	passwordMaxBytes = 72
	emailMaxLength   = 254
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Registration is the raw sign-up input after trimming.
type Registration struct {
	Username string
	Email    string
	Password string
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks fields in order and returns the first violation.
func ValidateRegistration(r Registration) error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	return ValidatePassword(r.Password)
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	n := utf8.RuneCountInString(username)
	if n < usernameMinLength {
		return fmt.Errorf("username must be at least %d characters long", usernameMinLength)
	}
	if n > usernameMaxLength {
		return fmt.Errorf("username must not exceed %d characters", usernameMaxLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, dots, underscores, and hyphens")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > emailMaxLength {
		return fmt.Errorf("email must not exceed %d characters", emailMaxLength)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword checks the password length bounds.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if utf8.RuneCountInString(password) < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters long", passwordMinLength)
	}
	if len(password) > passwordMaxBytes {
		return fmt.Errorf("password must not exceed %d bytes", passwordMaxBytes)
	}
	return nil
}

// ValidateLogin only checks presence; wrong credentials are reported uniformly elsewhere.
func ValidateLogin(email, password string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}
