package service

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail lowercases and trims; applied before every lookup and
// write so the email key is canonical everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if !emailRe.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	return nil
}

// validatePassword enforces the signup strength policy: at least 8
// characters with one upper, one lower and one digit.
func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return &ValidationError{Field: "password", Reason: "must contain an upper-case letter, a lower-case letter and a digit"}
	}
	return nil
}

func validateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}
	return nil
}
