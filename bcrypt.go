package identity

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password matches
// the hashed password. The comparison is constant time.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrBadCredential
		}
		return err
	}
	return nil
}

const passwordSpecials = "@$!%*?&#^_-"

// ValidatePasswordStrength enforces the signup password policy: at least 8
// characters with an upper, a lower, a digit, and a special character.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}

// PasswordStrengthRule adapts the policy to ozzo validation.By.
func PasswordStrengthRule(value any) error {
	s, _ := value.(string)
	return ValidatePasswordStrength(s)
}
