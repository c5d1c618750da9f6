// internal/auth/auth.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid or missing bearer token")
	ErrWeakToken          = errors.New("token must be at least 16 characters")
)

const MinTokenLength = 16

// GenerateToken returns a random URL-safe token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the bcrypt hash to configure as refresh_token_hash.
func HashToken(token string) (string, error) {
	if len(token) < MinTokenLength {
		return "", ErrWeakToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Verify checks an Authorization header value against a bcrypt hash.
func Verify(hash, header string) error {
	token, ok := BearerToken(header)
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
