package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"

	"mercator-hq/pulse/pkg/config"
)

// ErrInvalidToken is returned for unknown tokens.
var ErrInvalidToken = errors.New("invalid token")

// ErrMissingToken is returned when a request carries no token.
var ErrMissingToken = errors.New("missing token")

type tokenEntry struct {
	digest   [sha256.Size]byte
	producer string
}

// TokenValidator maps producer tokens to producer names.
type TokenValidator struct {
	mu      sync.RWMutex
	entries []tokenEntry
}

// NewTokenValidator creates a validator for the configured tokens.
func NewTokenValidator(tokens []config.TokenConfig) *TokenValidator {
	v := &TokenValidator{}
	v.Replace(tokens)
	return v
}

// Replace swaps the token set, e.g. after a configuration reload.
func (v *TokenValidator) Replace(tokens []config.TokenConfig) {
	entries := make([]tokenEntry, 0, len(tokens))
	for _, t := range tokens {
		entries = append(entries, tokenEntry{digest: sha256.Sum256([]byte(t.Token)), producer: t.Name})
	}

	v.mu.Lock()
	v.entries = entries
	v.mu.Unlock()
}

// Validate returns the producer name for token.
func (v *TokenValidator) Validate(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	digest := sha256.Sum256([]byte(token))

	v.mu.RLock()
	defer v.mu.RUnlock()

	// Every entry is compared so timing does not depend on the match position.
	producer := ""
	for _, e := range v.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 {
			producer = e.producer
		}
	}
	if producer == "" {
		return "", ErrInvalidToken
	}
	return producer, nil
}

// Len returns the number of configured tokens.
func (v *TokenValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}
