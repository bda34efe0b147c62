// Package verification stores one-time SMS codes keyed by phone number.
package verification

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxAttempts bounds wrong guesses per issued code.
const DefaultMaxAttempts = 5

var (
	ErrCodeNotFound    = errors.New("verification code not found")
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrTooManyAttempts = errors.New("too many incorrect verification attempts")
)

type Code struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

type Store interface {
	// Save replaces any previous code for phone and resets its attempt count.
	Save(ctx context.Context, phone string, code Code, ttl time.Duration) error
	// Get returns ErrCodeNotFound when no unexpired code exists. It informs
	// issuing decisions only; candidates are checked with Consume.
	Get(ctx context.Context, phone string) (Code, error)
	// Consume compares candidate with the stored code and removes it on a
	// match in one atomic step. A mismatch returns ErrCodeMismatch and uses
	// up one of maxAttempts; the last one discards the code and returns
	// ErrTooManyAttempts.
	Consume(ctx context.Context, phone, candidate string, maxAttempts int) error
	// Delete removes the code and reports whether one was present.
	Delete(ctx context.Context, phone string) (bool, error)
}
