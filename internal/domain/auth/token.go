package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrTokenNotFound is returned when no active token matches the given hash.
var ErrTokenNotFound = errors.New("token not found")

// TokenInfo holds the identity behind a validated bearer token.
type TokenInfo struct {
	UserID    int64
	TokenHash string
}

// Repository provides lookup of bearer tokens by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*TokenInfo, error)
}
