package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/xenking/digigoods/internal/domain/auth"
)

// userIDKey is the context key for the authenticated user id.
type userIDKey struct{}

// UserIDFromContext extracts the authenticated user id set by BearerAuth.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// BearerAuth returns a middleware that authenticates requests via bearer
// tokens. The presented token is HMAC-SHA256 hashed with the pepper, looked
// up in the repository, and compared in constant time to prevent timing
// side-channels. On success the resolved user id is stored in the request
// context.
func BearerAuth(tokens auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(token))
			hash := mac.Sum(nil)
			hexHash := hex.EncodeToString(hash)

			info, err := tokens.FindByHash(r.Context(), hexHash)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}

			storedBytes, err := hex.DecodeString(info.TokenHash)
			if err != nil || subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, info.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
