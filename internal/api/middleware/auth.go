package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/eldtechnologies/chatmsg/internal/apierror"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

// AuthMiddleware checks the API key on protected endpoints.
type AuthMiddleware struct {
	key     []byte
	keyHash []byte
}

// NewAuthMiddleware creates a new auth middleware. When keyHash is set it is a
// bcrypt hash and takes precedence over the plain key.
func NewAuthMiddleware(key, keyHash string) *AuthMiddleware {
	m := &AuthMiddleware{}
	if keyHash != "" {
		m.keyHash = []byte(keyHash)
	} else {
		m.key = []byte(key)
	}
	return m
}

// RequireAPIKey rejects requests without a valid X-API-Key header.
func (m *AuthMiddleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(APIKeyHeader)
		if provided == "" || !m.valid([]byte(provided)) {
			apierror.Write(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) valid(provided []byte) bool {
	if m.keyHash != nil {
		return bcrypt.CompareHashAndPassword(m.keyHash, provided) == nil
	}
	if len(m.key) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(m.key, provided) == 1
}
