package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"golang.org/x/crypto/pbkdf2"

	"github.com/octohub/webhook-hub/internal/config"
)

// pbkdf2Iterations and pbkdf2KeyLen implement spec.md §6.5's admin bearer
// token scheme: 20000 PBKDF2-HMAC-SHA256 iterations, 32-byte derived key.
const (
	pbkdf2Iterations = 20000
	pbkdf2KeyLen     = 32
)

// HashAdminToken derives the salted hash stored in config as ADMIN_TOKEN_HASH.
// Used by the operator tooling that provisions a token, not by request
// handling itself.
func HashAdminToken(token, salt string) string {
	key := pbkdf2.Key([]byte(token), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// AdminAuthMiddleware requires "Authorization: Bearer <token>" where token's
// PBKDF2-HMAC-SHA256 hash (salted with cfg.AdminTokenSalt) matches
// cfg.AdminTokenHash, compared in constant time.
func AdminAuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	wantHash, err := hex.DecodeString(cfg.AdminTokenHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err != nil {
				WriteError(w, err)
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			got := pbkdf2.Key([]byte(token), []byte(cfg.AdminTokenSalt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
			if subtle.ConstantTimeCompare(got, wantHash) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}
