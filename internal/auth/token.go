package auth

import (
	"crypto/sha256"
	"errors"
	"time"
)

var (
	ErrTokenMalformed   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token has expired")
)

// TokenClaims is the identity embedded in a session token. Claims are
// never persisted; they exist only inside a token's validity window.
type TokenClaims struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// TokenService signs and verifies session tokens. The signing key and
// validity duration are fixed at construction.
// Implementations include JWTService (HS256) and PasetoService (v4.local).
type TokenService interface {
	CreateToken(email, name string) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// deriveKey stretches secrets shorter than 256 bits to a full 32-byte
// key with SHA-256. Short passphrases must never be used as an HMAC key
// directly.
func deriveKey(secret []byte) []byte {
	if len(secret) >= 32 {
		return secret
	}
	sum := sha256.Sum256(secret)
	return sum[:]
}
