package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTCreateAndVerify(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService([]byte("0123456789abcdef0123456789abcdef"), 7*24*time.Hour)
	require.NoError(t, err)

	tok, err := svc.CreateToken("ann@example.com", "Ann")
	require.NoError(t, err)

	claims, err := svc.VerifyToken(tok)
	require.NoError(t, err)

	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, "Ann", claims.Name)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestJWTVerifyWrongKey(t *testing.T) {
	t.Parallel()

	issuer, err := NewJWTService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	verifier, err := NewJWTService([]byte("another-key-another-key-another!"), time.Hour)
	require.NoError(t, err)

	tok, err := issuer.CreateToken("ann@example.com", "Ann")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTVerifyExpired(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	// Sign an already expired token with the service's own key.
	now := time.Now()
	expired := &sessionClaims{
		Email: "ann@example.com",
		Name:  "Ann",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString(svc.key)
	require.NoError(t, err)

	_, err = svc.VerifyToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTVerifyMalformed(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	for _, tok := range []string{"", "not-a-token", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		_, err := svc.VerifyToken(tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tok)
	}
}

func TestJWTRejectsUnsignedAlgorithm(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	// alg=none must never verify, whatever the claims say.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &sessionClaims{
		Email: "ann@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyToken(tok)
	assert.Error(t, err)
}

func TestJWTShortSecretIsStretched(t *testing.T) {
	t.Parallel()

	// Two services from the same short passphrase must agree; the
	// passphrase itself is never used as the HMAC key.
	first, err := NewJWTService([]byte("hunter2"), time.Hour)
	require.NoError(t, err)
	second, err := NewJWTService([]byte("hunter2"), time.Hour)
	require.NoError(t, err)

	assert.Len(t, first.key, 32)
	assert.NotEqual(t, []byte("hunter2"), first.key[:7])

	tok, err := first.CreateToken("ann@example.com", "Ann")
	require.NoError(t, err)

	claims, err := second.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", claims.Email)
}

func TestNewJWTServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewJWTService([]byte("secret"), 0)
	assert.Error(t, err)
}
