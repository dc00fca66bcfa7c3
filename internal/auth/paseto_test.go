package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasetoCreateAndVerify(t *testing.T) {
	t.Parallel()

	svc, err := NewPasetoService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	tok, err := svc.CreateToken("ann@example.com", "Ann")
	require.NoError(t, err)

	claims, err := svc.VerifyToken(tok)
	require.NoError(t, err)

	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, "Ann", claims.Name)
}

func TestPasetoVerifyWrongKey(t *testing.T) {
	t.Parallel()

	issuer, err := NewPasetoService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	verifier, err := NewPasetoService([]byte("different-secret"), time.Hour)
	require.NoError(t, err)

	tok, err := issuer.CreateToken("ann@example.com", "Ann")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(tok)
	assert.Error(t, err)
}

func TestPasetoDerivesNon32ByteSecrets(t *testing.T) {
	t.Parallel()

	// Any secret that is not exactly 32 bytes is hashed to size, so the
	// same passphrase always yields the same key.
	first, err := NewPasetoService([]byte("short"), time.Hour)
	require.NoError(t, err)
	second, err := NewPasetoService([]byte("short"), time.Hour)
	require.NoError(t, err)

	tok, err := first.CreateToken("ann@example.com", "Ann")
	require.NoError(t, err)

	claims, err := second.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "Ann", claims.Name)
}
