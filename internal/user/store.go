package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store is the persistence boundary for users and their credentials.
// Emails are stored and looked up already normalized (lowercased) by the
// caller. Implementations must enforce email uniqueness themselves; the
// caller's existence pre-check is advisory only.
type Store interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetCredentialByEmail(ctx context.Context, email string) (*User, *Credential, error)

	// Create inserts the user and its credential in one transaction.
	// Returns ErrDuplicateEmail when the email is already taken.
	Create(ctx context.Context, name, email, passwordHash string) (*User, error)

	UpdateCredentialHash(ctx context.Context, credentialID uuid.UUID, newHash string) error

	// EachCredential iterates every stored credential, fetching in
	// batches. Iteration stops at the first error returned by fn.
	// Each call restarts from the beginning.
	EachCredential(ctx context.Context, fn func(Credential) error) error
}
