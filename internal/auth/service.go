package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/grocerly/auth-api/internal/logging"
	"github.com/grocerly/auth-api/internal/password"
	"github.com/grocerly/auth-api/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNameRequired       = errors.New("name is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrInvalidEmailFormat = errors.New("invalid email format")
)

// Service orchestrates signup, login, identity resolution and the
// credential hash migration. It holds no per-request state; everything
// flows through the store and the token service.
type Service struct {
	store  user.Store
	hasher *password.Hasher
	tokens TokenService
	logger *logging.Logger
}

func NewService(store user.Store, hasher *password.Hasher, tokens TokenService, logger *logging.Logger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// NormalizeEmail lowercases and trims an email address. All store
// lookups and writes go through this, so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a user with a hashed credential and issues a session
// token. The existence pre-check gives a friendly error early; the
// store's unique constraint is what actually prevents duplicate emails
// under concurrent signups.
func (s *Service) Signup(ctx context.Context, name, email, plaintext string) (*user.User, string, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if name == "" {
		return nil, "", ErrNameRequired
	}
	if email == "" {
		return nil, "", ErrEmailRequired
	}
	if len(email) > 254 {
		return nil, "", ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrInvalidEmailFormat
	}
	if plaintext == "" {
		return nil, "", ErrPasswordRequired
	}

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, "", user.ErrDuplicateEmail
	}

	hashRecord, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.store.Create(ctx, name, email, hashRecord)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, "", user.ErrDuplicateEmail
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.CreateToken(newUser.Email, newUser.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}

	return newUser, token, nil
}

// Login verifies credentials and issues a session token. Unknown email
// and wrong password collapse into the same ErrInvalidCredentials so
// responses cannot be used to enumerate accounts.
func (s *Service) Login(ctx context.Context, email, plaintext string) (*user.User, string, error) {
	email = NormalizeEmail(email)
	if email == "" || plaintext == "" {
		return nil, "", ErrInvalidCredentials
	}

	existingUser, cred, err := s.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to get credential: %w", err)
	}

	if !s.verifyStored(plaintext, cred.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.CreateToken(existingUser.Email, existingUser.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}

	return existingUser, token, nil
}

// verifyStored accepts whichever hash form is currently stored, so
// logins keep working while the migration is in flight. Proper hash
// records go through the hasher; anything else is a legacy plaintext
// row and is compared in constant time.
func (s *Service) verifyStored(plaintext, stored string) bool {
	if password.IsHashRecord(stored) {
		return s.hasher.Verify(plaintext, stored)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) == 1
}

// Me re-resolves the authenticated user by email. A valid token whose
// user has since been deleted reads as not authenticated.
func (s *Service) Me(ctx context.Context, email string) (*user.User, error) {
	existingUser, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return existingUser, nil
}

// MigratePasswordHashes rewrites every credential that does not have
// the shape of a hash record, treating its stored value as the legacy
// plaintext password. Each record is its own write, so a failure
// partway through keeps all updates applied so far, and a re-run only
// touches what is still unmigrated.
func (s *Service) MigratePasswordHashes(ctx context.Context) (int, error) {
	updated := 0

	err := s.store.EachCredential(ctx, func(c user.Credential) error {
		if password.IsHashRecord(c.PasswordHash) {
			return nil
		}

		hashRecord, err := s.hasher.Hash(c.PasswordHash)
		if err != nil {
			return fmt.Errorf("failed to hash credential %s: %w", c.ID, err)
		}
		if err := s.store.UpdateCredentialHash(ctx, c.ID, hashRecord); err != nil {
			return fmt.Errorf("failed to update credential %s: %w", c.ID, err)
		}

		updated++
		s.logger.Info("migrated legacy credential", "credential_id", c.ID)
		return nil
	})

	return updated, err
}
