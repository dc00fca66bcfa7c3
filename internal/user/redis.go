package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore handles user and credential persistence in Redis. Each user
// lives in a hash keyed by normalized email; a set of all emails backs
// credential iteration, and a per-credential key maps credential id back
// to its owning hash for updates.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

const allUsersKey = "auth:users"

// createClaimTTL bounds how long a claimed email may sit without its
// full record. A create that dies between the claim and its pipeline
// leaves a stub that expires instead of holding the email forever.
const createClaimTTL = time.Minute

// getUserKey generates the Redis key for a user hash
func getUserKey(email string) string {
	return fmt.Sprintf("auth:user:%s", email)
}

// getCredentialKey generates the Redis key mapping a credential id to its email
func getCredentialKey(credentialID uuid.UUID) string {
	return fmt.Sprintf("auth:credential:%s", credentialID.String())
}

func (s *RedisStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	// Checking the id field rather than the key ignores expiring claim
	// stubs left by a failed create.
	ok, err := s.client.HExists(ctx, getUserKey(email), "id").Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return ok, nil
}

func (s *RedisStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	data, err := s.client.HGetAll(ctx, getUserKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !userHashComplete(data) {
		return nil, ErrNotFound
	}

	u, _, err := parseUserHash(data)
	return u, err
}

func (s *RedisStore) GetCredentialByEmail(ctx context.Context, email string) (*User, *Credential, error) {
	data, err := s.client.HGetAll(ctx, getUserKey(email)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !userHashComplete(data) {
		return nil, nil, ErrNotFound
	}

	u, c, err := parseUserHash(data)
	if err != nil {
		return nil, nil, err
	}
	return u, c, nil
}

// Create claims the email key with HSETNX so concurrent signups for the
// same address cannot both succeed, then fills in the rest atomically.
func (s *RedisStore) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	userKey := getUserKey(email)

	claimed, err := s.client.HSetNX(ctx, userKey, "email", email).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim email: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicateEmail
	}

	// Bound the claim so a crash before the pipeline below cannot hold
	// the email forever; the pipeline lifts the bound once the record
	// is complete.
	if err := s.client.Expire(ctx, userKey, createClaimTTL).Err(); err != nil {
		s.client.Del(ctx, userKey)
		return nil, fmt.Errorf("failed to bound email claim: %w", err)
	}

	userID := uuid.New()
	credentialID := uuid.New()
	createdAt := time.Now().UTC()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, userKey, map[string]interface{}{
		"id":            userID.String(),
		"name":          name,
		"created_at":    createdAt.Format(time.RFC3339Nano),
		"credential_id": credentialID.String(),
		"password_hash": passwordHash,
	})
	pipe.SAdd(ctx, allUsersKey, email)
	pipe.Set(ctx, getCredentialKey(credentialID), email, 0)
	pipe.Persist(ctx, userKey)

	if _, err := pipe.Exec(ctx); err != nil {
		// Roll back the claim so a retry is possible.
		s.client.Del(ctx, userKey)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &User{
		ID:        userID,
		Name:      name,
		Email:     email,
		CreatedAt: createdAt,
	}, nil
}

func (s *RedisStore) UpdateCredentialHash(ctx context.Context, credentialID uuid.UUID, newHash string) error {
	email, err := s.client.Get(ctx, getCredentialKey(credentialID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to resolve credential: %w", err)
	}

	if err := s.client.HSet(ctx, getUserKey(email), "password_hash", newHash).Err(); err != nil {
		return fmt.Errorf("failed to update credential hash: %w", err)
	}

	return nil
}

func (s *RedisStore) EachCredential(ctx context.Context, fn func(Credential) error) error {
	emails, err := s.client.SMembers(ctx, allUsersKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	for _, email := range emails {
		data, err := s.client.HGetAll(ctx, getUserKey(email)).Result()
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if !userHashComplete(data) {
			// Member left behind by a partially failed create; skip.
			continue
		}

		_, cred, err := parseUserHash(data)
		if err != nil {
			return err
		}
		if err := fn(*cred); err != nil {
			return err
		}
	}

	return nil
}

// userHashComplete reports whether a stored hash carries the full record
// written by Create. A hash holding only the claimed email is a stub from
// a create that died before its pipeline ran; readers treat it as absent.
func userHashComplete(data map[string]string) bool {
	return data["id"] != ""
}

// parseUserHash converts a stored Redis hash into the domain models.
func parseUserHash(data map[string]string) (*User, *Credential, error) {
	userID, err := uuid.Parse(data["id"])
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt user record: bad id: %w", err)
	}
	credentialID, err := uuid.Parse(data["credential_id"])
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt user record: bad credential id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt user record: bad created_at: %w", err)
	}

	u := &User{
		ID:        userID,
		Name:      data["name"],
		Email:     data["email"],
		CreatedAt: createdAt,
	}
	c := &Credential{
		ID:           credentialID,
		UserID:       userID,
		PasswordHash: data["password_hash"],
	}
	return u, c, nil
}
