package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/grocerly/auth-api/internal/database"
)

// credentialBatchSize bounds how many rows EachCredential pulls per query.
const credentialBatchSize = 500

// PostgresStore handles user and credential persistence in Postgres.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ExistsByEmail reports whether a user with the given email exists.
func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*database.User)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// GetByEmail retrieves a user by email.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := s.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetCredentialByEmail retrieves a user together with its credential.
func (s *PostgresStore) GetCredentialByEmail(ctx context.Context, email string) (*User, *Credential, error) {
	dbUser := new(database.User)
	err := s.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	dbCred := new(database.Credential)
	err = s.db.NewSelect().
		Model(dbCred).
		Where("user_id = ?", dbUser.ID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return mapDBUserToModel(dbUser), mapDBCredentialToModel(dbCred), nil
}

// Create inserts a new user and its credential in one transaction.
// The unique constraint on users.email is the source of truth for
// duplicates; concurrent signups for the same email cannot both commit.
func (s *PostgresStore) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	dbUser := &database.User{
		Name:  name,
		Email: email,
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(dbUser).
			Returning("*").
			Exec(ctx); err != nil {
			return err
		}

		dbCred := &database.Credential{
			UserID:       dbUser.ID,
			PasswordHash: passwordHash,
		}
		_, err := tx.NewInsert().
			Model(dbCred).
			Exec(ctx)
		return err
	})

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateCredentialHash replaces the stored hash for a single credential.
func (s *PostgresStore) UpdateCredentialHash(ctx context.Context, credentialID uuid.UUID, newHash string) error {
	result, err := s.db.NewUpdate().
		Model((*database.Credential)(nil)).
		Set("password_hash = ?", newHash).
		Where("id = ?", credentialID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update credential hash: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// EachCredential walks all credentials in id order using keyset
// pagination, so the full table is never held in memory at once.
func (s *PostgresStore) EachCredential(ctx context.Context, fn func(Credential) error) error {
	var lastID uuid.UUID

	for {
		var batch []database.Credential
		q := s.db.NewSelect().
			Model(&batch).
			OrderExpr("id ASC").
			Limit(credentialBatchSize)
		if lastID != uuid.Nil {
			q = q.Where("id > ?", lastID)
		}

		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("failed to list credentials: %w", err)
		}

		for i := range batch {
			if err := fn(*mapDBCredentialToModel(&batch[i])); err != nil {
				return err
			}
		}

		if len(batch) < credentialBatchSize {
			return nil
		}
		lastID = batch[len(batch)-1].ID
	}
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:        dbu.ID,
		Name:      dbu.Name,
		Email:     dbu.Email,
		CreatedAt: dbu.CreatedAt,
	}
}

// mapDBCredentialToModel converts database model to domain model
func mapDBCredentialToModel(dbc *database.Credential) *Credential {
	return &Credential{
		ID:           dbc.ID,
		UserID:       dbc.UserID,
		PasswordHash: dbc.PasswordHash,
	}
}
