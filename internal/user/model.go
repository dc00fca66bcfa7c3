package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential is the stored authentication secret for a user, kept in a
// dedicated table with a 1:1 owner reference. PasswordHash is an opaque
// hash record; rows created before hashing was introduced may still
// hold plaintext until the migration routine rewrites them.
type Credential struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
}
