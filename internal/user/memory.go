package user

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development
// (STORE_BACKEND=memory). Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*memoryRecord
}

type memoryRecord struct {
	user User
	cred Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEmail: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := rec.user
	return &u, nil
}

func (s *MemoryStore) GetCredentialByEmail(_ context.Context, email string) (*User, *Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byEmail[email]
	if !ok {
		return nil, nil, ErrNotFound
	}
	u := rec.user
	c := rec.cred
	return &u, &c, nil
}

func (s *MemoryStore) Create(_ context.Context, name, email, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, ErrDuplicateEmail
	}

	u := User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	c := Credential{
		ID:           uuid.New(),
		UserID:       u.ID,
		PasswordHash: passwordHash,
	}
	s.byEmail[email] = &memoryRecord{user: u, cred: c}

	out := u
	return &out, nil
}

func (s *MemoryStore) UpdateCredentialHash(_ context.Context, credentialID uuid.UUID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.byEmail {
		if rec.cred.ID == credentialID {
			rec.cred.PasswordHash = newHash
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) EachCredential(_ context.Context, fn func(Credential) error) error {
	s.mu.RLock()
	creds := make([]Credential, 0, len(s.byEmail))
	for _, rec := range s.byEmail {
		creds = append(creds, rec.cred)
	}
	s.mu.RUnlock()

	// Stable order keeps iteration deterministic across runs.
	sort.Slice(creds, func(i, j int) bool {
		return creds[i].ID.String() < creds[j].ID.String()
	})

	for _, c := range creds {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a user and its credential. Used to exercise the case
// where a valid session outlives its user record.
func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; !ok {
		return ErrNotFound
	}
	delete(s.byEmail, email)
	return nil
}
