package repository

import (
	"context"
	"sync"

	"anomalyguard/backend/internal/user/domain"
)

// MemoryRepository is an in-process Repository for development and tests.
// Records are copy-on-write: Update mutates a clone and swaps it in on success.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byEmail map[string]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[id].Clone(), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return r.users[id].Clone(), nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	email := domain.NormalizeEmail(u.Email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return ErrEmailTaken
	}
	c := u.Clone()
	c.Email = email
	r.users[c.ID] = c
	r.byEmail[email] = c.ID
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, userID string, fn func(u *domain.User) error) error {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	current := r.users[userID]
	r.mu.RUnlock()
	if current == nil {
		return ErrUserNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.ID = current.ID
	next.Email = current.Email

	r.mu.Lock()
	r.users[userID] = next
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) userLock(userID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}
