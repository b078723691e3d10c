package repository

import (
	"context"
	"errors"

	"anomalyguard/backend/internal/user/domain"
)

var (
	// ErrStorageUnavailable wraps every driver or connectivity failure of the credential store.
	ErrStorageUnavailable = errors.New("credential store unavailable")
	// ErrEmailTaken is returned by Create when the normalized email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned by Update when no user has the given ID.
	ErrUserNotFound = errors.New("user not found")
)

// Repository defines persistence for user accounts and their behavioral state.
//
// Get methods return (nil, nil) when the user does not exist. Returned users are
// snapshots; changes to them are only persisted through Update.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// Update runs fn against the current record under a per-user exclusive boundary and
	// persists the result when fn returns nil. Concurrent Updates of one user are serialized.
	// An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, userID string, fn func(u *domain.User) error) error
}
