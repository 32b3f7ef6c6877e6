package repository

import (
	"context"

	"github.com/fastygo/companion/domain"
)

// SessionRepository persists the single session record under a fixed key.
// Get returns domain.ErrSessionNotFound when nothing is stored.
type SessionRepository interface {
	Get(ctx context.Context) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context) error
}
