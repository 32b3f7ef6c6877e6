package usecase

import (
	"context"

	"github.com/fastygo/companion/api/client"
	"github.com/fastygo/companion/domain"
)

// Backend is the slice of the access layer the use cases call.
type Backend interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Upload(ctx context.Context, method, path string, form *client.Multipart, progress client.ProgressFunc, out any) error
}

// SessionStore is the session record owner as seen by the use cases.
type SessionStore interface {
	Save(ctx context.Context, user *domain.User) error
	Load(ctx context.Context) (*domain.User, error)
	Current(ctx context.Context) *domain.User
	Clear(ctx context.Context) error
	Update(ctx context.Context, fn func(*domain.User) (*domain.User, error)) (*domain.User, error)
}

var _ Backend = (*client.Client)(nil)
