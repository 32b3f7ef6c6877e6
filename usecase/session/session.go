package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/repository"
)

// Store owns the persisted session record. All operations are serialized.
type Store struct {
	repo   repository.SessionRepository
	logger *zap.Logger

	mu sync.Mutex
}

func New(repo repository.SessionRepository, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// Save replaces the stored record with user.
func (s *Store) Save(ctx context.Context, user *domain.User) error {
	if !user.IsSignedIn() {
		return domain.ErrInvalidPayload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, user)
}

// Load returns the stored record, or nil when signed out.
// Read and decode failures are returned as storage errors.
func (s *Store) Load(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Current returns the stored record, or nil when signed out or unreadable.
func (s *Store) Current(ctx context.Context) *domain.User {
	user, err := s.Load(ctx)
	if err != nil {
		return nil
	}
	return user
}

// Clear removes the stored record. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx); err != nil {
		s.logger.Error("failed to clear session", zap.Error(err))
		return domain.StorageError("clear", err)
	}
	return nil
}

// Update applies fn to the stored record and persists the result atomically
// with respect to other Store calls. fn receives a copy; a nil record means signed out.
func (s *Store) Update(ctx context.Context, fn func(*domain.User) (*domain.User, error)) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if !next.IsSignedIn() {
		return nil, domain.ErrInvalidPayload
	}
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *Store) save(ctx context.Context, user *domain.User) error {
	if err := s.repo.Save(ctx, user); err != nil {
		s.logger.Error("failed to save session", zap.String("user_id", user.ID), zap.Error(err))
		return domain.StorageError("write", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (*domain.User, error) {
	user, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		s.logger.Warn("failed to read session", zap.Error(err))
		return nil, domain.StorageError("read", err)
	}
	return user, nil
}
