package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/infrastructure/boltdb"
	boltRepo "github.com/fastygo/companion/repository/bolt"
)

// fakeRepository is a test-only repository with error injection.
type fakeRepository struct {
	mu        sync.Mutex
	user      *domain.User
	getErr    error
	saveErr   error
	deleteErr error
}

func (f *fakeRepository) Get(ctx context.Context) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.user == nil {
		return nil, domain.ErrSessionNotFound
	}
	return f.user.Clone(), nil
}

func (f *fakeRepository) Save(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.user = user.Clone()
	return nil
}

func (f *fakeRepository) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.user = nil
	return nil
}

func newBoltStore(t *testing.T) *Store {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "session.db"), boltRepo.SessionBucket)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(boltRepo.NewSessionRepository(db, "user"), nil)
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:                "u-1",
		Email:             "sam@example.com",
		Name:              "Sam",
		IsProfileComplete: true,
		ProfileImage:      "https://cdn.example.com/u-1.png",
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleUser()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleUser(), got)
}

func TestStore_ReadIsIdempotent(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleUser()))

	first := store.Current(ctx)
	second := store.Current(ctx)
	assert.Equal(t, first, second)
}

func TestStore_ClearThenLoadIsEmpty(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleUser()))

	require.NoError(t, store.Clear(ctx))

	got, err := store.Load(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, store.Current(ctx))
	assert.NoError(t, store.Clear(ctx))
}

func TestStore_SaveRejectsAnonymousRecord(t *testing.T) {
	store := New(&fakeRepository{}, nil)
	assert.ErrorIs(t, store.Save(context.Background(), &domain.User{Email: "x@example.com"}), domain.ErrInvalidPayload)
	assert.ErrorIs(t, store.Save(context.Background(), nil), domain.ErrInvalidPayload)
}

func TestStore_StorageErrorsSurface(t *testing.T) {
	boom := errors.New("disk unavailable")
	ctx := context.Background()

	tests := []struct {
		name string
		repo *fakeRepository
		run  func(*Store) error
	}{
		{
			name: "save",
			repo: &fakeRepository{saveErr: boom},
			run:  func(s *Store) error { return s.Save(ctx, sampleUser()) },
		},
		{
			name: "clear",
			repo: &fakeRepository{deleteErr: boom},
			run:  func(s *Store) error { return s.Clear(ctx) },
		},
		{
			name: "load",
			repo: &fakeRepository{getErr: boom},
			run: func(s *Store) error {
				_, err := s.Load(ctx)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(New(tt.repo, nil))
			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeStorage))
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestStore_CurrentSwallowsReadFailure(t *testing.T) {
	store := New(&fakeRepository{getErr: errors.New("corrupt")}, nil)
	assert.Nil(t, store.Current(context.Background()))
}

func TestStore_Update(t *testing.T) {
	store := newBoltStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleUser()))

	updated, err := store.Update(ctx, func(u *domain.User) (*domain.User, error) {
		u.IsAssessmentComplete = true
		return u, nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsAssessmentComplete)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, stored.IsAssessmentComplete)
	assert.Equal(t, "Sam", stored.Name)
}

func TestStore_UpdateSignedOut(t *testing.T) {
	store := newBoltStore(t)

	_, err := store.Update(context.Background(), func(u *domain.User) (*domain.User, error) {
		if u == nil {
			return nil, domain.ErrNotSignedIn
		}
		return u, nil
	})
	assert.ErrorIs(t, err, domain.ErrNotSignedIn)
}

func TestStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	store := New(&fakeRepository{user: &domain.User{ID: "u-1"}}, nil)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, func(u *domain.User) (*domain.User, error) {
				u.Name += "x"
				return u, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Name, writers)
}
