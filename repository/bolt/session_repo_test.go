package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/internal/infrastructure/boltdb"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "nested", "test.db"), SessionBucket)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRepository_GetEmpty(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), "user")

	user, err := repo.Get(context.Background())
	assert.Nil(t, user)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_SaveOverwrites(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), "user")
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.User{ID: "u1", Email: "a@example.com"}))
	require.NoError(t, repo.Save(ctx, &domain.User{ID: "u2", Email: "b@example.com", IsProfileComplete: true}))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.User{ID: "u2", Email: "b@example.com", IsProfileComplete: true}, got)
}

func TestSessionRepository_DeleteAbsentIsNoop(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t), "user")
	assert.NoError(t, repo.Delete(context.Background()))
}

func TestSessionRepository_KeysAreIsolated(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	first := NewSessionRepository(db, "first")
	second := NewSessionRepository(db, "second")

	require.NoError(t, first.Save(ctx, &domain.User{ID: "u1"}))

	_, err := second.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_CorruptPayload(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(SessionBucket)).Put([]byte("user"), []byte("{not json"))
	}))

	_, err := NewSessionRepository(db, "user").Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_ClosedDB(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())

	err := NewSessionRepository(db, "user").Save(context.Background(), &domain.User{ID: "u1"})
	assert.Error(t, err)
}
