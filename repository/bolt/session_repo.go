package bolt

import (
	"context"
	"encoding/json"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/repository"
)

// SessionBucket is the bucket holding the session record.
const SessionBucket = "session"

type sessionRepository struct {
	db     *bbolt.DB
	bucket []byte
	key    []byte
}

// NewSessionRepository creates a BoltDB-backed session repository.
// The bucket must already exist (see boltdb.Open).
func NewSessionRepository(db *bbolt.DB, key string) repository.SessionRepository {
	if key == "" {
		key = "user"
	}
	return &sessionRepository{
		db:     db,
		bucket: []byte(SessionBucket),
		key:    []byte(key),
	}
}

func (r *sessionRepository) Get(ctx context.Context) (*domain.User, error) {
	if r.db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	var payload []byte
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		if v := b.Get(r.key); v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, domain.ErrSessionNotFound
	}

	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *sessionRepository) Save(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if r.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		return b.Put(r.key, payload)
	})
}

func (r *sessionRepository) Delete(ctx context.Context) error {
	if r.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		return b.Delete(r.key)
	})
}
