package redis

import (
	"context"
	"encoding/json"
	"errors"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/companion/domain"
	"github.com/fastygo/companion/repository"
)

type sessionRepository struct {
	client *redislib.Client
	key    string
}

// NewSessionRepository creates a Redis-backed session repository.
// The record is stored without expiry; logout is the only way it goes away.
func NewSessionRepository(client *redislib.Client, key string) repository.SessionRepository {
	if key == "" {
		key = "user"
	}
	return &sessionRepository{
		client: client,
		key:    "session:" + key,
	}
}

func (r *sessionRepository) Get(ctx context.Context) (*domain.User, error) {
	result, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var user domain.User
	if err := json.Unmarshal([]byte(result), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *sessionRepository) Save(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, payload, 0).Err()
}

func (r *sessionRepository) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
