package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/gymsession/internal/models"
)

const keyPrefix = "gymsession:"

type SessionStorage struct {
	client *redis.Client
	prefix string
}

func NewSessionStorage(client *redis.Client) *SessionStorage {
	return &SessionStorage{client: client, prefix: keyPrefix}
}

func (s *SessionStorage) accessKey() string  { return s.prefix + models.AccessTokenKey }
func (s *SessionStorage) refreshKey() string { return s.prefix + models.RefreshTokenKey }

func (s *SessionStorage) Load(ctx context.Context) (models.Session, error) {
	values, err := s.client.MGet(ctx, s.accessKey(), s.refreshKey()).Result()
	if err != nil {
		return models.Session{}, fmt.Errorf("load session from redis: %w", err)
	}

	var session models.Session
	if v, ok := values[0].(string); ok {
		session.AccessToken = v
	}
	if v, ok := values[1].(string); ok {
		session.RefreshToken = v
	}
	return session, nil
}

// Save writes both entries in one transaction so readers never see a mixed pair.
func (s *SessionStorage) Save(ctx context.Context, session models.Session) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.accessKey(), session.AccessToken, 0)
	pipe.Set(ctx, s.refreshKey(), session.RefreshToken, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	return nil
}

func (s *SessionStorage) Delete(ctx context.Context) error {
	err := s.client.Del(ctx, s.accessKey(), s.refreshKey()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session from redis: %w", err)
	}
	return nil
}
