package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediscanner/api/pkg/common/models"
)

const sessionKeyPrefix = "mediscanner:session:"

// RedisSessionCache keeps active sessions in Redis so authenticated
// requests skip the accounts database.
type RedisSessionCache struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisSessionCache(client redis.Cmdable, ttl time.Duration) *RedisSessionCache {
	return &RedisSessionCache{client: client, ttl: ttl, now: time.Now}
}

func sessionKey(tokenID string) string {
	return sessionKeyPrefix + tokenID
}

// entryTTL caps the cache lifetime at the session expiry. Zero means the
// session should not be cached.
func entryTTL(ttl time.Duration, now, expiresAt time.Time) time.Duration {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if ttl <= 0 || remaining < ttl {
		return remaining
	}
	return ttl
}

func (c *RedisSessionCache) Get(ctx context.Context, tokenID string) (models.Session, bool, error) {
	raw, err := c.client.Get(ctx, sessionKey(tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, err
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, false, err
	}
	return session, true, nil
}

func (c *RedisSessionCache) Set(ctx context.Context, session models.Session) error {
	ttl := entryTTL(c.ttl, c.now(), session.ExpiresAt)
	if ttl == 0 || session.LogoutTime != nil {
		return nil
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(session.TokenID), payload, ttl).Err()
}

func (c *RedisSessionCache) Delete(ctx context.Context, tokenID string) error {
	return c.client.Del(ctx, sessionKey(tokenID)).Err()
}
