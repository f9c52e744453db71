package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
)

const (
	profileKeyPrefix  = "user:"
	DefaultProfileTTL = 10 * time.Minute
)

// ProfileCache is a cache-aside wrapper around a ProfileRepository. Redis
// failures degrade to reading the source directly.
type ProfileCache struct {
	source domain.ProfileRepository
	redis  redis.Cmdable
	ttl    time.Duration
	logger logging.Logger
}

func NewProfileCache(source domain.ProfileRepository, client redis.Cmdable, ttl time.Duration, logger logging.Logger) *ProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &ProfileCache{source: source, redis: client, ttl: ttl, logger: logger}
}

func (c *ProfileCache) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	key := profileKeyPrefix + id

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var user domain.Identity
		if err := json.Unmarshal(data, &user); err == nil {
			return &user, nil
		}
		c.warn("discarding undecodable cached profile", id, err)
	case !errors.Is(err, redis.Nil):
		c.warn("profile cache read failed", id, err)
	}

	user, err := c.source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.warn("profile cache write failed", id, err)
		}
	}
	return user, nil
}

// Invalidate drops a cached profile after it changed at the source.
func (c *ProfileCache) Invalidate(ctx context.Context, id string) error {
	return c.redis.Del(ctx, profileKeyPrefix+id).Err()
}

func (c *ProfileCache) warn(msg, id string, err error) {
	c.logger.Warn(logging.Redis, logging.Cache, msg, map[logging.ExtraKey]any{
		logging.IdentityID:   id,
		logging.ErrorMessage: err.Error(),
	})
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
