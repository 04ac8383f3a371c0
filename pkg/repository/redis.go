package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return client, nil
}

// RevokedTokenRedis keeps consumed jti values as keys that expire together
// with the token.
type RevokedTokenRedis struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRevokedTokenRedis(client redis.Cmdable) *RevokedTokenRedis {
	return &RevokedTokenRedis{client: client, now: time.Now}
}

func (r *RevokedTokenRedis) Consume(ctx context.Context, jti string, telegramID int64, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := r.client.SetNX(ctx, revokedKeyPrefix+jti, strconv.FormatInt(telegramID, 10), ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx revoked token")
	}
	return ok, nil
}
