package utils

import (
	"context"
	"time"

	"github.com/GabeYou/Hack-The-Valley-2025/config"

	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when REDIS_ADDR is not configured. A failed ping
// is reported so the caller can fall back to the database.
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return rc, nil
}
