package database

import (
	"context"
	"time"

	"packhouse-backend/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedis returns nil when REDIS_ADDRESS is unset.
func NewRedis(cfg *config.Config, logger *logrus.Logger) *redis.Client {
	if cfg.RedisAddress == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("could not connect to redis")
	}
	logger.WithField("address", cfg.RedisAddress).Info("redis connected")
	return client
}
