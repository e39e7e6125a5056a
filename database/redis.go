package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/config"
)

type RedisClient struct {
	Client *redis.Client
	log    *logrus.Logger
}

// NewRedisClient parses REDIS_URL and verifies the server answers PING.
func NewRedisClient(cfg *config.Config, logger *logrus.Logger) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return &RedisClient{Client: client, log: logger}, nil
}

func (c *RedisClient) Close() {
	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			c.log.WithError(err).Error("Error closing redis connection")
		} else {
			c.log.Info("Redis connection closed")
		}
	}
}
