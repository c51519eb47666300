package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/readmission/pkg/common/config"
	"github.com/synaptica-ai/readmission/pkg/common/logger"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// RedisOptions maps cfg onto client options. Every command is bounded by the
// server read/write timeouts so a stalled cache cannot hold up a run.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// GetRedis returns the process-wide feature cache client, built from the
// caller's Config on first use; later calls ignore cfg. The connection is
// checked once with a ping whose failure is logged, not returned: the cache
// is optional, runs only warn when it cannot be refreshed and feature
// lookups fall back to Postgres.
func GetRedis(cfg *config.Config) *redis.Client {
	redisOnce.Do(func() {
		redisClient = redis.NewClient(RedisOptions(cfg))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		log := logger.Component("featurestore").WithField("addr", redisClient.Options().Addr)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unavailable; features will be served from Postgres")
			return
		}
		log.Info("Connected to Redis")
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
