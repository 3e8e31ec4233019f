package config

// This file defines the Redis client constructor.  Redis backs the live
// status records, the directory cache and the rate limit counters.  The
// client is returned even when the server is unreachable at startup: every
// call goes through kvstore.Fallback, which serves from process memory
// while Redis is down and switches back once it answers again.

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from the Redis settings in cfg.  Timeouts
// are short and retries disabled so an outage costs one quick failure per
// call instead of stalling requests.
func NewRedisClient(cfg Config) *redis.Client {
	var tlsConf *tls.Config
	if cfg.RedisTLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisEndpoint(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		TLSConfig:    tlsConf,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   -1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis: ping %s failed: %v; serving cache from memory until it recovers", cfg.RedisEndpoint(), err)
	}
	return client
}
