package config

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const envRedisAddr = "LOANS_REDIS_ADDR"

// RedisAddr returns the address of the shared cache.
func RedisAddr() string {
	return envOrDefault(envRedisAddr, "localhost:6379")
}

// RedisOptions creates the go-redis client options for the given address.
func RedisOptions(addr string) *redis.Options {
	const defaultPoolSize = 20
	const defaultDialTimeout = time.Second * 5
	const defaultReadTimeout = time.Second * 3
	const defaultWriteTimeout = time.Second * 3

	return &redis.Options{
		Addr:         addr,
		PoolSize:     defaultPoolSize,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
}
