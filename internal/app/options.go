package app

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
)

// ContainerOption configures Container creation, used for testing and
// customization (mirrors the teacher's WithDB/WithRedis).
type ContainerOption func(*containerOptions)

type containerOptions struct {
	db    *sql.DB
	redis *redis.Client
}

// WithDB injects a pre-opened database connection, bypassing Config.Store.
func WithDB(db *sql.DB) ContainerOption {
	return func(o *containerOptions) {
		o.db = db
	}
}

// WithRedis injects a pre-constructed Redis client, bypassing Config.Queue.
func WithRedis(client *redis.Client) ContainerOption {
	return func(o *containerOptions) {
		o.redis = client
	}
}
