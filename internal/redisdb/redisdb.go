package redisdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultAddr = "127.0.0.1:6379"

type Config struct {
	Addr     string `mapstructure:"addr"`     // Default is 127.0.0.1:6379
	Password string `mapstructure:"password"` // Default is empty
	DB       int    `mapstructure:"db"`       // Default is 0
	URL      string `mapstructure:"url"`      // If URL is provided, other fields are ignored
}

// New creates a new Redis client and verifies the connection.
func New(ctx context.Context, conf Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}

	// Prefer URL over discrete fields
	if conf.URL != "" {
		parsed, err := redis.ParseURL(conf.URL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse redis url")
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return client, nil
}
