package redis

import (
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "weft:"

// farFuture is the index score of records that never expire (2100-01-01).
const farFuture = 4102444800

type config struct {
	prefix string
	ttl    time.Duration
}

// Option configures the Redis stores.
type Option func(*config)

// WithTTL sets the expiration of run records. Zero (the default) keeps them forever.
// Definitions never expire.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

func newConfig(opts []Option) config {
	c := config{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewClient creates a go-redis client for the given address.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}
