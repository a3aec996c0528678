package ratelimit

import (
	"time"
)

// Config holds throttle configuration for negotiation commands.
type Config struct {
	// RedisAddr is the Redis server address (e.g., "localhost:6379")
	RedisAddr string

	// RedisPassword is the Redis authentication password (optional)
	RedisPassword string

	// RedisDB is the Redis database number (default: 0)
	RedisDB int

	// DefaultLimit is the per-participant limit applied to any wrapped
	// service without a specific limit
	DefaultLimit int

	// DefaultWindow is the time window for DefaultLimit
	DefaultWindow time.Duration

	// ServiceLimits maps service names to their specific limits
	ServiceLimits map[string]ServiceLimit

	// KeyPrefix is the prefix for Redis keys
	KeyPrefix string
}

// ServiceLimit defines throttle limits for a specific service.
type ServiceLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig returns a config tuned for a four-person negotiation:
// generous defaults, with offers throttled harder since each one fans
// out to every connected client.
func DefaultConfig() Config {
	return Config{
		RedisAddr:     "localhost:6379",
		DefaultLimit:  120,
		DefaultWindow: time.Minute,
		ServiceLimits: map[string]ServiceLimit{
			"submit-offer": {Limit: 20, Window: time.Minute},
		},
		KeyPrefix: "roomswap:ratelimit:",
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(c *Config) {
		c.RedisAddr = addr
	}
}

// WithRedisPassword sets the Redis authentication password.
func WithRedisPassword(password string) Option {
	return func(c *Config) {
		c.RedisPassword = password
	}
}

// WithDefaultLimit sets the default per-participant limit.
func WithDefaultLimit(limit int, window time.Duration) Option {
	return func(c *Config) {
		c.DefaultLimit = limit
		c.DefaultWindow = window
	}
}

// WithServiceLimit sets a specific limit for one service.
func WithServiceLimit(serviceName string, limit int, window time.Duration) Option {
	return func(c *Config) {
		c.ServiceLimits[serviceName] = ServiceLimit{
			Limit:  limit,
			Window: window,
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}
