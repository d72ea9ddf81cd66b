package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/annnsvm/contactsd/internal/config"
)

const redisProbeName = "redis"

// redisPinger is the interface used by RedisClient for health probing.
// It is implemented by the real go-redis client and by test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

// realRedisPinger adapts a *redis.Client to the redisPinger interface. The
// wrapper exists so tests can inject a fake without needing to construct a
// real *redis.StatusCmd.
type realRedisPinger struct {
	client *redis.Client
}

func (r *realRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realRedisPinger) Close() error {
	return r.client.Close()
}

// RedisClient owns the shared go-redis connection used by the user cache and
// the rate limiter, and exposes a breaker-wrapped Probe for deep health.
type RedisClient struct {
	cfg    config.RedisConfig
	cb     *gobreaker.CircuitBreaker
	pinger redisPinger

	once   sync.Once
	client *redis.Client
}

// NewRedisClient creates a RedisClient. The underlying go-redis client is
// built lazily on first use — go-redis dials per command, so construction
// never blocks.
func NewRedisClient(cfg config.RedisConfig, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		cfg: cfg,
		cb:  cb,
	}
}

// Client returns the shared *redis.Client, constructing it on first call.
func (c *RedisClient) Client() *redis.Client {
	c.once.Do(func() {
		c.client = redis.NewClient(&redis.Options{
			Addr:     c.cfg.Addr(),
			Password: c.cfg.Password,
			DB:       c.cfg.DB,
		})
	})
	return c.client
}

// Close releases the shared client if one was built.
func (c *RedisClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Probe sends a PING command to Redis and validates the PONG response. The call
// is wrapped in the circuit breaker; after 3 consecutive failures the breaker
// opens and subsequent calls return immediately with "circuit open".
func (c *RedisClient) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		p := c.pinger
		if p == nil {
			p = &realRedisPinger{client: c.Client()}
		}

		val, err := p.PingResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return ProbeResult{
			Name:      redisProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return ProbeResult{
		Name:      redisProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}
