package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/annnsvm/contactsd/internal/config"
)

const postgresProbeName = "postgres"

// ErrNotReady is returned by WaitReady when the database does not accept
// connections before the configured deadline.
var ErrNotReady = errors.New("database not ready before deadline")

// dbConn abstracts the pgxpool.Pool methods used for readiness and health
// checks so that tests can inject a fake without standing up a real database.
type dbConn interface {
	Ping(ctx context.Context) error
	Close()
}

// PostgresClient owns the pgx connection pool shared by the repositories and
// wraps health probes in a circuit breaker.
type PostgresClient struct {
	cfg     config.PostgresConfig
	cb      *gobreaker.CircuitBreaker
	conn    dbConn
	connect func(ctx context.Context, cfg config.PostgresConfig) (dbConn, error)
}

// NewPostgresClient creates a PostgresClient. No connection is made at
// construction time; the pool is opened by WaitReady (or lazily by Probe).
func NewPostgresClient(cfg config.PostgresConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		cfg:     cfg,
		cb:      cb,
		connect: realConnect,
	}
}

// WaitReady blocks until the database accepts connections and answers a ping,
// polling with the configured backoff. Unlike a bare retry loop it carries a
// deadline (ReadyTimeout) and honours ctx cancellation; on success the opened
// pool is retained for the lifetime of the process.
func (c *PostgresClient) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()

	backoff := c.cfg.ReadyBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 1; ; attempt++ {
		conn, err := c.connect(ctx, c.cfg)
		if err == nil {
			if pingErr := conn.Ping(ctx); pingErr == nil {
				c.conn = conn
				slog.InfoContext(ctx, "database ready", "attempt", attempt)
				return nil
			} else {
				err = pingErr
			}
			conn.Close()
		}

		slog.InfoContext(ctx, "waiting for database", "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrNotReady, err)
		case <-time.After(backoff):
		}
	}
}

// Pool returns the underlying pgx pool for use by the repositories.
// It is only valid after a successful WaitReady.
func (c *PostgresClient) Pool() *pgxpool.Pool {
	if pool, ok := c.conn.(*pgxpool.Pool); ok {
		return pool
	}
	return nil
}

// Close releases the connection pool.
func (c *PostgresClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Probe pings the database and reports latency. The call is wrapped in the
// circuit breaker so persistent failures trip after three consecutive errors.
// When no pool is held yet, a connection is opened and closed for the probe.
func (c *PostgresClient) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		conn := c.conn
		if conn == nil {
			opened, err := c.connect(ctx, c.cfg)
			if err != nil {
				return nil, err
			}
			defer opened.Close()
			conn = opened
		}

		if err := conn.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
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
			Name:      postgresProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return ProbeResult{
		Name:      postgresProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// realConnect opens a pgxpool.Pool using the provided PostgresConfig.
func realConnect(ctx context.Context, cfg config.PostgresConfig) (dbConn, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return pool, nil
}
