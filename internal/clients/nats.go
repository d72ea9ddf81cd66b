package clients

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"github.com/annnsvm/contactsd/internal/config"
)

const natsProbeName = "nats"

// Mail outbox stream layout. The worker consumes mail.send; WorkQueuePolicy
// removes each job once a consumer acknowledges it.
const (
	MailStream      = "MAIL_OUTBOX"
	MailSendSubject = "mail.send"
)

var mailStreamConfig = nats.StreamConfig{
	Name:      MailStream,
	Subjects:  []string{"mail.>"},
	Retention: nats.WorkQueuePolicy,
	MaxAge:    24 * time.Hour,
}

// jsContext is the subset of nats.JetStreamContext used by this client.
// Defining an interface here allows test doubles to be injected without a
// live NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	QueueSubscribe(subj, queue string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error)
}

// NATSClient manages the JetStream mail outbox: stream provisioning, job
// publishing, worker subscription, and health probing.
type NATSClient struct {
	url   string
	cb    *gobreaker.CircuitBreaker
	newJS func(url string) (jsContext, func(), error)

	mu      sync.Mutex
	js      jsContext
	cleanup func()
}

// NewNATSClient constructs a NATSClient. No connection is made at construction
// time; the connection is opened lazily and reused afterwards.
func NewNATSClient(cfg config.NATSConfig, cb *gobreaker.CircuitBreaker) *NATSClient {
	return &NATSClient{
		url:   cfg.URL,
		cb:    cb,
		newJS: realNewJS,
	}
}

// Provision creates or updates the MAIL_OUTBOX stream. It is idempotent: an
// existing stream is updated rather than errored. The operation is wrapped in
// the circuit breaker.
func (c *NATSClient) Provision(ctx context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		js, err := c.jetStream()
		if err != nil {
			return nil, err
		}

		cfg := mailStreamConfig
		_, infoErr := js.StreamInfo(cfg.Name)
		switch {
		case errors.Is(infoErr, nats.ErrStreamNotFound):
			if _, addErr := js.AddStream(&cfg); addErr != nil {
				return nil, fmt.Errorf("creating stream %s: %w", cfg.Name, addErr)
			}
		case infoErr != nil:
			return nil, fmt.Errorf("querying stream %s: %w", cfg.Name, infoErr)
		default:
			if _, updErr := js.UpdateStream(&cfg); updErr != nil {
				return nil, fmt.Errorf("updating stream %s: %w", cfg.Name, updErr)
			}
		}
		return nil, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// Publish sends a payload to the given subject through JetStream, wrapped in
// the circuit breaker.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := c.cb.Execute(func() (any, error) {
		js, err := c.jetStream()
		if err != nil {
			return nil, err
		}
		if _, pubErr := js.Publish(subject, data); pubErr != nil {
			return nil, fmt.Errorf("publishing to %s: %w", subject, pubErr)
		}
		return nil, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// QueueSubscribe attaches a durable queue consumer to the given subject with
// manual acknowledgement. Used by the mail worker.
func (c *NATSClient) QueueSubscribe(subject, durable string, handler nats.MsgHandler) (*nats.Subscription, error) {
	js, err := c.jetStream()
	if err != nil {
		return nil, err
	}
	return js.QueueSubscribe(subject, durable, handler,
		nats.Durable(durable),
		nats.ManualAck(),
	)
}

// Probe verifies NATS connectivity. A missing stream is not treated as a
// failure — NATS being reachable is what matters for health.
func (c *NATSClient) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		js, err := c.jetStream()
		if err != nil {
			return nil, err
		}

		_, infoErr := js.StreamInfo(MailStream)
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream info: %w", infoErr)
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
			Name:      natsProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return ProbeResult{
		Name:      natsProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}

// Close drains the underlying connection if one was opened.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanup != nil {
		c.cleanup()
		c.js = nil
		c.cleanup = nil
	}
}

// jetStream returns the cached JetStream context, connecting on first use.
// A failed connect is not cached so the next call retries.
func (c *NATSClient) jetStream() (jsContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.js != nil {
		return c.js, nil
	}

	js, cleanup, err := c.newJS(c.url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	c.js = js
	c.cleanup = cleanup
	return js, nil
}

// realNewJS opens a real NATS connection and returns a JetStreamContext plus a
// cleanup function that closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { nc.Close() }, nil
}
