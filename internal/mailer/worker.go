package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annnsvm/contactsd/internal/clients"
)

// errMalformed marks jobs that can never succeed; they are terminated rather
// than redelivered.
var errMalformed = errors.New("malformed mail job")

// subscriber is satisfied by *clients.NATSClient.
type subscriber interface {
	QueueSubscribe(subject, durable string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// Worker consumes MAIL_OUTBOX jobs and delivers them via the Sender. Send
// failures are logged and the message is redelivered; a send error must never
// take the service down.
type Worker struct {
	sub    subscriber
	sender Sender

	// sendTimeout bounds one delivery attempt.
	sendTimeout time.Duration
}

// NewWorker wires the consumer side of the mail outbox.
func NewWorker(sub subscriber, sender Sender) *Worker {
	return &Worker{
		sub:         sub,
		sender:      sender,
		sendTimeout: 15 * time.Second,
	}
}

// Start attaches the durable consumer and returns; delivery runs on the NATS
// callback goroutine. The returned stop func detaches the consumer.
func (w *Worker) Start(ctx context.Context) (func(), error) {
	sub, err := w.sub.QueueSubscribe(clients.MailSendSubject, "contactsd-mailer", func(msg *nats.Msg) {
		if err := w.process(ctx, msg.Data); err != nil {
			if errors.Is(err, errMalformed) {
				slog.WarnContext(ctx, "dropping malformed mail job", "err", err)
				msg.Term() //nolint:errcheck
				return
			}
			slog.WarnContext(ctx, "mail delivery failed, will retry", "err", err)
			msg.Nak() //nolint:errcheck
			return
		}
		msg.Ack() //nolint:errcheck
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to mail outbox: %w", err)
	}

	slog.InfoContext(ctx, "mail worker started")
	return func() {
		sub.Unsubscribe() //nolint:errcheck
	}, nil
}

// process decodes and delivers one job.
func (w *Worker) process(ctx context.Context, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("%w: %s", errMalformed, err)
	}
	if job.To == "" || job.Template == "" {
		return fmt.Errorf("%w: missing recipient or template", errMalformed)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, job); err != nil {
		return err
	}

	slog.InfoContext(ctx, "mail sent", "to", job.To, "template", job.Template)
	return nil
}
