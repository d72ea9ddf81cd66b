package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annnsvm/contactsd/internal/clients"
)

// publisher is satisfied by *clients.NATSClient.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Queue publishes email jobs to the MAIL_OUTBOX stream. It is the only mail
// surface the HTTP handlers see; delivery happens in the worker.
type Queue struct {
	pub publisher
}

// NewQueue wraps a publisher as the mail outbox.
func NewQueue(pub publisher) *Queue {
	return &Queue{pub: pub}
}

// Enqueue serialises the job and publishes it for the worker.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling mail job: %w", err)
	}
	if err := q.pub.Publish(ctx, clients.MailSendSubject, data); err != nil {
		return fmt.Errorf("enqueueing mail for %s: %w", job.To, err)
	}
	return nil
}
