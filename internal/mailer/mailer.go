// Package mailer renders and delivers transactional email through a
// JetStream-backed outbox: handlers enqueue jobs, a worker consumes and
// sends them over SMTP.
package mailer

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/annnsvm/contactsd/internal/config"
)

// Template names accepted in Job.Template.
const (
	TemplateVerifyEmail   = "verify_email"
	TemplateResetPassword = "reset_password"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Job is one queued email. Host is the public base URL embedded in the link.
type Job struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Template string `json:"template"`
	Username string `json:"username"`
	Host     string `json:"host"`
	Token    string `json:"token"`
}

// Render produces the HTML body for the job's template.
func Render(job Job) (string, error) {
	var buf strings.Builder
	if err := templates.ExecuteTemplate(&buf, job.Template+".html", job); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", job.Template, err)
	}
	return buf.String(), nil
}

// Sender delivers a rendered email. Implemented by SMTPSender and test fakes.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// SMTPSender sends mail over SMTP with a 10 second delivery timeout.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender builds a sender from the mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send renders the job and delivers it.
func (s *SMTPSender) Send(ctx context.Context, job Job) error {
	body, err := Render(job)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("setting sender %s: %w", s.cfg.From, err)
	}
	if err := msg.To(job.To); err != nil {
		return fmt.Errorf("setting recipient %s: %w", job.To, err)
	}
	msg.Subject(job.Subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	if s.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("building SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", job.To, err)
	}
	return nil
}
