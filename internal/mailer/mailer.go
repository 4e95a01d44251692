// Package mailer delivers account notifications by email.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"

	"account_service/internal/config"

	"github.com/dajohi/goemail"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier sends a single message to one recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPNotifier sends mail through an SMTPS server.
type SMTPNotifier struct {
	client      *goemail.SMTP
	mailName    string
	mailAddress string
}

// New returns an SMTP notifier, or a LogNotifier when mail is not configured.
func New(cfg config.Mail, log *slog.Logger) (Notifier, error) {
	const op = "mailer.New"

	if !cfg.Enabled() {
		log.Warn("mail delivery disabled; notifications will only be logged")
		return NewLogNotifier(log), nil
	}

	n, err := NewSMTPNotifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func NewSMTPNotifier(cfg config.Mail) (*SMTPNotifier, error) {
	const op = "mailer.NewSMTPNotifier"

	u := &url.URL{
		Scheme: "smtps",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   cfg.Host,
	}

	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("%s: parse from address: %w", op, err)
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.SkipVerify,
	}

	client, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SMTPNotifier{
		client:      client,
		mailName:    from.Name,
		mailAddress: from.Address,
	}, nil
}

func (s *SMTPNotifier) Send(_ context.Context, msg Message) error {
	const op = "mailer.Send"

	m := goemail.NewMessage(s.mailAddress, msg.Subject, msg.Body)
	m.SetName(s.mailName)
	m.AddTo(msg.To)

	if err := s.client.Send(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Send(ctx context.Context, msg Message) error {
	l.log.InfoContext(ctx, "email not sent, delivery disabled",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	l.log.DebugContext(ctx, "email body", slog.String("body", msg.Body))

	return nil
}
