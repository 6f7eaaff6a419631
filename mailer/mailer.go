// Package mailer delivers transactional email over SMTP.
package mailer

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"
)

const sendTimeout = 10 * time.Second

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Validate checks the message has a recipient and a subject
func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("message recipient is required", errors.CategoryBadInput)
	}
	if m.Subject == "" {
		return errors.New("message subject is required", errors.CategoryBadInput)
	}
	return nil
}

// Config holds the SMTP connection settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends messages through a gomail dialer
type SMTP struct {
	dialer *gomail.Dialer
	from   string
	send   func(*gomail.Message) error
}

// NewSMTP creates a mailer for cfg
func NewSMTP(cfg Config) *SMTP {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTP{
		dialer: dialer,
		from:   cfg.From,
		send: func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		},
	}
}

// Send delivers msg, giving up when ctx is done first
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(m)
	}()

	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CategoryOperation, "email delivery cancelled").
			WithMetadata(map[string]any{"to": msg.To})
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "email delivery failed").
				WithMetadata(map[string]any{"to": msg.To})
		}
		return nil
	}
}
