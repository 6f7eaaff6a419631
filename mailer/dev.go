package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dev logs messages instead of sending them and keeps the last ones
// around for inspection.
type Dev struct {
	logger *zap.Logger
	mu     sync.Mutex
	sent   []Message
}

// NewDev returns a Dev mailer writing to logger, the global zap logger
// when nil
func NewDev(logger *zap.Logger) *Dev {
	if logger == nil {
		logger = zap.L()
	}
	return &Dev{logger: logger.Named("mailer")}
}

func (d *Dev) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.sent = append(d.sent, msg)
	d.mu.Unlock()

	d.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// Sent returns a copy of every message handed to Send
func (d *Dev) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.sent...)
}
