package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

func TestMessageValidate(t *testing.T) {
	assert.Error(t, Message{Subject: "hi"}.Validate())
	assert.Error(t, Message{To: "a@b.io"}.Validate())
	assert.NoError(t, Message{To: "a@b.io", Subject: "hi"}.Validate())
}

func TestSMTPSend(t *testing.T) {
	s := NewSMTP(Config{Host: "localhost", Port: 2525, From: "Tours <hello@tours.io>"})

	var got *gomail.Message
	s.send = func(m *gomail.Message) error {
		got = m
		return nil
	}

	err := s.Send(context.Background(), Message{
		To:      "jonas@example.com",
		Subject: "Your password reset token (valid for 10 min)",
		Body:    "reset here",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"jonas@example.com"}, got.GetHeader("To"))
	assert.Equal(t, []string{"Tours <hello@tours.io>"}, got.GetHeader("From"))
}

func TestSMTPSendFailure(t *testing.T) {
	s := NewSMTP(Config{Host: "localhost", Port: 2525})
	s.send = func(*gomail.Message) error {
		return assert.AnError
	}

	err := s.Send(context.Background(), Message{To: "a@b.io", Subject: "x"})
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "a@b.io", richErr.Metadata["to"])
}

func TestSMTPSendCancelled(t *testing.T) {
	s := NewSMTP(Config{Host: "localhost", Port: 2525})
	block := make(chan struct{})
	defer close(block)
	s.send = func(*gomail.Message) error {
		<-block
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Send(ctx, Message{To: "a@b.io", Subject: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDevKeepsMessages(t *testing.T) {
	d := NewDev(nil)
	require.NoError(t, d.Send(context.Background(), Message{To: "a@b.io", Subject: "x", Body: "y"}))
	require.Len(t, d.Sent(), 1)
	assert.Equal(t, "y", d.Sent()[0].Body)
}

func TestDevLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := NewDev(zap.New(core))

	require.NoError(t, d.Send(context.Background(), Message{To: "a@b.io", Subject: "reset", Body: "link"}))

	entries := logs.FilterMessage("email").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mailer", entries[0].LoggerName)
	assert.Equal(t, "a@b.io", entries[0].ContextMap()["to"])
	assert.Equal(t, "reset", entries[0].ContextMap()["subject"])
}
