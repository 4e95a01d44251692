package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"account_service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestNew_DisabledFallsBackToLog(t *testing.T) {
	log, buf := newTestLogger()

	n, err := New(config.Mail{Host: "smtp.example.com:465"}, log)
	require.NoError(t, err)

	_, ok := n.(*LogNotifier)
	assert.True(t, ok, "expected LogNotifier, got %T", n)
	assert.Contains(t, buf.String(), "mail delivery disabled")
}

func TestNewSMTPNotifier_RejectsBadFromAddress(t *testing.T) {
	_, err := NewSMTPNotifier(config.Mail{
		Host:     "smtp.example.com:465",
		Username: "u",
		Password: "p",
		From:     "not an address",
	})
	assert.Error(t, err)
}

func TestLogNotifier_Send(t *testing.T) {
	log, buf := newTestLogger()

	err := NewLogNotifier(log).Send(context.Background(), Message{
		To:      "alice@example.com",
		Subject: "hello",
		Body:    "secret body",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "to=alice@example.com")
	assert.Contains(t, out, "subject=hello")
}

func TestResetRequestMessage(t *testing.T) {
	msg, err := ResetRequestMessage("alice@example.com", "Alice", "https://app/reset-password?token=abc", "1h0m0s")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Password reset request", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Alice,")
	assert.Contains(t, msg.Body, "https://app/reset-password?token=abc")
	assert.Contains(t, msg.Body, "1h0m0s")
}

func TestNotificationMessages(t *testing.T) {
	created, err := AccountCreatedMessage("bob@example.com", "Bob", "bob")
	require.NoError(t, err)
	assert.Contains(t, created.Body, "Username: bob")

	changed, err := PasswordChangedMessage("bob@example.com", "Bob")
	require.NoError(t, err)
	assert.Contains(t, changed.Body, "has been changed")

	reset, err := PasswordResetMessage("bob@example.com", "Bob")
	require.NoError(t, err)
	assert.Contains(t, reset.Body, "has been reset")
}
