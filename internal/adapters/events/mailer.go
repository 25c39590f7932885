package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// SMTPMailer delivers identity notification events as plain-text email.
// It implements ports.EventPublisher so the worker never knows the channel.
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer builds a mailer for the given SMTP endpoint. Empty username
// skips authentication, which is what local relay containers expect.
func NewSMTPMailer(addr, from, username, password string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, authHost(addr))
	}
	return &SMTPMailer{addr: addr, from: from, auth: auth}
}

// authHost strips the port for PlainAuth, which wants the bare hostname.
// IPv6 literals carry their own colons, so naive splitting is not enough.
func authHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (m *SMTPMailer) Publish(_ context.Context, eventType, _ string, payload []byte) error {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	if body.Email == "" {
		return fmt.Errorf("event %s has no recipient", eventType)
	}

	subject, text := renderMessage(eventType, body.Code, body.Token)
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + body.Email,
		"Subject: " + subject,
		"",
		text,
	}, "\r\n")

	return smtp.SendMail(m.addr, m.auth, m.from, []string{body.Email}, []byte(msg))
}

func renderMessage(eventType, code, token string) (string, string) {
	switch eventType {
	case "identity.otp.issued":
		return "Your campus login code", "Your one-time login code is " + code + ". It expires in 10 minutes."
	case "identity.password_reset.requested":
		return "Reset your campus password", "Use this token to reset your password: " + token
	case "identity.email_verification.requested":
		return "Verify your campus email", "Use this token to verify your email address: " + token
	case "identity.account.registered":
		return "Your campus account", "An account has been created for this address."
	default:
		return "Campus notification", "You have a new notification."
	}
}

// LoggingPublisher is the dev/test delivery channel: every event lands on the
// structured log instead of a mailbox.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error {
	p.logger.InfoContext(ctx, "published event",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload", string(payload),
	)
	return nil
}
