package mailer

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"gopkg.in/gomail.v2"
)

// Relay identifies the outbound SMTP hop for a single delivery. A zero
// Username/Password pair fails at the AUTH step, which the caller surfaces
// as a delivery error.
type Relay struct {
	Host     string
	Port     int
	SSL      bool
	Username string
	Password string
}

// Message is one composed email. TextBody is always set; HTMLBody, when
// present, is attached as the rich alternative.
type Message struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender performs a single synchronous delivery attempt. No retries, no
// queueing: a failure is reported to the caller immediately.
type Sender interface {
	Send(ctx context.Context, relay Relay, msg Message) error
}

func validate(relay Relay, msg Message) error {
	if strings.TrimSpace(relay.Host) == "" {
		return errors.New("smtp host is required")
	}
	if relay.Port <= 0 {
		return errors.New("smtp port is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(msg.From)); err != nil {
		return errors.New("invalid sender address")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(msg.To)); err != nil {
		return errors.New("invalid recipient address")
	}
	if strings.TrimSpace(msg.TextBody) == "" {
		return errors.New("message body is empty")
	}
	return nil
}

// SMTP delivers through gomail: dial, optional TLS upgrade, AUTH, transmit,
// quit. With Relay.SSL the connection is implicitly encrypted (465-style);
// otherwise gomail issues STARTTLS when the server offers it (587-style).
type SMTP struct{}

func NewSMTP() *SMTP {
	return &SMTP{}
}

func (s *SMTP) Send(ctx context.Context, relay Relay, msg Message) error {
	if err := validate(relay, msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", strings.TrimSpace(msg.From))
	m.SetHeader("To", strings.TrimSpace(msg.To))
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	d := gomail.NewDialer(relay.Host, relay.Port, strings.TrimSpace(relay.Username), relay.Password)
	d.SSL = relay.SSL

	// gomail has no dial timeout of its own; bound the whole attempt by the
	// caller's context instead.
	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
