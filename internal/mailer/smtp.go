// Package mailer delivers plain-text mail over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// DefaultTimeout bounds a single delivery so a slow server cannot stall the caller.
const DefaultTimeout = 10 * time.Second

var ErrIncompleteSettings = errors.New("smtp settings incomplete")

// Settings are the decrypted connection details for one delivery.
type Settings struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func (s Settings) validate() error {
	if s.Host == "" || s.Port <= 0 || s.Username == "" || s.FromEmail == "" {
		return ErrIncompleteSettings
	}
	return nil
}

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender is implemented by SMTPSender and by test doubles.
type Sender interface {
	Send(ctx context.Context, settings Settings, msg Message) error
}

// SMTPSender dials the configured server per message with mandatory STARTTLS and PLAIN auth.
type SMTPSender struct {
	timeout time.Duration
}

func NewSMTPSender(timeout time.Duration) *SMTPSender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SMTPSender{timeout: timeout}
}

func (s *SMTPSender) Send(ctx context.Context, settings Settings, msg Message) error {
	if err := settings.validate(); err != nil {
		return err
	}

	m := mail.NewMsg()
	if err := m.FromFormat(settings.FromName, settings.FromEmail); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	client, err := mail.NewClient(settings.Host,
		mail.WithPort(settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(settings.Username),
		mail.WithPassword(settings.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(s.timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
