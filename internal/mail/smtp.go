// Package mail implements the email notification channel.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message. Implementations must honor context cancellation as
// far as the underlying transport allows.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers over plain SMTP with optional STARTTLS.
type SMTPMailer struct {
	cfg config.NotificationConfig
}

// NewSMTPMailer constructs a mailer from notification config.
func NewSMTPMailer(cfg config.NotificationConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message, or silently skips when the channel is disabled.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.EmailEnabled {
		return nil
	}
	if msg.To == "" {
		return fmt.Errorf("no recipient specified")
	}

	payload := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.EmailFrom, msg.To, msg.Subject, msg.Body)

	addr := m.cfg.SMTPHost + ":" + strconv.Itoa(m.cfg.SMTPPort)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close()

	// smtp.Client has no context plumbing; drop the connection when the
	// caller's deadline fires so Send does not outlive its budget.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			client.Close()
		case <-done:
		}
	}()

	if m.cfg.SMTPStartTLS {
		tlsConfig := &tls.Config{ServerName: m.cfg.SMTPHost}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if m.cfg.SMTPUser != "" && m.cfg.SMTPPassword != "" {
		auth := smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(m.cfg.EmailFrom); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("set recipient %s: %w", msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("initiate data transfer: %w", err)
	}
	if _, err := w.Write([]byte(payload)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data transfer: %w", err)
	}

	return client.Quit()
}
