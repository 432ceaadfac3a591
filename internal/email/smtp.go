package email

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the configuration for the SMTP email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// SenderName is the optional display name placed in the From header.
	SenderName string
}

// SMTPSender implements Sender over an authenticated SMTP submission session.
type SMTPSender struct {
	dialer     *gomail.Dialer
	senderAddr string
	senderName string
}

// NewSMTPSender creates a new SMTPSender. The username doubles as the sender address.
// Port 465 uses implicit TLS; other ports upgrade with STARTTLS when the server offers it.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp: invalid port %d", cfg.Port)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("smtp: username is required")
	}

	return &SMTPSender{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		senderAddr: cfg.Username,
		senderName: cfg.SenderName,
	}, nil
}

// Send opens a session, submits msg and closes the session.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := s.compose(msg)

	sc, err := s.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp: failed to open session with %s:%d: %w", s.dialer.Host, s.dialer.Port, err)
	}
	defer sc.Close()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := gomail.Send(sc, m); err != nil {
		return fmt.Errorf("smtp: failed to send email: %w", err)
	}

	return nil
}

// Addr returns the host:port the sender dials.
func (s *SMTPSender) Addr() string {
	return fmt.Sprintf("%s:%d", s.dialer.Host, s.dialer.Port)
}

func (s *SMTPSender) compose(msg Message) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	if s.senderName != "" {
		m.SetAddressHeader("From", s.senderAddr, s.senderName)
	} else {
		m.SetHeader("From", s.senderAddr)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)

	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {a.contentType()}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}

	return m
}
