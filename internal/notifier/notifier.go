package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tokenmail/tokenmail/internal/config"
	"github.com/tokenmail/tokenmail/internal/email"
	"github.com/tokenmail/tokenmail/internal/logger"
)

// Fixed notification content
const (
	AttachmentFile = "jwt.txt"
	Subject        = "[자동발송] Vonage JWT 토큰 발급 알림"
	Body           = "안녕하세요.\n\n새로 발급된 Vonage JWT 토큰(jwt.txt)을 첨부합니다.\n\n이 메일은 자동으로 발송되었습니다."
	SuccessLine    = "✅ 메일 발송 완료"
)

// Notifier errors
var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrTransport          = errors.New("mail transport failure")
)

// TransportError wraps a failure reported by the mail provider.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// SenderFactory builds the mail sender once the configuration is known to be complete.
type SenderFactory func(ctx context.Context, cfg config.MailConfig) (email.Sender, error)

// Notifier sends the token notification mail.
type Notifier struct {
	newSender SenderFactory
	log       *logger.Logger
	out       io.Writer
}

// New creates a new Notifier. The success line is written to out.
func New(newSender SenderFactory, log *logger.Logger, out io.Writer) *Notifier {
	return &Notifier{
		newSender: newSender,
		log:       log.WithComponent("notifier"),
		out:       out,
	}
}

// Run validates cfg, reads the attachment and submits one message to cfg.To.
// Nothing is dialed unless both the configuration and the attachment are present.
func (n *Notifier) Run(ctx context.Context, cfg config.MailConfig, attachmentPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	msg, err := ComposeMessage(cfg.To, attachmentPath)
	if err != nil {
		return err
	}

	sender, err := n.newSender(ctx, cfg)
	if err != nil {
		return &TransportError{Err: err}
	}

	start := time.Now()
	err = sender.Send(ctx, msg)
	n.log.Delivery(cfg.Provider, cfg.To, len(msg.Attachments[0].Data), time.Since(start), err)
	if err != nil {
		return &TransportError{Err: err}
	}

	if _, err := fmt.Fprintln(n.out, SuccessLine); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	return nil
}

// ComposeMessage builds the fixed notification addressed to recipient with the
// file at attachmentPath attached byte for byte.
func ComposeMessage(recipient, attachmentPath string) (email.Message, error) {
	data, err := os.ReadFile(attachmentPath)
	if err != nil {
		return email.Message{}, fmt.Errorf("%w: %s: %v", ErrAttachmentNotFound, attachmentPath, err)
	}

	return email.Message{
		To:       recipient,
		Subject:  Subject,
		TextBody: Body,
		Attachments: []email.Attachment{{
			Filename:    filepath.Base(attachmentPath),
			ContentType: email.DefaultAttachmentType,
			Data:        data,
		}},
	}, nil
}

// NewSender is the default SenderFactory. It picks the provider named in cfg.
func NewSender(ctx context.Context, cfg config.MailConfig) (email.Sender, error) {
	switch cfg.Provider {
	case config.ProviderGmail:
		return email.NewGmailSender(ctx, email.GmailConfig{
			CredentialsJSON: cfg.GmailCredentialsJSON,
			SenderAddress:   cfg.Username,
		})
	case config.ProviderSMTP, "":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", cfg.Provider)
	}
}
