package email

import "context"

// Sender is the interface that all email providers must implement.
// This abstraction allows swapping the SMTP relay for the Gmail API
// without changing the notifier.
type Sender interface {
	// Send submits one message. It returns once the provider has accepted it.
	Send(ctx context.Context, msg Message) error
}

// Message represents an email message to be sent.
type Message struct {
	To          string // recipient email address
	Subject     string // email subject
	TextBody    string // plain-text body
	Attachments []Attachment
}

// Attachment is a file carried in memory alongside the message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DefaultAttachmentType is used when an Attachment has no ContentType.
const DefaultAttachmentType = "application/octet-stream"

func (a Attachment) contentType() string {
	if a.ContentType == "" {
		return DefaultAttachmentType
	}
	return a.ContentType
}
