package email

import (
	"bytes"
	"fmt"

	"github.com/jhillyerd/enmime"
)

// BuildMIME renders msg as a complete RFC 5322 message from the given sender.
func BuildMIME(from, fromName string, msg Message) ([]byte, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("mime: recipient is required")
	}

	b := enmime.Builder().
		From(fromName, from).
		To("", msg.To).
		Subject(msg.Subject).
		Text([]byte(msg.TextBody))

	for _, a := range msg.Attachments {
		b = b.AddAttachment(a.Data, a.contentType(), a.Filename)
	}

	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("mime: failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("mime: failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}
