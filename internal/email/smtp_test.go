package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenmail/tokenmail/internal/email/smtptest"
)

func testMessage() Message {
	return Message{
		To:       "ops@example.com",
		Subject:  "[자동발송] JWT 토큰",
		TextBody: "토큰을 첨부합니다.",
		Attachments: []Attachment{
			{Filename: "jwt.txt", Data: []byte("abc123")},
		},
	}
}

func newRelaySender(t *testing.T, relay *smtptest.Relay, password string) *SMTPSender {
	t.Helper()
	s, err := NewSMTPSender(SMTPConfig{
		Host:     relay.Host,
		Port:     relay.Port,
		Username: "bot@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return s
}

func TestNewSMTPSender_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
	}{
		{name: "no host", cfg: SMTPConfig{Port: 587, Username: "u"}},
		{name: "no port", cfg: SMTPConfig{Host: "smtp.example.com", Username: "u"}},
		{name: "no username", cfg: SMTPConfig{Host: "smtp.example.com", Port: 587}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPSender(tt.cfg)
			assert.Error(t, err)
		})
	}

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.gmail.com", Port: 587, Username: "bot@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com:587", s.Addr())
	assert.Implements(t, (*Sender)(nil), s)
}

func TestSMTPSender_Send(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	s := newRelaySender(t, relay, "secret")

	require.NoError(t, s.Send(context.Background(), testMessage()))

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "bot@example.com", msgs[0].From)
	assert.Equal(t, []string{"ops@example.com"}, msgs[0].To)
	assert.Equal(t, "bot@example.com", msgs[0].Username)

	env, err := enmime.ReadEnvelope(bytes.NewReader(msgs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, "[자동발송] JWT 토큰", env.GetHeader("Subject"))
	assert.Contains(t, env.Text, "토큰을 첨부합니다.")

	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "jwt.txt", env.Attachments[0].FileName)
	assert.Equal(t, DefaultAttachmentType, env.Attachments[0].ContentType)
	assert.Equal(t, []byte("abc123"), env.Attachments[0].Content)
}

func TestSMTPSender_SendWithDisplayName(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	s, err := NewSMTPSender(SMTPConfig{
		Host:       relay.Host,
		Port:       relay.Port,
		Username:   "bot@example.com",
		Password:   "secret",
		SenderName: "Token Bot",
	})
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), testMessage()))

	msgs := relay.Messages()
	require.Len(t, msgs, 1)
	env, err := enmime.ReadEnvelope(bytes.NewReader(msgs[0].Data))
	require.NoError(t, err)
	assert.Contains(t, env.GetHeader("From"), "Token Bot")
}

func TestSMTPSender_AuthRejected(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	s := newRelaySender(t, relay, "wrong")

	err := s.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Empty(t, relay.Messages())
}

func TestSMTPSender_DataRejected(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	relay.RejectData(errors.New("mailbox full"))
	s := newRelaySender(t, relay, "secret")

	err := s.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox full")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	s := newRelaySender(t, relay, "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, testMessage())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, relay.Connections())
}

func TestSMTPSender_Unreachable(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, Username: "bot@example.com"})
	require.NoError(t, err)

	err = s.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open session")
}
