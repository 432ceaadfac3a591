package main

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenmail/tokenmail/internal/config"
	"github.com/tokenmail/tokenmail/internal/email/smtptest"
	"github.com/tokenmail/tokenmail/internal/notifier"
)

func setMailEnv(t *testing.T, relay *smtptest.Relay) {
	t.Helper()
	t.Setenv(config.EnvMailUsername, "bot@example.com")
	t.Setenv(config.EnvMailPassword, "secret")
	t.Setenv(config.EnvMailTo, "ops@example.com")
	t.Setenv(config.EnvMailHost, relay.Host)
	t.Setenv(config.EnvMailPort, strconv.Itoa(relay.Port))
	t.Setenv(config.EnvMailProvider, "")
	t.Setenv(config.EnvLogLevel, "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_SendsAttachment(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	setMailEnv(t, relay)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(notifier.AttachmentFile, []byte("abc123"), 0o600))

	out, err := execute(t)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(out, notifier.SuccessLine+"\n"))
	require.Len(t, relay.Messages(), 1)
	assert.Equal(t, []string{"ops@example.com"}, relay.Messages()[0].To)
}

func TestRoot_MissingRecipient(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	setMailEnv(t, relay)
	t.Setenv(config.EnvMailTo, "")
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(notifier.AttachmentFile, []byte("abc123"), 0o600))

	out, err := execute(t, "send")
	require.ErrorIs(t, err, config.ErrMissingConfiguration)
	assert.Empty(t, out)
	assert.Zero(t, relay.Connections())
}

func TestRoot_MissingAttachment(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	setMailEnv(t, relay)
	t.Chdir(t.TempDir())

	_, err := execute(t)
	require.ErrorIs(t, err, notifier.ErrAttachmentNotFound)
	assert.Zero(t, relay.Connections())
	assert.Empty(t, relay.Messages())
}

func TestRoot_Dump(t *testing.T) {
	relay := smtptest.Start(t, "bot@example.com", "secret")
	setMailEnv(t, relay)
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(notifier.AttachmentFile, []byte("abc123"), 0o600))

	out, err := execute(t, "--dump")
	require.NoError(t, err)

	assert.Contains(t, out, "ops@example.com")
	assert.Contains(t, out, "jwt.txt")
	assert.Zero(t, relay.Connections())
}

func TestGenerate_WritesToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	t.Setenv(config.EnvApplicationID, "app-123")
	t.Setenv(config.EnvPrivateKey, string(keyPEM))
	t.Setenv(config.EnvSpreadsheetID, "")
	t.Setenv(config.EnvServiceAccount, "")
	t.Setenv(config.EnvLogLevel, "error")
	t.Chdir(t.TempDir())

	out, err := execute(t, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, notifier.AttachmentFile)

	data, err := os.ReadFile(notifier.AttachmentFile)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "."))
}

func TestGenerate_MissingKey(t *testing.T) {
	t.Setenv(config.EnvApplicationID, "app-123")
	t.Setenv(config.EnvPrivateKey, "")
	t.Chdir(t.TempDir())

	_, err := execute(t, "generate")
	assert.ErrorIs(t, err, config.ErrMissingConfiguration)

	_, statErr := os.Stat(notifier.AttachmentFile)
	assert.True(t, os.IsNotExist(statErr))
}
