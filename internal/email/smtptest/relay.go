// Package smtptest provides a loopback SMTP relay that records submissions.
package smtptest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Message is one accepted submission.
type Message struct {
	From     string
	To       []string
	Username string
	Data     []byte
}

// Relay is an in-process SMTP server requiring PLAIN authentication.
type Relay struct {
	Host string
	Port int

	username string
	password string
	server   *smtp.Server

	mu          sync.Mutex
	connections int
	messages    []Message
	rejectData  error
}

// Start listens on a loopback port and serves until the test ends.
func Start(tb testing.TB, username, password string) *Relay {
	tb.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("smtptest: listen: %v", err)
	}

	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)

	r := &Relay{
		Host:     host,
		Port:     port,
		username: username,
		password: password,
	}

	s := smtp.NewServer(r)
	s.Domain = "localhost"
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.MaxMessageBytes = 1024 * 1024
	s.AllowInsecureAuth = true
	r.server = s

	go func() {
		_ = s.Serve(l)
	}()
	tb.Cleanup(func() { _ = s.Close() })

	return r
}

// RejectData makes every following DATA command fail with err.
func (r *Relay) RejectData(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectData = err
}

// Connections returns how many sessions have been opened.
func (r *Relay) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections
}

// Messages returns a copy of the accepted submissions.
func (r *Relay) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// NewSession implements smtp.Backend.
func (r *Relay) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	r.mu.Lock()
	r.connections++
	r.mu.Unlock()
	return &session{relay: r}, nil
}

func (r *Relay) accept(m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectData != nil {
		return r.rejectData
	}
	r.messages = append(r.messages, m)
	return nil
}

type session struct {
	relay    *Relay
	username string
	from     string
	to       []string
}

var _ smtp.AuthSession = (*session)(nil)

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, fmt.Errorf("smtptest: unsupported mechanism %s", mech)
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.relay.username || password != s.relay.password {
			return smtp.ErrAuthFailed
		}
		s.username = username
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.username == "" {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	err := s.relay.accept(Message{
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Username: s.username,
		Data:     buf.Bytes(),
	})
	var smtpErr *smtp.SMTPError
	if err != nil && !errors.As(err, &smtpErr) {
		return &smtp.SMTPError{Code: 554, EnhancedCode: smtp.EnhancedCode{5, 6, 0}, Message: err.Error()}
	}
	return err
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}
