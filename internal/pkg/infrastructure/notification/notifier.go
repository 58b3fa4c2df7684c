// Package notification implements the Notifier collaborator: a small
// SMTP sender used to tell recipients that an action fired. It builds
// the MIME envelope with github.com/emersion/go-message/mail and hands
// the finished bytes to stdlib net/smtp for delivery.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
)

const sendTimeout = 10 * time.Second

// Config is the SMTP relay configuration: localhost:25,
// no auth, by default.
type Config struct {
	Host string
	Port int
	From string
}

func DefaultConfig() Config {
	return Config{Host: "localhost", Port: 25, From: "eplumber@localhost"}
}

// Notifier is the narrow interface the rest of the application depends
// on, so the dispatcher and orchestrator can be tested against a fake
// without a real SMTP relay.
type Notifier interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// SMTPNotifier sends plain-text notifications over SMTP. Send is a
// silent no-op when recipients is empty, since the recipients list
// itself is optional configuration.
type SMTPNotifier struct {
	cfg Config
	log zerolog.Logger
}

func NewSMTPNotifier(cfg Config, log zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, log: log}
}

func (n *SMTPNotifier) Send(ctx context.Context, subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	msg, err := compose(n.cfg.From, recipients, subject, body)
	if err != nil {
		return fmt.Errorf("compose notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := deliver(ctx, n.cfg, recipients, msg); err != nil {
		n.log.Error().Err(err).Strs("recipients", recipients).Str("subject", subject).Msg("notification delivery failed")
		return err
	}
	return nil
}

// compose builds a single-part text/plain RFC 5322 message.
func compose(from string, recipients []string, subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(subject)

	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", from, err)
	}
	h.SetAddressList("From", []*mail.Address{fromAddr})

	toAddrs := make([]*mail.Address, 0, len(recipients))
	for _, r := range recipients {
		addr, err := mail.ParseAddress(r)
		if err != nil {
			return nil, fmt.Errorf("parse recipient %q: %w", r, err)
		}
		toAddrs = append(toAddrs, addr)
	}
	h.SetAddressList("To", toAddrs)

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}

	var ph mail.InlineHeader
	ph.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := pw.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("close text part: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}

	return buf.Bytes(), nil
}

// deliver opens one ephemeral connection to the relay and sends msg to
// every recipient. No AUTH, no TLS: a bare local relay is assumed.
func deliver(ctx context.Context, cfg Config, recipients []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}

	return client.Quit()
}

// BuildActionBody renders the notification body for a fired action: the
// rule name, a timestamp, and a PASS/FAIL line per test.
func BuildActionBody(ruleName string, firedAt time.Time, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rule %q fired at %s\n\n", ruleName, firedAt.Format(time.RFC3339))
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
