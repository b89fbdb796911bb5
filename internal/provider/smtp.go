package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/notifyhub/dispatch/internal/domain"
)

// SMTPProvider delivers email payloads {to, subject, body [, from]}
// over SMTP. UseTLS=true upgrades a plain connection with STARTTLS
// (port 587 convention); UseTLS=false dials implicit TLS on the
// configured port.
type SMTPProvider struct {
	name     string
	host     string
	port     int
	username string
	password string
	from     string
	useTLS   bool
	timeout  time.Duration
}

func NewSMTPProvider(host string, port int, username, password, from string, useTLS bool, timeout time.Duration) *SMTPProvider {
	if from == "" {
		from = username
	}
	return &SMTPProvider{
		name:     "smtp",
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		useTLS:   useTLS,
		timeout:  timeout,
	}
}

// NewGmailProvider returns an SMTPProvider preconfigured for Gmail
// app-password authentication.
func NewGmailProvider(email, appPassword string, timeout time.Duration) *SMTPProvider {
	p := NewSMTPProvider("smtp.gmail.com", 587, email, appPassword, email, true, timeout)
	p.name = "gmail"
	return p
}

// NewOutlookProvider returns an SMTPProvider preconfigured for Outlook.
func NewOutlookProvider(email, password string, timeout time.Duration) *SMTPProvider {
	p := NewSMTPProvider("smtp-mail.outlook.com", 587, email, password, email, true, timeout)
	p.name = "outlook"
	return p
}

func (p *SMTPProvider) Name() string { return p.name }

func (p *SMTPProvider) Send(ctx context.Context, n *domain.Notification) (*Outcome, error) {
	payload, err := decodePayload(n)
	if err != nil {
		return failureOutcome(err.Error(), false), nil
	}

	to := payloadString(payload, "to")
	if to == "" {
		return failureOutcome(`missing "to" field in payload`, false), nil
	}
	body := payloadString(payload, "body")
	if body == "" {
		return failureOutcome(`missing "body" field in payload`, false), nil
	}
	subject := payloadString(payload, "subject")
	if subject == "" {
		subject = "Notification"
	}
	from := payloadString(payload, "from")
	if from == "" {
		from = p.from
	}

	msg := buildMIMEMessage(from, to, subject, body)

	// The SMTP conversation honours the worker's deadline through the
	// connection deadline; smtp.Client itself is not ctx-aware.
	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := p.deliver(to, from, msg, deadline); err != nil {
		return nil, fmt.Errorf("smtp send: %w", err)
	}

	return successOutcome(
		fmt.Sprintf("email sent via SMTP to %s", to),
		map[string]any{"to": to, "subject": subject},
	), nil
}

func (p *SMTPProvider) deliver(to, from string, msg []byte, deadline time.Time) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	tlsCfg := &tls.Config{ServerName: p.host}

	dialer := &net.Dialer{Deadline: deadline}

	var client *smtp.Client
	if p.useTLS {
		conn, err := dialer.Dial("tcp", addr)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		_ = conn.SetDeadline(deadline)
		client, err = smtp.NewClient(conn, p.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client: %w", err)
		}
		if err = client.StartTLS(tlsCfg); err != nil {
			client.Close()
			return fmt.Errorf("starttls: %w", err)
		}
	} else {
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("tls dial: %w", err)
		}
		_ = conn.SetDeadline(deadline)
		client, err = smtp.NewClient(conn, p.host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp client: %w", err)
		}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", p.username, p.password, p.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

// buildMIMEMessage assembles a multipart/alternative message with a
// single HTML part, matching the wire shape receivers expect.
func buildMIMEMessage(from, to, subject, htmlBody string) []byte {
	const boundary = "notify-alt-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

var _ Provider = (*SMTPProvider)(nil)
