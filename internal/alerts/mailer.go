package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/sudo-init-do/greenvault/internal/config"
)

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer picks the provider: MAIL_PROVIDER=plunk (or a Plunk key with no
// provider set) uses Plunk, a complete SMTP config uses SMTP, otherwise mail
// is only logged.
func NewMailer(cfg config.MailConfig) (Sender, error) {
	switch {
	case cfg.Provider == "plunk" || (cfg.Provider == "" && cfg.PlunkAPIKey != ""):
		return NewPlunkSender(cfg)
	case cfg.Provider == "log":
		return LogSender{}, nil
	case cfg.SMTPHost != "":
		if cfg.SMTPPort == "" || cfg.SMTPUsername == "" || cfg.SMTPPassword == "" || cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("smtp not configured: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM (or set MAIL_PROVIDER=plunk)")
		}
		return &SMTPSender{cfg: cfg}, nil
	}
	return LogSender{}, nil
}

// LogSender writes the email to the log instead of sending it.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, _ string) error {
	slog.Default().InfoContext(ctx, "email not sent, no provider configured",
		"module", "alerts",
		"operation", "send_email",
		"to", to,
		"subject", subject,
	)
	return nil
}

// SMTPSender sends plain text or HTML mail over implicit TLS.
type SMTPSender struct {
	cfg config.MailConfig
}

func buildMessage(from, to, replyTo, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if replyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", replyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + body + "\r\n")
	return b.String()
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	cfg := s.cfg
	addr := net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort)
	msg := buildMessage(cfg.SMTPFrom, to, cfg.ReplyTo, subject, body)

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: cfg.SMTPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(cfg.SMTPFrom); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
