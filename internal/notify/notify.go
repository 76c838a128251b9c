// Package notify delivers error reports after a run.
//
// The SMTP notifier mails the error file as an attachment; the Log notifier
// only records that a report would have been sent and is what the CLI uses
// when email is disabled.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recordpipe/internal/config"
	"recordpipe/internal/failure"
	"recordpipe/internal/logging"
)

// SMTPConfig configures the SMTP notifier.
type SMTPConfig struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
	StartTLS   bool
	// Timeout bounds dialing; defaults to 30s.
	Timeout time.Duration
}

// FromEmail builds an SMTPConfig from the system email settings. A non-empty
// override (the file config's notification_email, comma separated) replaces
// the system recipients.
func FromEmail(e config.Email, override string) SMTPConfig {
	rcpts := e.Recipients
	if list := SplitRecipients(override); len(list) > 0 {
		rcpts = list
	}
	return SMTPConfig{
		Host:       e.SMTPServer,
		Port:       e.SMTPPort,
		Sender:     e.Sender,
		Password:   e.Password,
		Recipients: rcpts,
		StartTLS:   e.StartTLS,
	}
}

// SplitRecipients splits a comma or semicolon separated address list.
func SplitRecipients(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SMTP mails error reports.
type SMTP struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTP validates cfg and returns an SMTP notifier.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	switch {
	case cfg.Host == "" || cfg.Port <= 0:
		return nil, failure.Configuration("email: smtp_server and smtp_port are required")
	case cfg.Sender == "":
		return nil, failure.Configuration("email: sender is required")
	case len(cfg.Recipients) == 0:
		return nil, failure.Configuration("email: no recipients configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{cfg: cfg, now: time.Now}, nil
}

// NotifyErrors mails the error file at location to the configured recipients.
func (s *SMTP) NotifyErrors(ctx context.Context, location string, count int) error {
	attachment, err := os.ReadFile(location)
	if err != nil {
		return fmt.Errorf("notify: read error file: %w", err)
	}
	msg, err := buildMessage(s.cfg.Sender, s.cfg.Recipients, location, count, attachment, s.now())
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send to %s: %w", strings.Join(s.cfg.Recipients, ","), err)
	}
	logging.FromContext(ctx).Info("notify: error report sent",
		"recipients", len(s.cfg.Recipients), "errors", count, "file", filepath.Base(location))
	return nil
}

func (s *SMTP) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	d := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if s.cfg.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("server does not support STARTTLS")
		}
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Password != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Sender, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.Sender); err != nil {
		return err
	}
	for _, r := range s.cfg.Recipients {
		if err := c.Rcpt(r); err != nil {
			return fmt.Errorf("rcpt %s: %w", r, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Subject returns the report subject for the error file at location.
func Subject(location string) string {
	return "Validation error report: " + filepath.Base(location)
}

// buildMessage renders a multipart/mixed message: a plain-text summary and
// the error file as a base64 text/csv attachment.
func buildMessage(from string, to []string, location string, count int, attachment []byte, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	name := filepath.Base(location)
	fmt.Fprintf(text, "%d record(s) in %s failed validation.\r\n", count, strings.TrimPrefix(name, "error_"))
	fmt.Fprintf(text, "The rejected records and their errors are attached as %s.\r\n", name)

	att, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType("text/csv", map[string]string{"name": name})},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(att, attachment); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	hdr := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", Subject(location))},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()})},
	}
	for _, h := range hdr {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// writeBase64Lines writes b base64-encoded in 76-character lines.
func writeBase64Lines(w io.Writer, b []byte) error {
	enc := base64.StdEncoding.EncodeToString(b)
	for len(enc) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", enc[:76]); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", enc)
	return err
}
