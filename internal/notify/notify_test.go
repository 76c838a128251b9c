package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"recordpipe/internal/config"
	"recordpipe/internal/failure"
)

const errorCSV = "id,name,errors\n2,,Missing mandatory column: name\n"

func TestSplitRecipients(t *testing.T) {
	t.Parallel()

	got := SplitRecipients(" a@x.io, b@x.io;;c@x.io ")
	want := []string{"a@x.io", "b@x.io", "c@x.io"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if SplitRecipients("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestFromEmail_Override(t *testing.T) {
	t.Parallel()

	e := config.Email{SMTPServer: "mail", SMTPPort: 25, Sender: "etl@x.io", Recipients: []string{"ops@x.io"}}
	if got := FromEmail(e, "").Recipients; !reflect.DeepEqual(got, []string{"ops@x.io"}) {
		t.Errorf("system recipients: %v", got)
	}
	if got := FromEmail(e, "data@x.io").Recipients; !reflect.DeepEqual(got, []string{"data@x.io"}) {
		t.Errorf("override recipients: %v", got)
	}
}

func TestNewSMTP_Validation(t *testing.T) {
	t.Parallel()

	cases := []SMTPConfig{
		{Port: 25, Sender: "s", Recipients: []string{"r"}},
		{Host: "h", Port: 25, Recipients: []string{"r"}},
		{Host: "h", Port: 25, Sender: "s"},
	}
	for i, cfg := range cases {
		if _, err := NewSMTP(cfg); !errors.Is(err, failure.ErrConfiguration) {
			t.Errorf("case %d: want ConfigurationError, got %v", i, err)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := buildMessage("etl@x.io", []string{"a@x.io", "b@x.io"}, "/out/errors/error_customers.csv", 3, []byte(errorCSV), now)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	text, att := parseMessage(t, raw)
	if !strings.Contains(text, "3 record(s) in customers.csv failed validation") {
		t.Errorf("body = %q", text)
	}
	if att != errorCSV {
		t.Errorf("attachment = %q", att)
	}
}

func TestWriteBase64Lines_Wraps(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	if err := writeBase64Lines(&sb, make([]byte, 200)); err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(sb.String()), "\r\n") {
		if len(line) > 76 {
			t.Fatalf("line too long: %d", len(line))
		}
	}
}

// parseMessage returns the text part and the decoded attachment of raw.
func parseMessage(t *testing.T, raw []byte) (text, attachment string) {
	t.Helper()
	m, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	subj, _ := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	if subj != "Validation error report: error_customers.csv" {
		t.Errorf("subject = %q", subj)
	}
	mt, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/mixed" {
		t.Fatalf("content type %q: %v", mt, err)
	}
	mr := multipart.NewReader(m.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		b, _ := io.ReadAll(p)
		if p.FileName() != "" {
			dec, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(b)), ""))
			if err != nil {
				t.Fatalf("decode attachment: %v", err)
			}
			if p.FileName() != "error_customers.csv" {
				t.Errorf("filename = %q", p.FileName())
			}
			attachment = string(dec)
			continue
		}
		text = string(b)
	}
	return text, attachment
}

type session struct {
	from string
	rcpt []string
	data []byte
}

// fakeSMTP accepts one session on a loopback listener and hands back the
// envelope and DATA it received.
func fakeSMTP(t *testing.T) (addr string, got <-chan session) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan session, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		var s session
		_ = tp.PrintfLine("220 localhost ESMTP test")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
			switch verb {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL":
				s.from = strings.TrimSuffix(strings.TrimPrefix(line[len("MAIL FROM:"):], "<"), ">")
				_ = tp.PrintfLine("250 OK")
			case "RCPT":
				s.rcpt = append(s.rcpt, strings.TrimSuffix(strings.TrimPrefix(line[len("RCPT TO:"):], "<"), ">"))
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				s.data, _ = tp.ReadDotBytes()
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				ch <- s
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), ch
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}

func TestSMTP_NotifyErrors(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "error_customers.csv")
	if err := os.WriteFile(p, []byte(errorCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	addr, got := fakeSMTP(t)
	host, port := splitAddr(t, addr)

	n, err := NewSMTP(SMTPConfig{Host: host, Port: port, Sender: "etl@x.io", Recipients: []string{"ops@x.io", "data@x.io"}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.NotifyErrors(ctx, p, 1); err != nil {
		t.Fatalf("NotifyErrors: %v", err)
	}

	s := <-got
	if s.from != "etl@x.io" || !reflect.DeepEqual(s.rcpt, []string{"ops@x.io", "data@x.io"}) {
		t.Fatalf("envelope = %+v", s)
	}
	_, att := parseMessage(t, s.data)
	if att != errorCSV {
		t.Fatalf("attachment = %q", att)
	}
}

func TestSMTP_StartTLSUnsupported(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "error_x.csv")
	if err := os.WriteFile(p, []byte(errorCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	addr, _ := fakeSMTP(t)
	host, port := splitAddr(t, addr)
	n, err := NewSMTP(SMTPConfig{Host: host, Port: port, Sender: "s@x.io", Recipients: []string{"r@x.io"}, StartTLS: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.NotifyErrors(context.Background(), p, 1); err == nil || !strings.Contains(err.Error(), "STARTTLS") {
		t.Fatalf("want STARTTLS error, got %v", err)
	}
}

func TestSMTP_MissingErrorFile(t *testing.T) {
	t.Parallel()

	n, err := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: 1, Sender: "s", Recipients: []string{"r"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.NotifyErrors(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), 1); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}

func TestLog_NotifyErrors(t *testing.T) {
	t.Parallel()

	if err := (Log{}).NotifyErrors(context.Background(), "error_x.csv", 2); err != nil {
		t.Fatal(err)
	}
}
