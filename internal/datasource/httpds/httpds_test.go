package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"recordpipe/internal/failure"
)

func noWait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})
	if c.httpClient.Timeout <= 0 || c.initialBackoff <= 0 || c.maxBackoff <= 0 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if c.maxRetries != 0 {
		t.Fatalf("maxRetries = %d, want 0", c.maxRetries)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok || tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("InsecureSkipVerify not applied to default transport")
	}
}

func TestNewClient_CustomTransportWins(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{TLSClientConfig: &tls.Config{}}
	c := NewClient(Config{Transport: custom, InsecureSkipVerify: true})
	if c.httpClient.Transport != custom {
		t.Fatalf("custom transport not used")
	}
	if custom.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("custom transport must not be modified")
	}
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("X-Token") != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 3, Header: http.Header{"X-Token": {"abc"}}})
	c.wait = noWait

	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 2})
	c.wait = noWait
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error after retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("hits = %d, want 3", got)
	}
}

func TestGet_CanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(Config{MaxRetries: 5})
	c.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return waitContext(ctx, d)
	}
	if _, err := c.Get(ctx, srv.URL); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{5, time.Second},
		{64, time.Second},
	}
	for _, tc := range cases {
		if got := backoff(100*time.Millisecond, tc.retry, time.Second); got != tc.want {
			t.Errorf("backoff(retry=%d) = %v, want %v", tc.retry, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{200: false, 404: false, 429: true, 500: true, 503: true, 599: true} {
		if got := retryable(code); got != want {
			t.Errorf("retryable(%d) = %v", code, got)
		}
	}
}

func TestSource_Open(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers.csv":
			_, _ = io.WriteString(w, "id\n1\n")
		case "/forbidden.csv":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(Config{})

	src := NewSource(c, srv.URL+"/customers.csv")
	for i := 0; i < 2; i++ {
		rc, err := src.Open(context.Background())
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		b, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(b) != "id\n1\n" {
			t.Fatalf("body = %q", b)
		}
	}

	if _, err := NewSource(c, srv.URL+"/absent.csv").Open(context.Background()); !errors.Is(err, failure.ErrFileNotFound) {
		t.Fatalf("want FileNotFoundError, got %v", err)
	}
	if _, err := NewSource(c, srv.URL+"/forbidden.csv").Open(context.Background()); err == nil || errors.Is(err, failure.ErrFileNotFound) {
		t.Fatalf("want plain status error, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	if got := FileName("https://example.com/exports/customers.csv?day=1"); got != "customers.csv" {
		t.Errorf("path segment: got %q", got)
	}
	if got := FileName("https://example.com/?q=orders&day=2"); got != "q_orders_day_2" {
		t.Errorf("query: got %q", got)
	}
	raw := "https://example.com/"
	if got := FileName(raw); got != hashString(raw) || len(got) != 40 {
		t.Errorf("hash fallback: got %q", got)
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	if !IsURL("HTTPS://x/y") || !IsURL("http://x") || IsURL("/data/in.csv") || IsURL("ftp://x") {
		t.Fatalf("IsURL misclassified")
	}
}
