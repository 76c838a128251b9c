package httpds

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"recordpipe/internal/failure"
)

// IsURL reports whether input names an http or https resource.
func IsURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Source reads one remote file. Each Open issues a fresh GET, so a Source can
// be read twice (the flag-all duplicate pass does).
type Source struct {
	client *Client
	url    string
}

// NewSource returns a Source for url fetched with client.
func NewSource(client *Client, url string) *Source {
	return &Source{client: client, url: url}
}

// Name returns the URL.
func (s *Source) Name() string { return s.url }

// Open fetches the resource. 404 and 410 map to a FileNotFoundError; any other
// non-2xx status is an error naming the status.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, failure.FileNotFound(s.url, fmt.Errorf("http status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("httpds: GET %s: status %d", s.url, resp.StatusCode)
	}
	return resp.Body, nil
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// FileName derives a local file name for a remote input, used to name its
// outputs. The last path segment wins ("…/customers.csv" → "customers.csv").
// Without one, the cleaned query string is used, and failing that a SHA-1 of
// the whole URL.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return hashString(rawURL)
	}
	if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
		return base
	}
	if q := strings.Trim(nonAlnum.ReplaceAllString(u.RawQuery, "_"), "_"); q != "" {
		return q
	}
	return hashString(rawURL)
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}
