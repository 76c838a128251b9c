// Package parser turns an input file into a stream of records.
//
// Each file format is a Reader implementation registered under one or more
// kinds (the file config's file_type). Backends register themselves in init;
// import internal/parser/all to enable every built-in format.
package parser

import (
	"context"
	"sort"
	"strings"
	"sync"

	"recordpipe/internal/config"
	"recordpipe/internal/datasource"
	"recordpipe/internal/datasource/file"
	"recordpipe/internal/datasource/httpds"
	"recordpipe/internal/failure"
	"recordpipe/pkg/records"
)

// Reader yields records from one input file in source order. Next returns
// io.EOF once the input is exhausted. A Reader is single-pass and must be
// closed by its owner.
type Reader interface {
	Next() (records.Record, error)
	Close() error
}

// Factory constructs a Reader over src configured by f. Construction may fail
// with a ConfigurationError, FileNotFoundError or ParseError.
type Factory func(ctx context.Context, src datasource.Source, f config.File) (Reader, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind. Kinds are matched
// case-insensitively.
func Register(kind string, fn Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[strings.ToLower(kind)] = fn
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs the Reader registered for kind over src.
func New(ctx context.Context, kind string, src datasource.Source, f config.File) (Reader, error) {
	regMu.RLock()
	fn, ok := factories[strings.ToLower(strings.TrimSpace(kind))]
	regMu.RUnlock()
	if !ok {
		return nil, failure.Configuration("unsupported file_type=%s", kind)
	}
	return fn(ctx, src, f)
}

// RemoteClient fetches inputs given as http(s) URLs.
var RemoteClient = httpds.NewClient(httpds.Config{MaxRetries: 3})

// SourceFor returns the Source for path: a remote source for http(s) URLs,
// the local file otherwise.
func SourceFor(path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewSource(RemoteClient, path)
	}
	return file.NewLocal(path)
}

// Open constructs the Reader for f.FileType over path (a local file or an
// http(s) URL).
func Open(ctx context.Context, path string, f config.File) (Reader, error) {
	return New(ctx, f.FileType, SourceFor(path), f)
}
