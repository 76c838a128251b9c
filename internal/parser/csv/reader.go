// Package csv reads delimited text files (comma, pipe, tab, ...) into records.
//
// The first line names the columns unless the file config sets
// has_header: false, in which case the declared columns are applied by
// position. Values are kept verbatim; validators decide what is acceptable.
//
// Registered kinds: csv, delimited, pipe (delimiter forced to '|').
//
// Options (file config "options"):
//
//	allow_ragged  pad short rows with "" and drop extra fields instead of failing
//	lazy_quotes   tolerate stray quotes inside unquoted fields
//	scrub_from    byte sequence rewritten to scrub_to before parsing
//	trim          strip surrounding white space from every value
//	strict_columns  reject a header naming columns the file config does not declare
//
// Undeclared header columns are otherwise logged and left out of both output
// files, which carry the declared columns only.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"recordpipe/internal/config"
	"recordpipe/internal/datasource"
	"recordpipe/internal/failure"
	"recordpipe/internal/logging"
	"recordpipe/internal/parser"
	"recordpipe/pkg/records"
)

func init() {
	parser.Register("csv", factory(0))
	parser.Register("delimited", factory(0))
	parser.Register("pipe", factory('|'))
}

func factory(force rune) parser.Factory {
	return func(ctx context.Context, src datasource.Source, f config.File) (parser.Reader, error) {
		comma := force
		if comma == 0 {
			comma = ','
			if f.Delimiter != "" {
				comma = []rune(f.Delimiter)[0]
			}
		}
		rc, err := src.Open(ctx)
		if err != nil {
			return nil, err
		}
		r, err := NewReader(rc, src.Name(), f, comma)
		if err != nil {
			_ = rc.Close()
			return nil, err
		}
		if extra := r.Undeclared(); len(extra) > 0 {
			logging.FromContext(ctx).Warn("csv: header has undeclared columns; they are not written to the outputs",
				"file", src.Name(), "columns", strings.Join(extra, ","))
		}
		return r, nil
	}
}

// Reader streams records from delimited text. It is not safe for concurrent
// use.
type Reader struct {
	name   string
	src    io.Closer
	cr     *csv.Reader
	header []string
	extra  []string
	ragged bool
	trim   bool
	eof    bool
	closed bool
}

// NewReader wraps rc. The header (if any) is consumed immediately so header
// problems surface at construction. On error the caller still owns rc.
func NewReader(rc io.ReadCloser, name string, f config.File, comma rune) (*Reader, error) {
	switch comma {
	case '"', '\r', '\n', 0xFFFD:
		return nil, failure.Configuration("invalid delimiter %q", comma)
	}

	var in io.Reader = rc
	if from := f.Options.String("scrub_from", ""); from != "" {
		in = newRewriter(in, []byte(from), []byte(f.Options.String("scrub_to", "")))
	}
	cr := csv.NewReader(in)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = f.Options.Bool("lazy_quotes", false)

	r := &Reader{
		name:   name,
		src:    rc,
		cr:     cr,
		ragged: f.Options.Bool("allow_ragged", false),
		trim:   f.Options.Bool("trim", false),
	}

	if !f.Header() {
		r.header = f.ColumnNames()
		return r, nil
	}
	h, err := cr.Read()
	switch {
	case errors.Is(err, io.EOF):
		// Empty file: no header, no records.
		r.header = f.ColumnNames()
		r.eof = true
	case err != nil:
		return nil, r.wrap(err)
	default:
		r.header = NormalizeHeaders(h)
	}

	if len(f.Columns) > 0 {
		r.extra = undeclared(r.header, f.ColumnNames())
		if len(r.extra) > 0 && f.Options.Bool("strict_columns", false) {
			return nil, failure.Parse(name, 1,
				fmt.Errorf("undeclared columns in header: %s", strings.Join(r.extra, ", ")))
		}
	}
	return r, nil
}

// Undeclared returns header columns the file config does not declare.
func (r *Reader) Undeclared() []string { return append([]string(nil), r.extra...) }

func undeclared(header, declared []string) []string {
	known := make(map[string]struct{}, len(declared))
	for _, c := range declared {
		known[c] = struct{}{}
	}
	var out []string
	for _, h := range header {
		if _, ok := known[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// Header returns the column names applied to each row.
func (r *Reader) Header() []string { return append([]string(nil), r.header...) }

// Next returns the next record, or io.EOF. A row whose field count differs
// from the header is a ParseError unless allow_ragged is set.
func (r *Reader) Next() (records.Record, error) {
	if r.eof || r.closed {
		return records.Record{}, io.EOF
	}
	row, err := r.cr.Read()
	if errors.Is(err, io.EOF) {
		r.eof = true
		return records.Record{}, io.EOF
	}
	if err != nil {
		return records.Record{}, r.wrap(err)
	}
	line, _ := r.cr.FieldPos(0)
	if len(row) != len(r.header) && !r.ragged {
		return records.Record{}, failure.Parse(r.name, line,
			fmt.Errorf("wrong number of fields: expected %d, got %d", len(r.header), len(row)))
	}
	if r.trim {
		for i, v := range row {
			row[i] = strings.TrimSpace(v)
		}
	}
	return records.New(line, r.header, row), nil
}

// Close releases the underlying file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.src.Close()
}

func (r *Reader) wrap(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return failure.Parse(r.name, pe.Line, pe.Err)
	}
	return failure.AtStage(failure.StageReading, fmt.Errorf("%s: %w", r.name, err))
}
