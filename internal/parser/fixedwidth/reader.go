// Package fixedwidth reads positional text files, where every column occupies
// a fixed character range on each line.
//
// Ranges come from the declared columns (start+width, or position as a
// half-open [start, end) pair). Offsets count characters, not bytes. Values
// are trimmed of the space padding that fixed-width producers add.
//
// Registered kinds: fixed_width, fixed, dat.
package fixedwidth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"recordpipe/internal/config"
	"recordpipe/internal/datasource"
	"recordpipe/internal/failure"
	"recordpipe/internal/parser"
	"recordpipe/pkg/records"
)

const maxLine = 4 << 20

func init() {
	for _, k := range []string{"fixed_width", "fixed", "dat"} {
		parser.Register(k, open)
	}
}

func open(ctx context.Context, src datasource.Source, f config.File) (parser.Reader, error) {
	layout, err := Compile(f)
	if err != nil {
		return nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return NewReader(rc, src.Name(), layout, f.Options.Bool("strict_width", false)), nil
}

// Field is one column's placement.
type Field struct {
	Name  string
	Start int // 0-based rune offset
	Width int
}

// Layout is the ordered set of fields cut from every line.
type Layout []Field

// Compile derives the Layout from the declared columns. Columns without a
// placement are skipped; a config with none at all is a ConfigurationError.
func Compile(f config.File) (Layout, error) {
	var out Layout
	for _, c := range f.Columns {
		start, width, ok := c.Span()
		if !ok {
			continue
		}
		if start < 0 {
			return nil, failure.Configuration("column %q: negative start %d", c.Name, start)
		}
		out = append(out, Field{Name: c.Name, Start: start, Width: width})
	}
	if len(out) == 0 {
		return nil, failure.Configuration("fixed-width file requires column positions")
	}
	return out, nil
}

// End returns the rune offset just past the right-most field.
func (l Layout) End() int {
	end := 0
	for _, f := range l {
		if e := f.Start + f.Width; e > end {
			end = e
		}
	}
	return end
}

// Names returns the field names in declaration order.
func (l Layout) Names() []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = f.Name
	}
	return out
}

// Overlaps reports pairs of fields that share characters. Overlap is legal
// (some feeds expose a composite key and its parts) but usually a typo.
func (l Layout) Overlaps() [][2]string {
	sorted := append(Layout(nil), l...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	var out [][2]string
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if sorted[i].Start < prev.Start+prev.Width {
			out = append(out, [2]string{prev.Name, sorted[i].Name})
		}
	}
	return out
}

// Cut extracts the trimmed field values from line. Fields lying past the end
// of a short line are empty; short reports whether that happened.
func (l Layout) Cut(line string) (values []string, short bool) {
	runes := []rune(line)
	values = make([]string, len(l))
	for i, f := range l {
		if f.Start >= len(runes) {
			short = true
			continue
		}
		end := f.Start + f.Width
		if end > len(runes) {
			end = len(runes)
			short = true
		}
		values[i] = strings.TrimSpace(string(runes[f.Start:end]))
	}
	return values, short
}

// Reader yields one record per non-blank line.
type Reader struct {
	name   string
	src    io.Closer
	sc     *bufio.Scanner
	layout Layout
	names  []string
	strict bool
	line   int
	closed bool
}

// NewReader wraps rc. With strict set, a line too short for the layout is a
// ParseError instead of yielding empty trailing fields.
func NewReader(rc io.ReadCloser, name string, layout Layout, strict bool) *Reader {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{
		name:   name,
		src:    rc,
		sc:     sc,
		layout: layout,
		names:  layout.Names(),
		strict: strict,
	}
}

// Next returns the next record, or io.EOF.
func (r *Reader) Next() (records.Record, error) {
	if r.closed {
		return records.Record{}, io.EOF
	}
	for r.sc.Scan() {
		r.line++
		text := strings.TrimRight(r.sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		values, short := r.layout.Cut(text)
		if short && r.strict {
			return records.Record{}, failure.Parse(r.name, r.line,
				fmt.Errorf("line has %d characters, layout needs %d", len([]rune(text)), r.layout.End()))
		}
		return records.New(r.line, r.names, values), nil
	}
	if err := r.sc.Err(); err != nil {
		return records.Record{}, failure.Parse(r.name, r.line+1, err)
	}
	return records.Record{}, io.EOF
}

// Close releases the underlying file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.src.Close()
}
