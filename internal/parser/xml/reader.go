// Package xmlparser reads XML documents whose repeated elements are records.
//
// A record element is selected by the file config's record_tag (matched at
// any depth; an element nested inside an already-open record is not a new
// record). With no record_tag, the root's direct children are the records.
// Each immediate child element of a record becomes a column holding that
// child's own character data; attributes and deeper descendants are ignored.
// Columns that do not appear in a record are absent from it.
//
// The document is parsed eagerly: the file handle is released before the
// factory returns and Close is a no-op. Record line numbers are 1-based
// element ordinals.
package xmlparser

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"recordpipe/internal/config"
	"recordpipe/internal/datasource"
	"recordpipe/internal/failure"
	"recordpipe/internal/parser"
	"recordpipe/pkg/records"
)

func init() {
	parser.Register("xml", open)
}

func open(ctx context.Context, src datasource.Source, f config.File) (parser.Reader, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	recs, err := Parse(rc, src.Name(), f.RecordTag)
	if err != nil {
		return nil, err
	}
	return &Reader{recs: recs}, nil
}

// Reader replays records parsed up front.
type Reader struct {
	recs []records.Record
	pos  int
}

// Next returns the next record, or io.EOF.
func (r *Reader) Next() (records.Record, error) {
	if r.pos >= len(r.recs) {
		return records.Record{}, io.EOF
	}
	rec := r.recs[r.pos]
	r.pos++
	return rec, nil
}

// Close is a no-op; the document is already fully read.
func (r *Reader) Close() error { return nil }

// Parse decodes the whole document from rd. name is used in errors.
// Non-UTF-8 documents are decoded according to their XML declaration.
func Parse(rd io.Reader, name, recordTag string) ([]records.Record, error) {
	dec := xml.NewDecoder(rd)
	dec.CharsetReader = charsetReader

	var (
		out      []records.Record
		depth    int
		recDepth int // depth of the open record element; 0 when outside
		pairs    [][2]string
		child    string
		text     strings.Builder
		sawRoot  bool
		rootDone bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return nil, failure.Parse(name, se.Line, errors.New(se.Msg))
			}
			return nil, failure.Parse(name, 0, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootDone {
				line, _ := dec.InputPos()
				return nil, failure.Parse(name, line, fmt.Errorf("junk after document element: <%s>", t.Name.Local))
			}
			depth++
			sawRoot = true
			switch {
			case recDepth == 0 && isRecord(t.Name.Local, depth, recordTag):
				recDepth = depth
				pairs = nil
			case recDepth > 0 && depth == recDepth+1:
				child = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, _ := dec.InputPos()
				return nil, failure.Parse(name, line, errors.New("text outside the document element"))
			}
			if recDepth > 0 && depth == recDepth+1 {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case recDepth > 0 && depth == recDepth+1:
				pairs = append(pairs, [2]string{child, text.String()})
			case depth == recDepth:
				out = append(out, records.FromPairs(len(out)+1, pairs))
				recDepth = 0
			}
			depth--
			if depth == 0 {
				rootDone = true
			}
		}
	}
	if !sawRoot {
		return nil, failure.Parse(name, 0, errors.New("no root element"))
	}
	return out, nil
}

func isRecord(local string, depth int, recordTag string) bool {
	if recordTag == "" {
		return depth == 2
	}
	return local == recordTag
}

// charsetReader resolves encodings named in the XML declaration (for example
// ISO-8859-2 or windows-1250) through the IANA registry.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
