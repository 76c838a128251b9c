package csv

import (
	"bytes"
	"io"
)

// rewriter replaces every occurrence of pat with repl in a byte stream
// without buffering the whole input. Up to len(pat)-1 unmatched bytes are
// held back between reads so that matches spanning two chunks are found.
//
// It exists for feeds with one known, systematic quoting defect that would
// otherwise make encoding/csv reject the file (options scrub_from/scrub_to).
type rewriter struct {
	src     io.Reader
	pat     []byte
	repl    []byte
	chunk   []byte
	pending []byte
	out     bytes.Buffer
	eof     bool
}

func newRewriter(r io.Reader, pat, repl []byte) *rewriter {
	return &rewriter{src: r, pat: pat, repl: repl, chunk: make([]byte, 64*1024)}
}

func (w *rewriter) Read(p []byte) (int, error) {
	for w.out.Len() == 0 {
		if w.eof {
			return 0, io.EOF
		}
		n, err := w.src.Read(w.chunk)
		if err != nil && err != io.EOF {
			return 0, err
		}
		w.pending = append(w.pending, w.chunk[:n]...)
		for {
			i := bytes.Index(w.pending, w.pat)
			if i < 0 {
				break
			}
			w.out.Write(w.pending[:i])
			w.out.Write(w.repl)
			w.pending = w.pending[i+len(w.pat):]
		}
		if err == io.EOF {
			w.out.Write(w.pending)
			w.pending = nil
			w.eof = true
			continue
		}
		if safe := len(w.pending) - (len(w.pat) - 1); safe > 0 {
			w.out.Write(w.pending[:safe])
			w.pending = append([]byte(nil), w.pending[safe:]...)
		}
	}
	return w.out.Read(p)
}
