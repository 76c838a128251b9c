// Package sink writes validation outcomes to the clean and error files.
//
// Each Sink writes CSV into "<path>.part" and only renames it to its final
// name on Close, after flushing and syncing. A consumer watching the output
// directory therefore never sees a partially written file under the final
// name. Abort discards the temporary file.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"recordpipe/internal/failure"
	"recordpipe/pkg/records"
)

// ErrorsColumn is the trailing column of the error file.
const ErrorsColumn = "errors"

// ErrorSeparator joins a record's error messages in the error file.
const ErrorSeparator = "; "

const tempSuffix = ".part"

// Sink is an append-only CSV writer for one output file. It is not safe for
// concurrent use.
type Sink struct {
	path       string
	tmp        string
	f          *os.File
	w          *csv.Writer
	cols       []string
	withErrors bool
	n          int
	done       bool
}

// Create opens a sink at path writing cols (plus the errors column when
// withErrors is set). Parent directories are created as needed.
func Create(path string, cols []string, withErrors bool, comma rune) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, failure.SinkWrite(path, err)
	}
	tmp := path + tempSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return nil, failure.SinkWrite(path, err)
	}
	w := csv.NewWriter(f)
	if comma != 0 {
		w.Comma = comma
	}
	s := &Sink{
		path:       path,
		tmp:        tmp,
		f:          f,
		w:          w,
		cols:       append([]string(nil), cols...),
		withErrors: withErrors,
	}

	header := s.cols
	if withErrors {
		header = append(append([]string(nil), s.cols...), ErrorsColumn)
	}
	if err := w.Write(header); err != nil {
		_ = s.Abort()
		return nil, failure.SinkWrite(path, err)
	}
	return s, nil
}

// Path returns the final path of the output file.
func (s *Sink) Path() string { return s.path }

// Count returns the number of records written.
func (s *Sink) Count() int { return s.n }

// Write appends o. The record's values are projected onto the sink columns;
// for an error sink the messages are appended as one joined field.
func (s *Sink) Write(o records.Outcome) error {
	if s.done {
		return failure.SinkWrite(s.path, errors.New("write after close"))
	}
	row := o.Record.Project(s.cols)
	if s.withErrors {
		row = append(row, strings.Join(o.Errors, ErrorSeparator))
	}
	if err := s.w.Write(row); err != nil {
		return failure.SinkWrite(s.path, err)
	}
	s.n++
	return nil
}

// Close flushes, syncs and publishes the file under its final name. Calling
// Close after Close or Abort is a no-op.
func (s *Sink) Close() error {
	if s.done {
		return nil
	}
	if err := s.finish(); err != nil {
		return err
	}
	return s.publish()
}

// finish flushes, syncs and closes the temporary file without publishing it.
// On failure the temporary file is removed.
func (s *Sink) finish() error {
	s.done = true

	s.w.Flush()
	err := s.w.Error()
	if err == nil {
		err = s.f.Sync()
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.tmp)
		return failure.SinkWrite(s.path, err)
	}
	return nil
}

// publish renames a finished temporary file to the final path.
func (s *Sink) publish() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		_ = os.Remove(s.tmp)
		return failure.SinkWrite(s.path, err)
	}
	return nil
}

// unpublish removes a file published by this sink.
func (s *Sink) unpublish() { _ = os.Remove(s.path) }

// Abort closes and removes the temporary file without publishing it.
func (s *Sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.f.Close()
	if err := os.Remove(s.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sink: abort %s: %w", s.path, err)
	}
	return nil
}
