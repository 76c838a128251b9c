// Package failure defines the fatal error taxonomy of a pipeline run.
//
// Per-record validation problems are not errors in this sense: they are data,
// captured in the error sink. Everything here aborts the current file's run.
// Callers classify with errors.Is against the sentinel kinds, or errors.As to
// *Error for the stage, path and line.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind sentinels. An *Error matches its kind via errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrFileNotFound  = errors.New("file not found")
	ErrParse         = errors.New("parse error")
	ErrSinkWrite     = errors.New("sink write error")
)

// Stage names the pipeline phase in which a fatal error occurred.
type Stage string

const (
	StageConfiguring Stage = "configuring"
	StageReading     Stage = "reading"
	StageValidating  Stage = "validating"
	StageWriting     Stage = "writing"
	StageNotifying   Stage = "notifying"
	StageLoading     Stage = "loading"
)

// Error is a classified fatal pipeline error.
type Error struct {
	Kind  error // one of the Err* sentinels, or nil for unclassified stage errors
	Stage Stage
	Path  string // offending file, when known
	Line  int    // 1-based line, when known
	Err   error  // underlying cause
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(string(e.Stage))
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return strings.TrimSuffix(b.String(), ": ")
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Configuration returns a ConfigurationError.
func Configuration(format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Stage: StageConfiguring, Err: fmt.Errorf(format, args...)}
}

// FileNotFound returns a FileNotFoundError for path.
func FileNotFound(path string, cause error) error {
	return &Error{Kind: ErrFileNotFound, Stage: StageReading, Path: path, Err: cause}
}

// Parse returns a ParseError located at path:line (line may be 0).
func Parse(path string, line int, cause error) error {
	return &Error{Kind: ErrParse, Stage: StageReading, Path: path, Line: line, Err: cause}
}

// SinkWrite returns a SinkWriteError for the sink at path.
func SinkWrite(path string, cause error) error {
	return &Error{Kind: ErrSinkWrite, Stage: StageWriting, Path: path, Err: cause}
}

// AtStage wraps err with stage unless it already carries one.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Stage != "" {
		return err
	}
	return &Error{Stage: stage, Err: err}
}

// StageOf reports the stage recorded on err, or "" if none.
func StageOf(err error) Stage {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return ""
}
