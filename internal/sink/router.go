package sink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"recordpipe/pkg/records"
)

// Paths derives the clean and error file locations for input. The input's
// extension is replaced by ".csv" since both outputs are CSV.
func Paths(processedDir, errorDir, input string) (successPath, errorPath string) {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(processedDir, "clean_"+stem+".csv"),
		filepath.Join(errorDir, "error_"+stem+".csv")
}

// Router sends each outcome to exactly one of two sinks.
type Router struct {
	success *Sink
	errs    *Sink
}

// NewRouter returns a Router over the given sinks.
func NewRouter(success, errs *Sink) *Router {
	return &Router{success: success, errs: errs}
}

// Open creates both sinks for cols. If the second cannot be created the
// first is aborted.
func Open(successPath, errorPath string, cols []string, comma rune) (*Router, error) {
	ok, err := Create(successPath, cols, false, comma)
	if err != nil {
		return nil, err
	}
	bad, err := Create(errorPath, cols, true, comma)
	if err != nil {
		_ = ok.Abort()
		return nil, err
	}
	return NewRouter(ok, bad), nil
}

// Route writes o to the error sink when it carries errors, otherwise to the
// success sink.
func (r *Router) Route(o records.Outcome) error {
	if o.Valid() {
		return r.success.Write(o)
	}
	return r.errs.Write(o)
}

// Counts returns how many records each sink received.
func (r *Router) Counts() (success, errs int) {
	return r.success.Count(), r.errs.Count()
}

// SuccessPath returns the clean file's final path.
func (r *Router) SuccessPath() string { return r.success.Path() }

// ErrorPath returns the error file's final path.
func (r *Router) ErrorPath() string { return r.errs.Path() }

// Close publishes both files or neither. Both are flushed to their temporary
// files first; if the error file cannot be published after the clean file
// was, the clean file is removed again.
func (r *Router) Close() error {
	if r.success.done || r.errs.done {
		return errors.Join(r.success.Close(), r.errs.Close())
	}
	if err := errors.Join(r.success.finish(), r.errs.finish()); err != nil {
		_ = os.Remove(r.success.tmp)
		_ = os.Remove(r.errs.tmp)
		return err
	}
	if err := r.success.publish(); err != nil {
		_ = os.Remove(r.errs.tmp)
		return err
	}
	if err := r.errs.publish(); err != nil {
		r.success.unpublish()
		return err
	}
	return nil
}

// Abort discards both files.
func (r *Router) Abort() error {
	return errors.Join(r.success.Abort(), r.errs.Abort())
}
