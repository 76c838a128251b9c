// Package validator implements the per-record validation rules and the chain
// that runs them.
//
// A Validator inspects one record and returns zero or more human-readable
// error messages. Validators never mutate records. Only the duplicate
// validator keeps state across records, and that state belongs to the one
// validator instance (and therefore to one run).
package validator

import (
	"sort"
	"strings"
	"sync"

	"recordpipe/internal/config"
	"recordpipe/internal/failure"
	"recordpipe/pkg/records"
)

// Validator checks a single record.
type Validator interface {
	Name() string
	Validate(rec records.Record) []string
}

// Primer is implemented by validators that must observe the whole input
// before validating any record (flag-all duplicate detection). The pipeline
// feeds every record to Prime in a separate pass, then calls Validate.
type Primer interface {
	Prime(rec records.Record)
	NeedsPriming() bool
}

// Constructor builds a Validator from the file configuration.
type Constructor func(f config.File) (Validator, error)

// DefaultOrder is the chain order used when a file config does not list its
// validators explicitly.
var DefaultOrder = []string{"mandatory", "datatype", "length", "duplicate"}

var (
	regMu sync.RWMutex
	ctors = map[string]Constructor{
		"mandatory": func(f config.File) (Validator, error) { return NewMandatory(f.Columns), nil },
		"datatype":  func(f config.File) (Validator, error) { return NewDataType(f.Columns), nil },
		"length":    func(f config.File) (Validator, error) { return NewLength(f.Columns), nil },
		"duplicate": func(f config.File) (Validator, error) {
			return NewDuplicate(f.Constraints(), f.DuplicatePolicy)
		},
	}
)

// Register registers (or replaces) the constructor for kind.
func Register(kind string, fn Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	ctors[strings.ToLower(kind)] = fn
}

// ListKinds returns the registered validator kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(ctors))
	for k := range ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the validator registered under kind.
func New(kind string, f config.File) (Validator, error) {
	regMu.RLock()
	fn, ok := ctors[strings.ToLower(strings.TrimSpace(kind))]
	regMu.RUnlock()
	if !ok {
		return nil, failure.Configuration("unsupported validator=%s", kind)
	}
	return fn(f)
}

// Build constructs a fresh Chain for one run of f. Every call returns new
// validator instances, so duplicate state is never shared between runs.
func Build(f config.File) (*Chain, error) {
	kinds := f.Validators
	if len(kinds) == 0 {
		kinds = DefaultOrder
	}
	vs := make([]Validator, 0, len(kinds))
	for _, k := range kinds {
		v, err := New(k, f)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return NewChain(vs...), nil
}
