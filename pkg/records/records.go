// Package records defines the row model shared by readers, validators and
// sinks. A Record is an ordered set of column name/value pairs holding the raw
// text read from the input file; values are never coerced.
package records

// Record is one structured row extracted from an input file. It is immutable
// once constructed: accessors return copies or scalar values only.
type Record struct {
	line   int
	names  []string
	values map[string]string
}

// New builds a Record from parallel name/value slices. Missing values (when
// len(values) < len(names)) are stored as empty strings; extra values are
// ignored. The line is the 1-based source position used in diagnostics.
func New(line int, names, values []string) Record {
	r := Record{
		line:   line,
		names:  make([]string, 0, len(names)),
		values: make(map[string]string, len(names)),
	}
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		if _, dup := r.values[n]; !dup {
			r.names = append(r.names, n)
		}
		r.values[n] = v
	}
	return r
}

// FromPairs builds a Record from an ordered list of name/value pairs. It is
// used by readers whose columns vary per record (XML).
func FromPairs(line int, pairs [][2]string) Record {
	names := make([]string, len(pairs))
	values := make([]string, len(pairs))
	for i, p := range pairs {
		names[i], values[i] = p[0], p[1]
	}
	return New(line, names, values)
}

// Line returns the 1-based source position of the record.
func (r Record) Line() int { return r.line }

// Len returns the number of columns present in the record.
func (r Record) Len() int { return len(r.names) }

// Names returns the record's column names in source order.
func (r Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get returns the value for name and whether the column is present.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns the value for name, or "" when the column is absent.
func (r Record) Value(name string) string {
	return r.values[name]
}

// Project returns the values for cols in order; absent columns yield "".
func (r Record) Project(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.values[c]
	}
	return out
}

// Outcome pairs a Record with the ordered errors produced by a validation
// chain. An empty Errors slice means the record is valid.
type Outcome struct {
	Record Record
	Errors []string
}

// Valid reports whether the outcome carries no errors.
func (o Outcome) Valid() bool { return len(o.Errors) == 0 }
