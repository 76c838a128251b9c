package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"recordpipe/internal/config"
	"recordpipe/pkg/records"
)

// Mandatory flags columns that are absent or blank after trimming.
type Mandatory struct {
	cols []string
}

// NewMandatory returns a Mandatory validator for the columns flagged
// mandatory.
func NewMandatory(columns []config.Column) *Mandatory {
	m := &Mandatory{}
	for _, c := range columns {
		if c.Mandatory {
			m.cols = append(m.cols, c.Name)
		}
	}
	return m
}

func (m *Mandatory) Name() string { return "mandatory" }

func (m *Mandatory) Validate(rec records.Record) []string {
	var errs []string
	for _, c := range m.cols {
		v, ok := rec.Get(c)
		if !ok || strings.TrimSpace(v) == "" {
			errs = append(errs, "Missing mandatory column: "+c)
		}
	}
	return errs
}

var intPattern = regexp.MustCompile(`^-?\d+$`)

// default truthy/falsy sets (lowercased), including Czech "ano"/"ne".
var boolWords = map[string]struct{}{
	"1": {}, "t": {}, "true": {}, "yes": {}, "y": {}, "ano": {},
	"0": {}, "f": {}, "false": {}, "no": {}, "n": {}, "ne": {},
}

type typedColumn struct {
	name  string
	typ   string // as declared, used in messages
	check func(string) bool
}

// DataType checks that non-empty values parse as their declared type.
// Unknown types are accepted unconditionally.
type DataType struct {
	cols []typedColumn
}

// NewDataType returns a DataType validator for the typed columns.
func NewDataType(columns []config.Column) *DataType {
	d := &DataType{}
	for _, c := range columns {
		if check := checkerFor(c); check != nil {
			d.cols = append(d.cols, typedColumn{name: c.Name, typ: c.Type, check: check})
		}
	}
	return d
}

func checkerFor(c config.Column) func(string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "int", "integer":
		return func(s string) bool { return intPattern.MatchString(strings.TrimSpace(s)) }
	case "float", "decimal", "number":
		return func(s string) bool {
			t := strings.TrimSpace(s)
			// inf, nan and hex floats parse but are not decimal numbers.
			if strings.ContainsAny(strings.ToLower(t), "inx_") {
				return false
			}
			_, err := strconv.ParseFloat(t, 64)
			return err == nil
		}
	case "bool", "boolean":
		return func(s string) bool {
			_, ok := boolWords[strings.ToLower(strings.TrimSpace(s))]
			return ok
		}
	case "date":
		layout := c.Layout
		if layout == "" {
			layout = "2006-01-02"
		}
		return func(s string) bool {
			_, err := time.Parse(layout, strings.TrimSpace(s))
			return err == nil
		}
	}
	return nil
}

func (d *DataType) Name() string { return "datatype" }

func (d *DataType) Validate(rec records.Record) []string {
	var errs []string
	for _, c := range d.cols {
		v, ok := rec.Get(c.name)
		if !ok || v == "" {
			continue
		}
		if !c.check(v) {
			errs = append(errs, fmt.Sprintf("Invalid type for column %s: expected %s, got %s", c.name, c.typ, v))
		}
	}
	return errs
}

type boundedColumn struct {
	name string
	max  int
}

// Length flags values with more characters than the declared maximum.
type Length struct {
	cols []boundedColumn
}

// NewLength returns a Length validator for columns with a positive length.
func NewLength(columns []config.Column) *Length {
	l := &Length{}
	for _, c := range columns {
		if c.Length > 0 {
			l.cols = append(l.cols, boundedColumn{name: c.Name, max: c.Length})
		}
	}
	return l
}

func (l *Length) Name() string { return "length" }

func (l *Length) Validate(rec records.Record) []string {
	var errs []string
	for _, c := range l.cols {
		v := rec.Value(c.name)
		if v == "" {
			continue
		}
		if n := utf8.RuneCountInString(v); n > c.max {
			errs = append(errs, fmt.Sprintf("Length exceeded for column %s: max %d, got %d", c.name, c.max, n))
		}
	}
	return errs
}
