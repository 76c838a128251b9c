// Package config provides configuration models and helpers for recordpipe.
//
// This file adds a lightweight linter for System and File values. It performs
// static checks and returns a list of issues (errors and warnings) that callers
// can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"recordpipe/internal/failure"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but not fatal.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding.
//
// Path is a dotted path into the config (e.g. "columns[2].length",
// "unique_constraints[0]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Duplicate policies accepted in File.DuplicatePolicy.
const (
	PolicyFlagSubsequent = "flag-subsequent"
	PolicyFlagAll        = "flag-all"
)

var (
	knownFileTypes = map[string]struct{}{
		"csv": {}, "delimited": {}, "pipe": {},
		"fixed_width": {}, "fixed": {}, "dat": {},
		"xml": {},
	}
	knownValidators = map[string]struct{}{
		"mandatory": {}, "datatype": {}, "length": {}, "duplicate": {},
	}
	knownTypes = map[string]struct{}{
		"": {}, "string": {}, "text": {},
		"int": {}, "integer": {},
		"float": {}, "decimal": {}, "number": {},
		"bool": {}, "boolean": {}, "date": {},
	}
	knownStorage = map[string]struct{}{
		"postgres": {}, "mssql": {}, "mysql": {}, "sqlite": {},
	}
)

// IsFixedWidth reports whether fileType selects the fixed-width reader.
func IsFixedWidth(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "fixed_width", "fixed", "dat":
		return true
	}
	return false
}

// ValidateFile lints a File configuration. It does not mutate f.
func ValidateFile(f File) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	ft := strings.ToLower(strings.TrimSpace(f.FileType))
	switch {
	case ft == "":
		add(SeverityError, "file_type", "file_type must not be empty")
	default:
		if _, ok := knownFileTypes[ft]; !ok {
			add(SeverityWarning, "file_type", "unknown file_type %q; ensure a matching reader is registered", f.FileType)
		}
	}

	if f.Delimiter != "" && utf8.RuneCountInString(f.Delimiter) != 1 {
		add(SeverityError, "delimiter", "delimiter must be a single character, got %q", f.Delimiter)
	}

	if len(f.Columns) == 0 {
		add(SeverityError, "columns", "at least one column must be declared")
	}

	names := make(map[string]int, len(f.Columns))
	positioned := 0
	for i, c := range f.Columns {
		p := fmt.Sprintf("columns[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			add(SeverityError, p+".name", "column name must not be empty")
			continue
		}
		if c.Name == "errors" {
			add(SeverityError, p+".name", "column name %q is reserved for the error sink", c.Name)
		}
		if prev, dup := names[c.Name]; dup {
			add(SeverityError, p+".name", "duplicate column %q (first declared at columns[%d])", c.Name, prev)
		} else {
			names[c.Name] = i
		}
		if c.Length < 0 {
			add(SeverityError, p+".length", "length must not be negative")
		}
		if _, ok := knownTypes[strings.ToLower(c.Type)]; !ok {
			add(SeverityWarning, p+".type", "unknown type %q; values will be accepted unconditionally", c.Type)
		}
		if _, _, ok := c.Span(); ok {
			positioned++
		} else if c.Start != nil || len(c.Position) > 0 {
			add(SeverityError, p, "invalid fixed-width placement; need start with width (or length) > 0, or position [start, end) with end > start")
		}
		if c.Start != nil && *c.Start < 0 {
			add(SeverityError, p+".start", "start must not be negative")
		}
	}
	if IsFixedWidth(ft) && positioned == 0 && len(f.Columns) > 0 {
		add(SeverityError, "columns", "fixed-width files require column positions (start+width, start+length or position)")
	}

	for i, uc := range f.UniqueConstraints {
		p := fmt.Sprintf("unique_constraints[%d]", i)
		if len(uc) == 0 {
			add(SeverityError, p, "uniqueness constraint must list at least one column")
			continue
		}
		for _, col := range uc {
			if _, ok := names[col]; !ok {
				add(SeverityError, p, "unknown column %q in uniqueness constraint", col)
			}
		}
	}

	switch f.DuplicatePolicy {
	case "", PolicyFlagSubsequent, PolicyFlagAll:
	default:
		add(SeverityError, "duplicate_policy", "duplicate_policy must be %q or %q, got %q",
			PolicyFlagSubsequent, PolicyFlagAll, f.DuplicatePolicy)
	}

	for i, v := range f.Validators {
		if _, ok := knownValidators[strings.ToLower(v)]; !ok {
			add(SeverityWarning, fmt.Sprintf("validators[%d]", i), "unknown validator %q; ensure it is registered", v)
		}
	}

	return issues
}

// ValidateSystem lints a System configuration.
func ValidateSystem(s System) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.ErrorDir) == "" {
		add(SeverityError, "error_dir", "error_dir must not be empty")
	}
	if strings.TrimSpace(s.ProcessedDir) == "" {
		add(SeverityError, "processed_dir", "processed_dir must not be empty")
	}
	if s.Concurrency < 0 {
		add(SeverityError, "concurrency", "concurrency must not be negative")
	}

	if s.Features.EnableEmail {
		if s.Email.SMTPServer == "" || s.Email.SMTPPort <= 0 || s.Email.Sender == "" {
			add(SeverityError, "email", "enable_email requires smtp_server, smtp_port and sender")
		}
	}
	if s.Features.EnableDBLoad {
		if _, ok := knownStorage[s.Database.Kind]; !ok {
			add(SeverityWarning, "database.kind", "unknown database kind %q; ensure a matching backend is registered", s.Database.Kind)
		}
		if strings.TrimSpace(s.Database.DSN) == "" {
			add(SeverityError, "database.dsn", "enable_db_load requires database.dsn")
		}
		if s.Database.BatchSize <= 0 {
			add(SeverityWarning, "database.batch_size", "batch_size=%d; non-positive batch sizes fall back to 1000", s.Database.BatchSize)
		}
	}

	switch s.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		if s.Metrics.PushgatewayURL == "" {
			add(SeverityError, "metrics.pushgateway_url", "pushgateway backend requires pushgateway_url")
		}
	case "datadog":
		if s.Metrics.DatadogAddr == "" {
			add(SeverityError, "metrics.datadog_addr", "datadog backend requires datadog_addr")
		}
	default:
		add(SeverityWarning, "metrics.backend", "unknown metrics backend %q; metrics disabled", s.Metrics.Backend)
	}

	return issues
}

// Err folds error-severity issues into a single ConfigurationError, or nil
// when only warnings (or nothing) were found.
func Err(issues []Issue) error {
	var msgs []string
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return failure.Configuration("%s", strings.Join(msgs, "; "))
}
