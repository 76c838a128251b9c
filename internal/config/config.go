// Package config defines the configuration model for recordpipe.
//
// Two documents drive a run:
//
//  1. System: where files live, which collaborators are enabled (email, DB
//     load), metrics and logging. Loaded with viper so it can come from YAML,
//     JSON or TOML and be overridden by RECORDPIPE_* environment variables.
//  2. File: how one family of input files is read and validated (format,
//     columns, uniqueness constraints, target table). Loaded strictly with
//     yaml.v3 so that typos in column definitions fail fast.
//
// Example file config (trimmed):
//
//	file_type: csv
//	columns:
//	  - { name: id,   type: int, mandatory: true }
//	  - { name: name, mandatory: true, length: 40 }
//	unique_constraints: [[id]]
//	target_table: public.customers
//
// Both documents are read-only for the duration of a run and may be shared
// by concurrent pipelines.
package config

import "time"

// System holds process-wide settings.
type System struct {
	InputDir      string `mapstructure:"input_dir"`
	ErrorDir      string `mapstructure:"error_dir"`
	ProcessedDir  string `mapstructure:"processed_dir"`
	FileConfigDir string `mapstructure:"file_config_dir"`

	// Concurrency bounds how many files are processed at once.
	Concurrency int `mapstructure:"concurrency"`

	Features Features `mapstructure:"features"`
	Email    Email    `mapstructure:"email"`
	Database Database `mapstructure:"database"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Logging  Logging  `mapstructure:"logging"`
	Watch    Watch    `mapstructure:"watch"`
}

// Features toggles the post-processing collaborators.
type Features struct {
	EnableEmail  bool `mapstructure:"enable_email"`
	EnableDBLoad bool `mapstructure:"enable_db_load"`
}

// Email configures the SMTP error-report notifier.
type Email struct {
	SMTPServer string   `mapstructure:"smtp_server"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Sender     string   `mapstructure:"sender"`
	Password   string   `mapstructure:"password"`
	Recipients []string `mapstructure:"recipients"`
	StartTLS   bool     `mapstructure:"starttls"`
}

// Database configures the bulk loader for clean files.
type Database struct {
	// Kind selects the storage backend: postgres, mssql, mysql, sqlite.
	Kind string `mapstructure:"kind"`
	// DSN is passed to the backend driver unchanged.
	DSN string `mapstructure:"dsn"`
	// BatchSize is the number of rows per COPY/INSERT batch.
	BatchSize int `mapstructure:"batch_size"`
	// AutoCreateTable creates the target table (all TEXT columns) if absent.
	AutoCreateTable bool `mapstructure:"auto_create_table"`
}

// Metrics selects a metrics backend.
type Metrics struct {
	Backend        string `mapstructure:"backend"` // none, pushgateway, datadog
	Job            string `mapstructure:"job"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Watch configures directory watch mode.
type Watch struct {
	// Settle is how long a file must stay unchanged before it is processed.
	Settle time.Duration `mapstructure:"settle"`
	// Pattern is a filepath.Match glob applied to base names.
	Pattern string `mapstructure:"pattern"`
}

// File describes how to read and validate one family of input files.
type File struct {
	// FileType selects the reader: csv, delimited, pipe, fixed_width (fixed,
	// dat), xml.
	FileType string `yaml:"file_type" json:"file_type"`

	// Delimiter overrides the field separator for delimited files.
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`

	// HasHeader controls whether the first delimited line names the columns.
	// Nil means true.
	HasHeader *bool `yaml:"has_header,omitempty" json:"has_header,omitempty"`

	// RecordTag selects record elements in XML input. Empty means the root's
	// direct children.
	RecordTag string `yaml:"record_tag,omitempty" json:"record_tag,omitempty"`

	Columns []Column `yaml:"columns" json:"columns"`

	// UniqueConstraints lists column groups whose combined values must not
	// repeat within one file.
	UniqueConstraints [][]string `yaml:"unique_constraints,omitempty" json:"unique_constraints,omitempty"`

	// DuplicatePolicy is "flag-subsequent" (default) or "flag-all".
	DuplicatePolicy string `yaml:"duplicate_policy,omitempty" json:"duplicate_policy,omitempty"`

	// Validators optionally restricts and orders the validation chain. Empty
	// means mandatory, datatype, length, duplicate.
	Validators []string `yaml:"validators,omitempty" json:"validators,omitempty"`

	// TargetTable is handed to the load collaborator.
	TargetTable string `yaml:"target_table,omitempty" json:"target_table,omitempty"`

	// NotificationEmail overrides the system recipients for this file family.
	NotificationEmail string `yaml:"notification_email,omitempty" json:"notification_email,omitempty"`

	// Options carries reader-specific knobs: allow_ragged, lazy_quotes, trim,
	// strict_columns and scrub_from/scrub_to for delimited files, strict_width
	// for fixed-width files, and output_delimiter for both outputs.
	Options Options `yaml:"options,omitempty" json:"options,omitempty"`
}

// Column is one declared input column.
type Column struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type,omitempty" json:"type,omitempty"`
	Mandatory bool   `yaml:"mandatory,omitempty" json:"mandatory,omitempty"`
	// Length is the maximum number of characters; 0 means unbounded.
	Length int `yaml:"length,omitempty" json:"length,omitempty"`
	// Unique declares a single-column uniqueness constraint.
	Unique bool `yaml:"unique,omitempty" json:"unique,omitempty"`
	// Layout is the time layout for type "date".
	Layout string `yaml:"layout,omitempty" json:"layout,omitempty"`

	// Fixed-width placement: Start+Width, or Position as [start, end). When
	// Width is unset, Start+Length is used, so a single length both places
	// the field and bounds it.
	Start    *int  `yaml:"start,omitempty" json:"start,omitempty"`
	Width    int   `yaml:"width,omitempty" json:"width,omitempty"`
	Position []int `yaml:"position,omitempty" json:"position,omitempty"`
}

// Span returns the fixed-width placement of the column, if any.
func (c Column) Span() (start, width int, ok bool) {
	if c.Start != nil {
		switch {
		case c.Width > 0:
			return *c.Start, c.Width, true
		case c.Length > 0:
			return *c.Start, c.Length, true
		}
	}
	if len(c.Position) == 2 && c.Position[1] > c.Position[0] {
		return c.Position[0], c.Position[1] - c.Position[0], true
	}
	return 0, 0, false
}

// ColumnNames returns declared column names in order.
func (f File) ColumnNames() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// Header reports whether delimited input starts with a header line.
func (f File) Header() bool {
	return f.HasHeader == nil || *f.HasHeader
}

// Constraints returns all uniqueness constraints: explicit groups first, then
// one per column flagged unique. Exact repeats are collapsed.
func (f File) Constraints() [][]string {
	seen := map[string]struct{}{}
	var out [][]string
	add := func(cols []string) {
		key := ""
		for _, c := range cols {
			key += c + "\x1f"
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, append([]string(nil), cols...))
	}
	for _, uc := range f.UniqueConstraints {
		if len(uc) > 0 {
			add(uc)
		}
	}
	for _, c := range f.Columns {
		if c.Unique {
			add([]string{c.Name})
		}
	}
	return out
}

// Options is a small helper to fetch typed values from free-form maps. It
// performs minimal coercion and returns the provided default when a key is
// absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. YAML decodes integers as int and
// JSON as float64; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}
