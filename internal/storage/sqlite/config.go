package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:recordpipe.db?_pragma=busy_timeout(5000)"
	//   "file:test?mode=memory&cache=shared"
	DSN string

	// Table is the target table name. Dotted names such as "main.customers"
	// are quoted segment by segment.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string
}
