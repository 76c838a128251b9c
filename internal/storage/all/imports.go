// Package all wires the built-in storage backends into the storage factory.
//
// Importing it for side effects makes the kinds "postgres", "mssql", "mysql"
// and "sqlite" available to storage.New and storage.EnsureTable. A binary that
// needs only a subset can import the backend packages directly instead.
package all

import (
	_ "recordpipe/internal/storage/mssql"
	_ "recordpipe/internal/storage/mysql"
	_ "recordpipe/internal/storage/postgres"
	_ "recordpipe/internal/storage/sqlite"
)
