// Command recordpipe validates delimited, fixed-width and XML files against a
// declared layout, splitting each into a clean file and an error file.
package main

import (
	"os"

	// Every reader and storage backend is compiled in; configuration picks one.
	_ "recordpipe/internal/parser/all"
	_ "recordpipe/internal/storage/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
