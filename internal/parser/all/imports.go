// Package all wires every built-in reader into the parser registry.
//
// Import it for side effects from the binary's wiring layer:
//
//	import _ "recordpipe/internal/parser/all"
//
// after which parser.New accepts the kinds csv, delimited, pipe,
// fixed_width, fixed, dat and xml.
package all

import (
	_ "recordpipe/internal/parser/csv"
	_ "recordpipe/internal/parser/fixedwidth"
	_ "recordpipe/internal/parser/xml"
)
