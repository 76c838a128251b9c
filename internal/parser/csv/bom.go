package csv

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// NormalizeHeaders strips the BOM, trims surrounding whitespace and brings
// every name to Unicode NFC so that "é" typed as e+U+0301 in a spreadsheet
// export matches the precomposed form used in column configs. Case is kept.
func NormalizeHeaders(h []string) []string {
	out := StripHeaderBOM(append([]string(nil), h...))
	for i, c := range out {
		out[i] = norm.NFC.String(strings.TrimSpace(c))
	}
	return out
}
