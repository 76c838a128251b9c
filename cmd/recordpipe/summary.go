package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"recordpipe/internal/pipeline"
)

// printSummary writes one line per input plus a totals line.
func printSummary(w io.Writer, results []pipeline.Result) {
	var (
		ok    = color.New(color.FgGreen).SprintFunc()
		warn  = color.New(color.FgYellow).SprintFunc()
		bad   = color.New(color.FgRed).SprintFunc()
		total  pipeline.Result
		failed int
	)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCLEAN\tERRORS\tELAPSED\t")
	for _, r := range results {
		symbol := ok("✓")
		switch {
		case r.Err != nil:
			symbol = bad("✗")
			failed++
		case r.Errors > 0:
			symbol = warn("!")
		}
		fmt.Fprintf(tw, "%s %s\t%d\t%d\t%s\t\n", symbol, r.Input, r.Success, r.Errors, r.Duration.Truncate(time.Millisecond))
		total.Success += r.Success
		total.Errors += r.Errors
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d file(s): %s clean, %s rejected", len(results), ok(total.Success), warn(total.Errors))
	if failed > 0 {
		fmt.Fprintf(w, ", %s failed", bad(failed))
	}
	fmt.Fprintln(w)
}
