package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recordpipe/internal/logging"
	"recordpipe/internal/metrics"
)

// CopyFn is a backend's bulk insert. It receives rows aligned to columns and
// returns how many rows the backend reports as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Row is one clean-file record bound for the database. Line is its line in
// the clean file, where the header is line 1.
type Row struct {
	Line   int
	Values []any
}

// RowFromFields builds a Row from clean-file fields. Empty fields become nil
// so that backends store NULL rather than an empty string.
func RowFromFields(line int, fields []string) Row {
	vals := make([]any, len(fields))
	for i, f := range fields {
		if f != "" {
			vals[i] = f
		}
	}
	return Row{Line: line, Values: vals}
}

// BatchError reports a batch the backend rejected, with the clean-file lines
// the batch covered.
type BatchError struct {
	Batch     int
	FirstLine int
	LastLine  int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (lines %d-%d): %v", e.Batch, e.FirstLine, e.LastLine, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// BatchConfig describes how LoadBatches groups rows.
type BatchConfig struct {
	Columns []string
	// Size is the maximum number of rows per copy call.
	Size int
	// Job labels the batch counter.
	Job string
}

// LoadBatches drains in, copying rows in batches of at most cfg.Size. Each
// committed batch is counted under cfg.Job. It returns the number of rows
// the backend reported as inserted; on a rejected batch the error is a
// *BatchError and the count covers the batches committed before it. When ctx
// is done it returns ctx.Err().
func LoadBatches(ctx context.Context, cfg BatchConfig, in <-chan Row, copyFn CopyFn) (int64, error) {
	if cfg.Size <= 0 {
		return 0, errors.New("storage: batch size must be > 0")
	}
	if copyFn == nil {
		return 0, errors.New("storage: copyFn must not be nil")
	}

	log := logging.FromContext(ctx)
	var (
		total   int64
		batchNo int
		first   int
		last    int
		vals    = make([][]any, 0, cfg.Size)
		start   = time.Now()
	)

	flush := func() error {
		if len(vals) == 0 {
			return nil
		}
		batchNo++
		n, err := copyFn(ctx, cfg.Columns, vals)
		vals = vals[:0]
		if err != nil {
			return &BatchError{Batch: batchNo, FirstLine: first, LastLine: last, Err: err}
		}
		total += n
		metrics.RecordBatches(cfg.Job, 1)
		log.Debug("storage: batch committed",
			"batch", batchNo,
			"lines", fmt.Sprintf("%d-%d", first, last),
			"rows", n,
			"total", total,
			"elapsed", time.Since(start).Truncate(time.Millisecond),
		)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				return total, flush()
			}
			if len(vals) == 0 {
				first = row.Line
			}
			last = row.Line
			vals = append(vals, row.Values)
			if len(vals) == cfg.Size {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
