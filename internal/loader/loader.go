// Package loader bulk-loads clean files into a database table through the
// storage registry.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"recordpipe/internal/ddl"
	"recordpipe/internal/failure"
	"recordpipe/internal/logging"
	"recordpipe/internal/metrics"
	"recordpipe/internal/storage"
)

// Config configures a DB loader.
type Config struct {
	Kind            string
	DSN             string
	BatchSize       int
	AutoCreateTable bool
	// Comma is the clean file's delimiter; defaults to ','.
	Comma rune
	// Job labels metrics.
	Job string
}

// DB loads a clean CSV file into a table. Its header names the destination
// columns; empty fields are loaded as NULL.
type DB struct {
	cfg  Config
	open func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// NewDB returns a DB loader. The backend for cfg.Kind must be registered
// (import internal/storage/all).
func NewDB(cfg Config) (*DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, failure.Configuration("database.dsn must not be empty")
	}
	found := false
	for _, k := range storage.ListKinds() {
		found = found || k == strings.ToLower(cfg.Kind)
	}
	if !found {
		return nil, failure.Configuration("unsupported storage.kind=%s (registered: %s)",
			cfg.Kind, strings.Join(storage.ListKinds(), ", "))
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Comma == 0 {
		cfg.Comma = ','
	}
	return &DB{cfg: cfg, open: storage.New}, nil
}

// Load copies every row of the clean file at location into target.
func (d *DB) Load(ctx context.Context, location, target string) error {
	if strings.TrimSpace(target) == "" {
		return failure.Configuration("target_table is required for database load")
	}
	f, err := os.Open(location)
	if err != nil {
		return fmt.Errorf("loader: open %s: %w", location, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = d.cfg.Comma
	r.ReuseRecord = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loader: read header of %s: %w", location, err)
	}
	columns := append([]string(nil), header...)

	repo, err := d.open(ctx, storage.Config{Kind: d.cfg.Kind, DSN: d.cfg.DSN, Table: target, Columns: columns})
	if err != nil {
		return err
	}
	defer repo.Close()

	if d.cfg.AutoCreateTable {
		if err := storage.EnsureTable(ctx, d.cfg.Kind, repo, ddl.TextTable(target, columns)); err != nil {
			return fmt.Errorf("loader: ensure table %s: %w", target, err)
		}
	}

	log := logging.WithFields(ctx, "table", target, "kind", d.cfg.Kind)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan storage.Row, d.cfg.BatchSize)

	g.Go(func() error {
		defer close(rows)
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				var pe *csv.ParseError
				line := 0
				if errors.As(err, &pe) {
					line = pe.Line
				}
				return failure.Parse(location, line, err)
			}
			line, _ := r.FieldPos(0)
			select {
			case rows <- storage.RowFromFields(line, rec):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var loaded int64
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, storage.BatchConfig{
			Columns: columns,
			Size:    d.cfg.BatchSize,
			Job:     d.cfg.Job,
		}, rows, repo.CopyFrom)
		loaded = n
		return err
	})

	err = g.Wait()
	metrics.RecordRow(d.cfg.Job, metrics.KindLoaded, loaded)
	if err != nil {
		log.Error("loader: load failed", "loaded", loaded, "err", err)
		return fmt.Errorf("loader: load %s into %s: %w", location, target, err)
	}
	log.Info("loader: load complete", "rows", loaded, "elapsed", time.Since(start).Truncate(time.Millisecond))
	return nil
}
