// Package watch turns an input directory into a stream of settled files.
//
// A file is handed off once it has seen no create or write event for the
// settle period, so producers that write in several chunks are not picked up
// half-written. Hidden files and ".part" files are never handed off.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"recordpipe/internal/datasource/file"
	"recordpipe/internal/logging"
)

// Handler processes one settled file. Handlers run one at a time.
type Handler func(ctx context.Context, path string)

// Watcher watches one directory.
type Watcher struct {
	Dir     string
	Pattern string        // filepath.Match glob on base names; "" means "*"
	Settle  time.Duration // quiet period before hand-off; <= 0 means 2s
	// Existing hands off files already present when Run starts.
	Existing bool
}

// Run watches until ctx is done, calling h for each settled file. It returns
// nil on cancellation.
func (w Watcher) Run(ctx context.Context, h Handler) error {
	pattern := w.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("watch: bad pattern %q: %w", pattern, err)
	}
	settle := w.Settle
	if settle <= 0 {
		settle = 2 * time.Second
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.Dir, err)
	}

	log := logging.WithFields(ctx, "dir", w.Dir)
	log.Info("watch: started", "pattern", pattern, "settle", settle)

	pending := map[string]time.Time{}
	if w.Existing {
		existing, err := file.Glob(w.Dir, pattern)
		if err != nil {
			return err
		}
		for _, p := range existing {
			pending[p] = time.Now()
		}
	}

	tick := settle / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if file.Ignored(name) {
				continue
			}
			if m, _ := filepath.Match(pattern, name); !m {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now().Add(settle)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: watcher error", "err", err)

		case now := <-ticker.C:
			for _, p := range due(pending, now) {
				delete(pending, p)
				if ctx.Err() != nil {
					return nil
				}
				log.Debug("watch: file settled", "file", p)
				h(ctx, p)
			}
		}
	}
}

// due returns the pending paths whose settle deadline has passed, sorted so
// hand-off order is stable.
func due(pending map[string]time.Time, now time.Time) []string {
	var out []string
	for p, at := range pending {
		if !now.Before(at) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
