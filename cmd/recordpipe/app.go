package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"recordpipe/internal/config"
	"recordpipe/internal/loader"
	"recordpipe/internal/metrics"
	"recordpipe/internal/metrics/datadog"
	"recordpipe/internal/metrics/prompush"
	"recordpipe/internal/notify"
	"recordpipe/internal/pipeline"
)

// fileFlags selects the file configuration for a command.
type fileFlags struct {
	key  string
	path string
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.key, "file-key", "", "file config key, looked up in file_config_dir")
	cmd.Flags().StringVar(&f.path, "file-config", "", "file config path (overrides --file-key)")
}

func (f *fileFlags) resolve(sys config.System) (config.File, string, error) {
	return config.ResolveFile(sys, f.key, f.path)
}

// checkSystem fails on error-severity issues and logs warnings.
func checkSystem(sys config.System) error {
	issues := config.ValidateSystem(sys)
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			slog.Warn("config: "+iss.Message, "path", iss.Path)
		}
	}
	return config.Err(issues)
}

// setupMetrics installs the configured metrics backend and returns the flush
// function to defer. Backend failures fall back to the no-op backend.
func setupMetrics(sys config.System) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(sys.Metrics.Backend) {
	case "pushgateway":
		b, err = prompush.NewBackend(sys.Metrics.Job, sys.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       sys.Metrics.DatadogAddr,
			Namespace:  "recordpipe.",
			GlobalTags: []string{"job:" + sys.Metrics.Job},
		})
	default:
		return func() {}
	}
	if err != nil {
		slog.Warn("metrics: backend disabled", "backend", sys.Metrics.Backend, "err", err)
		return func() {}
	}
	metrics.SetBackend(b)
	slog.Debug("metrics: backend enabled", "backend", sys.Metrics.Backend, "job", sys.Metrics.Job)
	return func() {
		if err := metrics.Flush(); err != nil {
			slog.Warn("metrics: flush failed", "err", err)
		}
	}
}

// collaborators builds the post-run hooks enabled in sys for file f.
func collaborators(sys config.System, f config.File, job string) (pipeline.Notifier, pipeline.Loader, error) {
	var n pipeline.Notifier = notify.Log{}
	if sys.Features.EnableEmail {
		smtp, err := notify.NewSMTP(notify.FromEmail(sys.Email, f.NotificationEmail))
		if err != nil {
			return nil, nil, err
		}
		n = smtp
	}

	var l pipeline.Loader
	if sys.Features.EnableDBLoad {
		db, err := loader.NewDB(loader.Config{
			Kind:            sys.Database.Kind,
			DSN:             sys.Database.DSN,
			BatchSize:       sys.Database.BatchSize,
			AutoCreateTable: sys.Database.AutoCreateTable,
			Comma:           f.Options.Rune("output_delimiter", ','),
			Job:             job,
		})
		if err != nil {
			return nil, nil, err
		}
		l = db
	}
	return n, l, nil
}

// builder returns the per-input constructor handed to pipeline.RunAll. The
// hooks are shared across inputs; each input gets its own Orchestrator.
func builder(sys config.System, f config.File, key string) (pipeline.BuildFunc, error) {
	n, l, err := collaborators(sys, f, key)
	if err != nil {
		return nil, err
	}
	return func(input string) (*pipeline.Orchestrator, error) {
		return pipeline.New(pipeline.Options{
			Input:        input,
			File:         f,
			ProcessedDir: sys.ProcessedDir,
			ErrorDir:     sys.ErrorDir,
			Job:          key,
			Notifier:     n,
			Loader:       l,
		})
	}, nil
}

func describe(f config.File, key string) string {
	return fmt.Sprintf("%s (%s, %d columns)", key, f.FileType, len(f.Columns))
}
