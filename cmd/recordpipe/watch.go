package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recordpipe/internal/failure"
	"recordpipe/internal/pipeline"
	"recordpipe/internal/watch"
)

func newWatchCmd(g *globals) *cobra.Command {
	var (
		ff       fileFlags
		pattern  string
		existing bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process files as they appear in input_dir",
		Long: `Watch processes every file that settles in input_dir (no writes for
watch.settle) with the selected file configuration, one file at a time, until
interrupted. Failures are logged and watching continues.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkSystem(g.sys); err != nil {
				return err
			}
			if g.sys.InputDir == "" {
				return failure.Configuration("watch requires input_dir")
			}
			f, key, err := ff.resolve(g.sys)
			if err != nil {
				return err
			}
			build, err := builder(g.sys, f, key)
			if err != nil {
				return err
			}
			if pattern == "" {
				pattern = g.sys.Watch.Pattern
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			flush := setupMetrics(g.sys)
			defer flush()

			w := watch.Watcher{Dir: g.sys.InputDir, Pattern: pattern, Settle: g.sys.Watch.Settle, Existing: existing}
			return w.Run(ctx, func(ctx context.Context, path string) {
				res, err := runOne(ctx, build, path)
				printSummary(cmd.OutOrStdout(), []pipeline.Result{res})
				if err != nil {
					slog.Error("watch: file failed", "file", path, "err", err)
				}
				// Metrics are pushed per file; a watch run never ends on its own.
				flush()
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob on base names (default: watch.pattern)")
	cmd.Flags().BoolVar(&existing, "existing", false, "also process files already in input_dir")
	return cmd
}

func runOne(ctx context.Context, build pipeline.BuildFunc, path string) (pipeline.Result, error) {
	o, err := build(path)
	if err != nil {
		return pipeline.Result{Input: path, Err: err}, err
	}
	res, err := o.Run(ctx)
	res.Err = err
	return res, err
}
