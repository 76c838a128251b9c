package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recordpipe/internal/datasource/file"
	"recordpipe/internal/failure"
	"recordpipe/internal/pipeline"
)

type runOpts struct {
	file        fileFlags
	list        string
	pattern     string
	concurrency int
}

func newRunCmd(g *globals) *cobra.Command {
	o := &runOpts{}
	cmd := &cobra.Command{
		Use:   "run [input...]",
		Short: "Validate and route input files",
		Long: `Run validates each input against the selected file configuration and writes
clean_<name>.csv to processed_dir and error_<name>.csv to error_dir.

Inputs are taken from the arguments, from --list, or, when neither is given,
from input_dir filtered by --pattern. Inputs may be local paths or http(s)
URLs. A file with invalid records is not a failure; the command fails only
when a file could not be processed or a post-run hook failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g, args)
		},
	}
	o.file.register(cmd)
	cmd.Flags().StringVar(&o.list, "list", "", "file listing inputs, one per line")
	cmd.Flags().StringVar(&o.pattern, "pattern", "*", "glob applied to input_dir when no inputs are given")
	cmd.Flags().IntVar(&o.concurrency, "concurrency", 0, "files processed at once (default: system concurrency)")
	return cmd
}

func (o *runOpts) inputs(g *globals, args []string) ([]string, error) {
	inputs := append([]string(nil), args...)
	if o.list != "" {
		listed, err := file.ReadList(o.list)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, listed...)
	}
	if len(inputs) > 0 {
		return inputs, nil
	}
	if g.sys.InputDir == "" {
		return nil, failure.Configuration("no inputs given and input_dir is not set")
	}
	return file.Glob(g.sys.InputDir, o.pattern)
}

func (o *runOpts) run(cmd *cobra.Command, g *globals, args []string) error {
	if err := checkSystem(g.sys); err != nil {
		return err
	}
	f, key, err := o.file.resolve(g.sys)
	if err != nil {
		return err
	}
	inputs, err := o.inputs(g, args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no input files")
		return nil
	}
	build, err := builder(g.sys, f, key)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	flush := setupMetrics(g.sys)
	defer flush()

	limit := o.concurrency
	if limit <= 0 {
		limit = g.sys.Concurrency
	}
	results, err := pipeline.RunAll(ctx, inputs, limit, build)
	printSummary(cmd.OutOrStdout(), results)
	return err
}
