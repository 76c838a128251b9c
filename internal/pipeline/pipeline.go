// Package pipeline drives one input file through read, validate and route,
// then triggers the post-processing collaborators.
//
// An Orchestrator owns everything it touches for the file: the reader, the
// validation chain (including duplicate-tracking state) and both sinks. It
// runs once. Several Orchestrators may run concurrently (see RunAll) as long
// as each was built from its own Options; the config.File may be shared.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"recordpipe/internal/config"
	"recordpipe/internal/datasource/httpds"
	"recordpipe/internal/failure"
	"recordpipe/internal/logging"
	"recordpipe/internal/metrics"
	"recordpipe/internal/parser"
	"recordpipe/internal/sink"
	"recordpipe/internal/validator"
	"recordpipe/pkg/records"
)

// Notifier delivers an error report for a finished run.
type Notifier interface {
	NotifyErrors(ctx context.Context, location string, count int) error
}

// Loader bulk-loads a clean file into target.
type Loader interface {
	Load(ctx context.Context, location, target string) error
}

// OpenFunc constructs a fresh reader over path.
type OpenFunc func(ctx context.Context, path string, f config.File) (parser.Reader, error)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("pipeline: orchestrator already run")

// Options configures one run.
type Options struct {
	Input        string
	File         config.File
	ProcessedDir string
	ErrorDir     string

	// Job labels metrics; defaults to the input's base name without extension.
	Job string
	// RunID correlates log entries; generated when empty.
	RunID string

	// Notifier and Loader are optional; nil skips the hook.
	Notifier Notifier
	Loader   Loader

	// Open overrides reader construction; defaults to parser.Open.
	Open OpenFunc
}

// Result summarizes a run. Counts and paths are filled in even when Run
// returns an error, reflecting how far the run got.
type Result struct {
	RunID       string
	Input       string
	Success     int
	Errors      int
	SuccessPath string
	ErrorPath   string
	Duration    time.Duration

	// Err is the file's failure when the Result comes from RunAll.
	Err error
}

// Total is the number of records routed.
func (r Result) Total() int { return r.Success + r.Errors }

// Orchestrator runs the pipeline for one file.
type Orchestrator struct {
	opts  Options
	chain *validator.Chain
	open  OpenFunc
	comma rune

	successPath, errorPath string

	state atomic.Int32
	once  sync.Once
}

// New validates the file configuration and builds the validation chain.
// Configuration problems surface here, before any file is touched.
func New(opts Options) (*Orchestrator, error) {
	if strings.TrimSpace(opts.Input) == "" {
		return nil, failure.Configuration("input path must not be empty")
	}
	if err := config.Err(config.ValidateFile(opts.File)); err != nil {
		return nil, err
	}
	chain, err := validator.Build(opts.File)
	if err != nil {
		return nil, err
	}
	if opts.Job == "" {
		base := outputName(opts.Input)
		opts.Job = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if opts.RunID == "" {
		opts.RunID = logging.NewRunID()
	}
	open := opts.Open
	if open == nil {
		open = parser.Open
	}
	o := &Orchestrator{
		opts:  opts,
		chain: chain,
		open:  open,
		comma: opts.File.Options.Rune("output_delimiter", ','),
	}
	o.successPath, o.errorPath = sink.Paths(opts.ProcessedDir, opts.ErrorDir, outputName(opts.Input))
	return o, nil
}

// Outputs returns the paths the clean and error files will be published at.
func (o *Orchestrator) Outputs() (successPath, errorPath string) {
	return o.successPath, o.errorPath
}

// State reports the orchestrator's current state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

func (o *Orchestrator) setState(s State) { o.state.Store(int32(s)) }

// Run processes the input file. Non-zero error counts are not failures; only
// fatal conditions (missing file, parse error, sink write error, validator
// panic) and hook failures are returned. Hook failures are returned together
// with a complete Result.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	first := false
	o.once.Do(func() { first = true })
	if !first {
		return Result{}, ErrAlreadyRun
	}

	start := time.Now()
	ctx = logging.WithRunID(ctx, o.opts.RunID)
	log := logging.WithFields(ctx, "file", o.opts.Input)

	res := Result{RunID: o.opts.RunID, Input: o.opts.Input}
	res.SuccessPath, res.ErrorPath = o.Outputs()

	log.Info("pipeline: started", "validators", strings.Join(o.chain.Names(), ","))
	err := o.process(ctx, &res)
	if err != nil {
		o.setState(Done)
		res.Duration = time.Since(start)
		log.Error("pipeline: failed", "stage", failure.StageOf(err), "err", err)
		return res, err
	}

	hookErr := o.postProcess(ctx, res)
	o.setState(Done)
	res.Duration = time.Since(start)
	log.Info("pipeline: done",
		"success", res.Success,
		"errors", res.Errors,
		"clean", res.SuccessPath,
		"error_file", res.ErrorPath,
		"elapsed", res.Duration.Truncate(time.Millisecond),
	)
	return res, hookErr
}

// process primes (when needed), then reads, validates and routes every
// record. The reader and both sinks are released on every path.
func (o *Orchestrator) process(ctx context.Context, res *Result) error {
	if o.chain.NeedsPriming() {
		o.setState(Priming)
		t0 := time.Now()
		err := o.prime(ctx)
		metrics.RecordStep(o.opts.Job, "prime", err, time.Since(t0))
		if err != nil {
			return err
		}
	}

	o.setState(Reading)
	t0 := time.Now()
	rd, err := o.open(ctx, o.opts.Input, o.opts.File)
	if err != nil {
		err = failure.AtStage(failure.StageReading, err)
		metrics.RecordStep(o.opts.Job, "read", err, time.Since(t0))
		return err
	}

	router, err := sink.Open(res.SuccessPath, res.ErrorPath, o.opts.File.ColumnNames(), o.comma)
	if err != nil {
		_ = rd.Close()
		metrics.RecordStep(o.opts.Job, "read", err, time.Since(t0))
		return err
	}

	err = o.loop(ctx, rd, router)
	if cerr := rd.Close(); err == nil && cerr != nil {
		err = failure.AtStage(failure.StageReading, cerr)
	}
	res.Success, res.Errors = router.Counts()
	metrics.RecordStep(o.opts.Job, "read", err, time.Since(t0))
	if err != nil {
		_ = router.Abort()
		return err
	}

	o.setState(Finalizing)
	t0 = time.Now()
	err = router.Close()
	metrics.RecordStep(o.opts.Job, "write", err, time.Since(t0))
	if err != nil {
		return err
	}

	metrics.RecordRow(o.opts.Job, metrics.KindRead, int64(res.Total()))
	metrics.RecordRow(o.opts.Job, metrics.KindValid, int64(res.Success))
	metrics.RecordRow(o.opts.Job, metrics.KindInvalid, int64(res.Errors))
	return nil
}

// loop is the per-record read, validate, route cycle. A panic becomes a fatal
// error attributed to the stage that raised it (validating for the chain,
// writing for the router); the caller still releases the reader and sinks.
func (o *Orchestrator) loop(ctx context.Context, rd parser.Reader, router outcomeRouter) (err error) {
	line := 0
	defer func() {
		if r := recover(); r != nil {
			stage, what := failure.StageValidating, "validator"
			if o.State() == Routing {
				stage, what = failure.StageWriting, "router"
			}
			err = &failure.Error{
				Stage: stage,
				Path:  o.opts.Input,
				Line:  line,
				Err:   fmt.Errorf("%s panic: %v", what, r),
			}
		}
	}()

	for {
		if cerr := ctx.Err(); cerr != nil {
			return failure.AtStage(failure.StageReading, cerr)
		}
		rec, rerr := rd.Next()
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return failure.AtStage(failure.StageReading, rerr)
		}
		line = rec.Line()

		o.setState(Validating)
		out := o.chain.Outcome(rec)

		o.setState(Routing)
		if werr := router.Route(out); werr != nil {
			return failure.AtStage(failure.StageWriting, werr)
		}
		o.setState(Reading)
	}
}

// outcomeRouter is the part of *sink.Router the record loop uses.
type outcomeRouter interface {
	Route(records.Outcome) error
}

// prime feeds every record of a separate, fresh reader to the validators that
// need to see the whole file first (flag-all duplicates).
func (o *Orchestrator) prime(ctx context.Context) error {
	rd, err := o.open(ctx, o.opts.Input, o.opts.File)
	if err != nil {
		return failure.AtStage(failure.StageReading, err)
	}
	defer rd.Close()

	for {
		if cerr := ctx.Err(); cerr != nil {
			return failure.AtStage(failure.StageReading, cerr)
		}
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return failure.AtStage(failure.StageReading, err)
		}
		o.chain.Prime(rec)
	}
}

// postProcess runs the notification and load hooks. Their failures are
// joined; neither prevents the other from running.
func (o *Orchestrator) postProcess(ctx context.Context, res Result) error {
	var errs []error

	if res.Errors > 0 && o.opts.Notifier != nil {
		o.setState(Notifying)
		t0 := time.Now()
		err := o.opts.Notifier.NotifyErrors(ctx, res.ErrorPath, res.Errors)
		metrics.RecordStep(o.opts.Job, "notify", err, time.Since(t0))
		if err != nil {
			errs = append(errs, failure.AtStage(failure.StageNotifying, err))
		}
	}

	if res.Success > 0 && o.opts.Loader != nil {
		o.setState(Loading)
		t0 := time.Now()
		err := o.opts.Loader.Load(ctx, res.SuccessPath, o.opts.File.TargetTable)
		metrics.RecordStep(o.opts.Job, "load", err, time.Since(t0))
		if err != nil {
			errs = append(errs, failure.AtStage(failure.StageLoading, err))
		}
	}

	return errors.Join(errs...)
}

// outputName is the file name the outputs are derived from.
func outputName(input string) string {
	if httpds.IsURL(input) {
		return httpds.FileName(input)
	}
	return filepath.Base(input)
}
