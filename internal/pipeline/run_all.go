package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"recordpipe/internal/failure"
)

// BuildFunc constructs the Orchestrator for one input.
type BuildFunc func(input string) (*Orchestrator, error)

// RunAll processes inputs with at most limit files in flight (limit <= 0
// means one at a time). Files are independent: a failing file does not stop
// the others. Once ctx is done no further files are started.
//
// Every orchestrator is built before any file is started. An input whose
// clean or error file would be published at a path already claimed by an
// earlier input is not run and fails with a ConfigurationError.
//
// results[i] belongs to inputs[i] and carries that file's error in Err. The
// returned error joins the per-file failures, each prefixed with its input
// path.
func RunAll(ctx context.Context, inputs []string, limit int, build BuildFunc) ([]Result, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]Result, len(inputs))
	errs := make([]error, len(inputs))
	fail := func(i int, err error) {
		results[i] = Result{Input: inputs[i], Err: err}
		errs[i] = fmt.Errorf("%s: %w", inputs[i], err)
	}

	orchs := make([]*Orchestrator, len(inputs))
	claimed := make(map[string]string, 2*len(inputs))
	for i, in := range inputs {
		o, err := build(in)
		if err != nil {
			fail(i, err)
			continue
		}
		okPath, errPath := o.Outputs()
		if owner, taken := firstClaim(claimed, okPath, errPath); taken {
			fail(i, failure.Configuration("output %s collides with input %s", owner.path, owner.input))
			continue
		}
		claimed[okPath] = in
		claimed[errPath] = in
		orchs[i] = o
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, o := range orchs {
		if o == nil {
			continue
		}
		if ctx.Err() != nil {
			results[i] = Result{Input: inputs[i], Err: ctx.Err()}
			errs[i] = fmt.Errorf("%s: not started: %w", inputs[i], ctx.Err())
			continue
		}
		g.Go(func() error {
			res, err := o.Run(ctx)
			res.Err = err
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", inputs[i], err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

type claim struct{ path, input string }

func firstClaim(claimed map[string]string, paths ...string) (claim, bool) {
	for _, p := range paths {
		if in, ok := claimed[p]; ok {
			return claim{path: p, input: in}, true
		}
	}
	return claim{}, false
}
