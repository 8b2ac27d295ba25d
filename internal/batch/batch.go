// Package batch fans the status engine out over the cross product of
// cluster/service/instance selections. Workers pass results back over a
// channel; nothing shares a mutable collection. Results arrive in completion
// order; callers must not depend on output ordering, only on per-identity
// content.
package batch

import (
	"context"
	"sync"

	"github.com/meshstat/meshstat/internal/observability"
)

// Exit codes of a batch run. Fatal argument/config errors exit with a
// distinct code before any fetch begins; that is the caller's concern.
const (
	ExitOK     = 0
	ExitFailed = 1
)

// Target is one (cluster, service) pair with the instances to query on it.
type Target struct {
	Cluster   string
	Service   string
	Instances map[string]string // instance name to instance type name
}

// Result is one target's outcome. A sub-task's fatal error is captured here
// as a nonzero code plus output lines; it never cancels sibling tasks.
type Result struct {
	Cluster  string
	Service  string
	ExitCode int
	Output   []string
}

// TaskFunc produces the result for one target.
type TaskFunc func(ctx context.Context, target Target) Result

// Runner executes targets on a bounded worker pool. The concurrency ceiling
// is fixed and independent of input size.
type Runner struct {
	Workers int
	Metrics *observability.Metrics
}

// Run executes fn once per target and returns the aggregate exit code plus
// all results in completion order. The aggregate is ExitOK only if every
// sub-task succeeded.
func (r *Runner) Run(ctx context.Context, targets []Target, fn TaskFunc) (int, []Result) {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(targets) {
		workers = len(targets)
	}
	if len(targets) == 0 {
		return ExitOK, nil
	}

	jobs := make(chan Target)
	resultCh := make(chan Result, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				resultCh <- fn(ctx, target)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, target := range targets {
			select {
			case jobs <- target:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	exitCode := ExitOK
	results := make([]Result, 0, len(targets))
	for res := range resultCh {
		if res.ExitCode != ExitOK {
			exitCode = ExitFailed
		}
		if r.Metrics != nil {
			outcome := "ok"
			if res.ExitCode != ExitOK {
				outcome = "failed"
			}
			r.Metrics.BatchTasksTotal.WithLabelValues(outcome).Inc()
		}
		results = append(results, res)
	}
	return exitCode, results
}
