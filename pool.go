package qfilter

import (
	"context"
	"fmt"
	"sync"

	"github.com/theapemachine/errnie"
)

// Job is one experiment waiting for a worker, tagged with its batch slot.
type Job struct {
	Index      int
	Experiment Experiment
}

// JobResult pairs a finished job with its outcome.
type JobResult struct {
	Index  int
	Result *Result
	Error  error
}

/*
Batch runs several experiments against one backend with a fixed number of
workers. Results come back in submission order; a failed experiment does not
stop the others.
*/
type Batch struct {
	backend Backend
	workers int
}

func NewBatch(backend Backend, workers int) *Batch {
	return &Batch{backend: backend, workers: max(workers, 1)}
}

func (b *Batch) Run(ctx context.Context, experiments ...Experiment) []JobResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Job)
	results := make(chan JobResult, len(experiments))

	var wg sync.WaitGroup
	for i := 0; i < min(b.workers, max(len(experiments), 1)); i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b.work(ctx, id, jobs, results)
		}(i)
	}

	go func() {
		defer close(jobs)
		for i, exp := range experiments {
			select {
			case jobs <- Job{Index: i, Experiment: exp}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	out := make([]JobResult, len(experiments))
	for i := range out {
		out[i] = JobResult{Index: i, Error: fmt.Errorf("experiment %d not run: %w", i, context.Canceled)}
	}
	for r := range results {
		out[r.Index] = r
	}
	return out
}

func (b *Batch) work(ctx context.Context, id int, jobs <-chan Job, results chan<- JobResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}

			errnie.Debug("worker %d - experiment %d (%s)", id, job.Index, job.Experiment.FilterType)
			res, err := Run(ctx, job.Experiment, b.backend)
			if err != nil {
				errnie.Warn("worker %d - experiment %d failed: %v", id, job.Index, err)
			}
			results <- JobResult{Index: job.Index, Result: res, Error: err}
		}
	}
}
