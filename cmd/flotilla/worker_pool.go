package main

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// WorkerPool executes a homogeneous set of jobs with a fixed concurrency
// limit. It owns no job logic, only scheduling and lifetime: jobs are
// handed to workers through an internal queue and their results are
// merged through a single collector goroutine.
type WorkerPool struct {
	concurrency int
	log         *log.Logger
}

// NewWorkerPool returns a pool that runs at most concurrency jobs at the
// same time. concurrency must be a positive integer.
func NewWorkerPool(concurrency int, logger *log.Logger) (*WorkerPool, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be a positive integer, got %d", concurrency)
	}
	return &WorkerPool{concurrency: concurrency, log: logger}, nil
}

// RunAll executes all jobs and blocks until every one of them has
// completed, successfully or not. It returns the frozen result map,
// keyed by each job's ResultID.
//
// Jobs run in isolation: a panicking job is converted into a Failure
// result at the worker boundary and does not abort its siblings.
func (p *WorkerPool) RunAll(ctx context.Context, jobs []Job) (ResultMap, error) {
	if len(jobs) == 0 {
		return ResultMap{}, nil
	}

	agg := NewAggregator(len(jobs))
	queue := make(chan Job)
	results := make(chan types.JobResult)

	workers := p.concurrency
	if len(jobs) < workers {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				results <- execute(ctx, j)
			}
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for r := range results {
			agg.Record(r)
		}
	}()

	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	wg.Wait()
	close(results)
	<-collectorDone

	return agg.Freeze()
}

// execute is the worker boundary: it runs the job and turns any panic
// into a Failure result carrying a diagnostic message.
func execute(ctx context.Context, j Job) (result types.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.JobResult{
				ID:       j.ResultID(),
				Name:     j.Name(),
				Phase:    j.Phase(),
				Status:   types.Failure,
				Messages: []string{fmt.Sprintf("%s job %s aborted unexpectedly: %v", j.Phase(), j.Name(), r)},
			}
		}
	}()
	return j.Execute(ctx)
}
