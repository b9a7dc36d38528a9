package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// ResultMap maps a job's unique id to its result. It is append-only
// while a phase executes and read-only once the phase's aggregator has
// been frozen.
type ResultMap map[string]types.JobResult

// Succeeded returns the number of successful results in m.
func (m ResultMap) Succeeded() int {
	n := 0
	for _, r := range m {
		if r.Status == types.Success {
			n++
		}
	}
	return n
}

// ErrNoResults is returned by Freeze when no results were ever recorded.
// It signals a configuration or expansion bug upstream.
var ErrNoResults = errors.New("no job results were recorded")

// ErrIncompleteResults is returned by Freeze when it is called before
// every expected result has been recorded. The orchestrator only freezes
// after the worker pool's barrier has returned, so hitting this
// indicates a wiring bug.
type ErrIncompleteResults struct {
	Recorded int
	Expected int
}

func (e ErrIncompleteResults) Error() string {
	return fmt.Sprintf("only %d of %d expected job results were recorded", e.Recorded, e.Expected)
}

// Aggregator accumulates the results of one phase. Record may be called
// concurrently by multiple workers; writes are serialized so no result
// is lost or partially written.
type Aggregator struct {
	mu       sync.Mutex
	expected int
	results  ResultMap
}

// NewAggregator returns an empty Aggregator expecting exactly expected
// results.
func NewAggregator(expected int) *Aggregator {
	return &Aggregator{
		expected: expected,
		results:  make(ResultMap, expected),
	}
}

// Record stores r. Each job writes its result exactly once; ids are
// unique by construction.
func (a *Aggregator) Record(r types.JobResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[r.ID] = r
}

// Freeze verifies all expected results are present and hands the map
// over to the caller. The Aggregator must not be used afterwards.
func (a *Aggregator) Freeze() (ResultMap, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.results) == 0 {
		return nil, ErrNoResults
	}
	if len(a.results) < a.expected {
		return nil, ErrIncompleteResults{Recorded: len(a.results), Expected: a.expected}
	}
	return a.results, nil
}
