package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// Orchestrator sequences the two phases of an invocation: build all
// images, then run all containers derived from them. It is single-use;
// Run may only be called once.
type Orchestrator struct {
	cfg       *Config
	engine    Engine
	pool      *WorkerPool
	buildOnly bool
	log       *log.Logger

	ran bool
}

// NewOrchestrator wires an orchestrator from the validated configuration
// and an engine.
func NewOrchestrator(cfg *Config, engine Engine, buildOnly bool, logger *log.Logger) (*Orchestrator, error) {
	pool, err := NewWorkerPool(cfg.Threads, logger)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:       cfg,
		engine:    engine,
		pool:      pool,
		buildOnly: buildOnly,
		log:       logger,
	}, nil
}

// Run executes both phases and returns the number of failed jobs, which
// doubles as the process exit code. A non-nil error means the job set
// itself could not be trusted and nothing useful was tallied.
//
// A failing build does not abort the run phase for other images; it only
// removes the failed image's containers from the run phase's job set and
// expected tally.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	if o.ran {
		return 0, errors.New("orchestrator is single-use; Run was already called")
	}
	o.ran = true

	start := time.Now()
	images := o.cfg.ImageSpecs()
	environments := o.cfg.EnvironmentSpecs()

	WarnUnknownSkips(images, environments, o.log)

	o.log.Printf("%d threads", o.cfg.Threads)
	o.log.Printf("%d expected images", len(images))
	if !o.buildOnly {
		o.log.Printf("%d environments", len(environments))
		o.log.Printf("%d expected container runs", expectedRuns(images, environments))
	}

	buildJobs := ExpandBuildJobs(images, o.cfg, o.engine, o.log)
	if len(buildJobs) == 0 {
		return 0, ErrNoResults
	}

	imageResults, err := o.pool.RunAll(ctx, buildJobs)
	if err != nil {
		return 0, err
	}
	buildTally := types.Tally{Succeeded: imageResults.Succeeded(), Expected: len(buildJobs)}

	containerResults := ResultMap{}
	runTally := types.Tally{}
	if !o.buildOnly {
		artifacts := artifactRefs(imageResults)
		runJobs := ExpandRunJobs(artifacts, environments, o.cfg, o.engine, o.log)
		if len(runJobs) == 0 {
			o.log.Print("no container runs to execute")
		} else {
			containerResults, err = o.pool.RunAll(ctx, runJobs)
			if err != nil {
				return 0, err
			}
		}
		runTally = types.Tally{Succeeded: containerResults.Succeeded(), Expected: len(runJobs)}
	}

	summary := Summarize(imageResults, containerResults, buildTally, runTally, SummaryOpts{
		Project:   o.cfg.ProjectName,
		Threads:   o.cfg.Threads,
		BuildOnly: o.buildOnly,
		Duration:  time.Since(start),
	})
	for _, line := range summary.Lines() {
		o.log.Print(line)
	}

	return buildTally.Failed() + runTally.Failed(), nil
}

// artifactRefs collects the artifact references of all successful builds,
// keyed by image name.
func artifactRefs(imageResults ResultMap) map[string]types.BuildPayload {
	artifacts := make(map[string]types.BuildPayload)
	for _, r := range imageResults {
		if r.Status == types.Success && r.Build != nil {
			artifacts[r.Name] = *r.Build
		}
	}
	return artifacts
}

// expectedRuns computes the pre-build expectation of the run phase: one
// run per (image, environment) pair minus the skip matrix, or one run
// per image when no environments are configured. Build failures shrink
// this number later.
func expectedRuns(images []types.ImageSpec, environments []types.EnvironmentSpec) int {
	if len(environments) == 0 {
		return len(images)
	}
	n := 0
	for _, img := range images {
		for _, env := range environments {
			if !env.Skips(img.Name) {
				n++
			}
		}
	}
	return n
}
