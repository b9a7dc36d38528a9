// Package types contains the types that are common between the
// orchestration core and its collaborators.
package types

import "time"

// Phase denotes which of the two execution phases a job belongs to.
type Phase string

const (
	// PhaseBuild covers image build jobs.
	PhaseBuild Phase = "build"

	// PhaseRun covers container run jobs.
	PhaseRun Phase = "run"
)

// Status is the terminal outcome of a job.
type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
)

// ImageSpec describes a single Docker image to be built. It is created
// once from the validated configuration and never mutated.
type ImageSpec struct {
	// Name is the configured image name, unique within a configuration.
	Name string

	// BuildArgs are passed verbatim to the image build.
	BuildArgs map[string]string

	// Dockerfile is the build file path, relative to ContextPath.
	Dockerfile string

	// ContextPath is the directory used as the build context.
	ContextPath string

	// RemoveIntermediates removes intermediate containers after the
	// build.
	RemoveIntermediates bool
}

// EnvironmentSpec describes one named set of container environment
// variables, together with the image names excluded from it.
type EnvironmentSpec struct {
	Name       string
	Variables  map[string]string
	SkipImages []string
}

// Skips returns true if the environment excludes the image.
func (e EnvironmentSpec) Skips(image string) bool {
	for _, skip := range e.SkipImages {
		if skip == image {
			return true
		}
	}
	return false
}

// BuildPayload is the phase-specific payload of a successful image build.
type BuildPayload struct {
	// ArtifactRef is an opaque reference (short image id) to the built
	// image, consumed by the run jobs derived from it.
	ArtifactRef string
}

// RunPayload is the phase-specific payload of a finished container run.
type RunPayload struct {
	ExitCode int
}

// JobResult is the outcome of a single build or run job. It is created
// by exactly one worker and recorded exactly once.
type JobResult struct {
	// ID is the unique aggregation key of the job.
	ID string

	// Name is the human-readable job name, e.g. "centos7_e2e_123456".
	// Unlike ID, its uniqueness is only probabilistic.
	Name string

	Phase    Phase
	Status   Status
	Duration time.Duration

	// Messages are the per-job summary lines, in the order they were
	// produced.
	Messages []string

	// Build is set for build jobs that produced an artifact.
	Build *BuildPayload

	// Run is set for run jobs whose container returned an exit code.
	Run *RunPayload
}

// Tally counts the successful jobs of a phase against the number of jobs
// the phase was expected to execute.
type Tally struct {
	Succeeded int
	Expected  int
}

// Failed returns the number of jobs that did not succeed.
func (t Tally) Failed() int {
	return t.Expected - t.Succeeded
}

// Ok returns true if every expected job succeeded.
func (t Tally) Ok() bool {
	return t.Succeeded == t.Expected
}
