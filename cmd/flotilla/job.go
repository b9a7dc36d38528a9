package main

import (
	"context"
	"log"
	"math/rand"
	"strconv"

	"github.com/google/uuid"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// A Job is a single unit of work executed by the worker pool. The two
// implementations are BuildJob and RunJob.
type Job interface {
	// ResultID returns the unique key under which the job's result is
	// aggregated.
	ResultID() string

	// Name returns the human-readable job name.
	Name() string

	Phase() types.Phase

	// Execute performs the work and always returns a result; failures
	// are reported through the result's Status, never as an error.
	Execute(ctx context.Context) types.JobResult
}

// BuildJob builds one Docker image.
type BuildJob struct {
	Spec types.ImageSpec

	// Tag is the Docker tag the built image is tagged with.
	Tag string

	id     string
	engine Engine
	log    *log.Logger
}

func (j *BuildJob) ResultID() string   { return j.id }
func (j *BuildJob) Name() string       { return j.Spec.Name }
func (j *BuildJob) Phase() types.Phase { return types.PhaseBuild }

// RunJob runs one container derived from a previously built image, under
// one named environment.
type RunJob struct {
	// Image is the name of the image the container derives from.
	Image string

	// ArtifactRef is the reference returned by the image's build job.
	ArtifactRef string

	// Container is the generated container name, e.g. "centos7_e2e_123456".
	Container string

	Env     map[string]string
	Volumes map[string]string

	id     string
	engine Engine
	log    *log.Logger
}

func (j *RunJob) ResultID() string   { return j.id }
func (j *RunJob) Name() string       { return j.Container }
func (j *RunJob) Phase() types.Phase { return types.PhaseRun }

// ExpandBuildJobs returns one build job per image spec, in order. No
// filtering is applied.
func ExpandBuildJobs(images []types.ImageSpec, cfg *Config, engine Engine, logger *log.Logger) []Job {
	jobs := make([]Job, 0, len(images))
	for _, spec := range images {
		jobs = append(jobs, &BuildJob{
			Spec:   spec,
			Tag:    cfg.ImageTag(spec.Name),
			id:     uuid.NewString(),
			engine: engine,
			log:    logger,
		})
	}
	return jobs
}

// ExpandRunJobs derives the run jobs from the artifacts of the build
// phase and the environment matrix.
//
// With no environments, every image yields exactly one run job with an
// empty environment. Otherwise one job is produced for every
// (image, environment) pair not excluded by the environment's skip list.
// Images absent from artifacts (failed builds) yield no jobs at all.
func ExpandRunJobs(artifacts map[string]types.BuildPayload, environments []types.EnvironmentSpec, cfg *Config, engine Engine, logger *log.Logger) []Job {
	// iterate images in configuration order for deterministic naming
	jobs := []Job{}
	for _, image := range cfg.Images {
		payload, ok := artifacts[image]
		if !ok {
			continue
		}

		if len(environments) == 0 {
			jobs = append(jobs, newRunJob(image, payload.ArtifactRef, "", nil, cfg, engine, logger))
			continue
		}

		for _, env := range environments {
			if env.Skips(image) {
				continue
			}
			jobs = append(jobs, newRunJob(image, payload.ArtifactRef, env.Name, env.Variables, cfg, engine, logger))
		}
	}
	return jobs
}

func newRunJob(image, artifactRef, envName string, vars map[string]string, cfg *Config, engine Engine, logger *log.Logger) *RunJob {
	return &RunJob{
		Image:       image,
		ArtifactRef: artifactRef,
		Container:   containerName(image, envName),
		Env:         vars,
		Volumes:     cfg.Volumes,
		id:          uuid.NewString(),
		engine:      engine,
		log:         logger,
	}
}

// containerName generates the display name of a run job. The random
// suffix keeps concurrent runs of the same image/environment pair apart;
// it is not guaranteed unique, which is why results are keyed by the
// job's ResultID instead.
func containerName(image, env string) string {
	suffix := strconv.Itoa(100000 + rand.Intn(900000))
	if env == "" {
		return image + "_" + suffix
	}
	return image + "_" + env + "_" + suffix
}

// WarnUnknownSkips reports every skip entry that references an image
// absent from the configured image set. Such entries are ignored rather
// than treated as fatal: they cannot influence the job set, but they
// usually indicate a stale configuration.
func WarnUnknownSkips(images []types.ImageSpec, environments []types.EnvironmentSpec, logger *log.Logger) {
	known := make(map[string]bool, len(images))
	for _, spec := range images {
		known[spec.Name] = true
	}
	for _, env := range environments {
		for _, skip := range env.SkipImages {
			if !known[skip] {
				logger.Printf("[expand] environment %s skips unknown image '%s'; entry ignored", env.Name, skip)
			}
		}
	}
}
