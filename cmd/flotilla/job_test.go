package main

import (
	"bytes"
	"log"
	"regexp"
	"testing"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

func TestExpandBuildJobs(t *testing.T) {
	cfg := &Config{Images: []string{"centos7", "jessie"}, Threads: 2}
	jobs := ExpandBuildJobs(cfg.ImageSpecs(), cfg, newFakeEngine(), testLogger)

	assertEq(len(jobs), 2, t)
	assertEq(jobs[0].Name(), "centos7", t)
	assertEq(jobs[1].Name(), "jessie", t)
	assertEq(jobs[0].Phase(), types.PhaseBuild, t)

	bj, ok := jobs[0].(*BuildJob)
	if !ok {
		t.Fatalf("Expected a *BuildJob, got %T", jobs[0])
	}
	assertEq(bj.Tag, "centos7", t)
	assertEq(bj.Spec.Dockerfile, "Dockerfile_centos7", t)
}

func TestExpandRunJobsMatrix(t *testing.T) {
	cfg := &Config{Images: []string{"a", "b", "c"}, Threads: 2}
	artifacts := map[string]types.BuildPayload{
		"a": {ArtifactRef: "img-a"},
		"b": {ArtifactRef: "img-b"},
		"c": {ArtifactRef: "img-c"},
	}
	environments := []types.EnvironmentSpec{
		{Name: "e2e", Variables: map[string]string{"SUITE": "e2e"}, SkipImages: []string{"b"}},
		{Name: "unit"},
	}

	jobs := ExpandRunJobs(artifacts, environments, cfg, newFakeEngine(), testLogger)

	// 3 images * 2 environments - 1 skip
	assertEq(len(jobs), 5, t)
	for _, j := range jobs {
		assertEq(j.Phase(), types.PhaseRun, t)
	}
}

func TestExpandRunJobsNoEnvironments(t *testing.T) {
	cfg := &Config{Images: []string{"a", "b"}, Threads: 2}
	artifacts := map[string]types.BuildPayload{
		"a": {ArtifactRef: "img-a"},
		"b": {ArtifactRef: "img-b"},
	}

	jobs := ExpandRunJobs(artifacts, nil, cfg, newFakeEngine(), testLogger)

	assertEq(len(jobs), 2, t)
	rj := jobs[0].(*RunJob)
	assertEq(rj.Image, "a", t)
	assertEq(rj.ArtifactRef, "img-a", t)
	if len(rj.Env) != 0 {
		t.Fatalf("Expected empty environment, got %#v", rj.Env)
	}
}

func TestExpandRunJobsExcludesMissingArtifacts(t *testing.T) {
	cfg := &Config{Images: []string{"a", "b"}, Threads: 2}
	// the build of "a" failed, so it has no artifact
	artifacts := map[string]types.BuildPayload{"b": {ArtifactRef: "img-b"}}
	environments := []types.EnvironmentSpec{{Name: "e2e"}}

	jobs := ExpandRunJobs(artifacts, environments, cfg, newFakeEngine(), testLogger)

	assertEq(len(jobs), 1, t)
	assertEq(jobs[0].(*RunJob).Image, "b", t)
}

func TestRunJobNames(t *testing.T) {
	pattern := regexp.MustCompile(`^centos7_e2e_[0-9]{6}$`)
	name := containerName("centos7", "e2e")
	if !pattern.MatchString(name) {
		t.Fatalf("Expected %q to match %s", name, pattern)
	}

	pattern = regexp.MustCompile(`^centos7_[0-9]{6}$`)
	name = containerName("centos7", "")
	if !pattern.MatchString(name) {
		t.Fatalf("Expected %q to match %s", name, pattern)
	}
}

func TestJobIDsAreUnique(t *testing.T) {
	cfg := &Config{Images: []string{"a"}, Threads: 2}
	artifacts := map[string]types.BuildPayload{"a": {ArtifactRef: "img-a"}}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		for _, j := range ExpandRunJobs(artifacts, nil, cfg, newFakeEngine(), testLogger) {
			if seen[j.ResultID()] {
				t.Fatalf("Duplicate job id %s", j.ResultID())
			}
			seen[j.ResultID()] = true
		}
	}
}

func TestWarnUnknownSkips(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	cfg := &Config{Images: []string{"a"}, Threads: 2}
	environments := []types.EnvironmentSpec{
		{Name: "e2e", SkipImages: []string{"a", "ghost"}},
	}

	WarnUnknownSkips(cfg.ImageSpecs(), environments, logger)

	out := buf.String()
	if !regexp.MustCompile(`skips unknown image 'ghost'`).MatchString(out) {
		t.Fatalf("Expected a warning about 'ghost', got %q", out)
	}
	if regexp.MustCompile(`'a'`).MatchString(out) {
		t.Fatalf("Did not expect a warning about 'a', got %q", out)
	}
}
