package main

import (
	"strings"
	"testing"
	"time"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

func TestSummarize(t *testing.T) {
	imageResults := ResultMap{
		"1": {ID: "1", Name: "b", Status: types.Success, Messages: []string{"b image created."}},
		"2": {ID: "2", Name: "a", Status: types.Success, Messages: []string{"a image created."}},
	}
	containerResults := ResultMap{
		"3": {ID: "3", Name: "a_123456", Status: types.Failure, Messages: []string{"Container a_123456 run failed."}},
	}

	s := Summarize(imageResults, containerResults,
		types.Tally{Succeeded: 2, Expected: 2},
		types.Tally{Succeeded: 0, Expected: 1},
		SummaryOpts{Project: "myproj", Threads: 4, Duration: 83456 * time.Millisecond})

	lines := s.Lines()
	assertEq(lines[0], "Summary for project myproj:", t)
	// messages are ordered by job name
	assertEq(lines[1], "a image created.", t)
	assertEq(lines[2], "b image created.", t)
	assertEq(lines[3], "Container a_123456 run failed.", t)
	assertEq(lines[4], "Threads: 4", t)
	assertEq(lines[5], "Images: 2/2", t)
	assertEq(lines[6], "Containers: 0/1", t)
	assertEq(lines[7], "Total duration: 0h 01m 23.46s", t)
}

func TestSummarizeBuildOnly(t *testing.T) {
	imageResults := ResultMap{
		"1": {ID: "1", Name: "a", Status: types.Success, Messages: []string{"a image created."}},
	}

	s := Summarize(imageResults, ResultMap{},
		types.Tally{Succeeded: 1, Expected: 1},
		types.Tally{},
		SummaryOpts{Threads: 2, BuildOnly: true, Duration: time.Second})

	out := strings.Join(s.Lines(), "\n")
	if strings.Contains(out, "Containers:") {
		t.Fatalf("Expected no container tally in build-only mode, got %q", out)
	}
	if !strings.Contains(out, "Images: 1/1") {
		t.Fatalf("Expected image tally, got %q", out)
	}
	assertEq(s.Lines()[0], "Summary:", t)
}

func TestFormatDuration(t *testing.T) {
	assertEq(formatDuration(3723456*time.Millisecond), "1h 02m 03.46s", t)
	assertEq(formatDuration(4200*time.Millisecond), "0h 00m 04.20s", t)
	assertEq(formatDuration(0), "0h 00m 00.00s", t)
}

func TestTally(t *testing.T) {
	tally := types.Tally{Succeeded: 2, Expected: 5}
	assertEq(tally.Failed(), 3, t)
	assertEq(tally.Ok(), false, t)
	assertEq(types.Tally{Succeeded: 1, Expected: 1}.Ok(), true, t)
}
