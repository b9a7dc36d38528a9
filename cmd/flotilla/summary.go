package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// SummaryOpts carries the per-invocation context the summary is rendered
// with.
type SummaryOpts struct {
	Project   string
	Threads   int
	BuildOnly bool
	Duration  time.Duration
}

// Summary is the final report of an invocation.
type Summary struct {
	opts       SummaryOpts
	messages   []string
	images     types.Tally
	containers types.Tally
}

// Summarize renders the frozen result maps of both phases into a
// Summary. It is a pure function: it only constructs text, the caller
// decides where it goes.
func Summarize(imageResults, containerResults ResultMap, images, containers types.Tally, opts SummaryOpts) *Summary {
	s := &Summary{
		opts:       opts,
		images:     images,
		containers: containers,
	}
	s.messages = append(s.messages, orderedMessages(imageResults)...)
	if !opts.BuildOnly {
		s.messages = append(s.messages, orderedMessages(containerResults)...)
	}
	return s
}

// Lines returns the summary as log-ready lines.
func (s *Summary) Lines() []string {
	header := "Summary:"
	if s.opts.Project != "" {
		header = fmt.Sprintf("Summary for project %s:", s.opts.Project)
	}

	lines := []string{header}
	lines = append(lines, s.messages...)
	lines = append(lines, fmt.Sprintf("Threads: %d", s.opts.Threads))
	lines = append(lines, fmt.Sprintf("Images: %d/%d", s.images.Succeeded, s.images.Expected))
	if !s.opts.BuildOnly {
		lines = append(lines, fmt.Sprintf("Containers: %d/%d", s.containers.Succeeded, s.containers.Expected))
	}
	lines = append(lines, "Total duration: "+formatDuration(s.opts.Duration))
	return lines
}

// orderedMessages flattens the per-job messages of a result map, sorted
// by job name so the output is stable across runs.
func orderedMessages(results ResultMap) []string {
	ordered := make([]types.JobResult, 0, len(results))
	for _, r := range results {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	msgs := []string{}
	for _, r := range ordered {
		msgs = append(msgs, r.Messages...)
	}
	return msgs
}

// formatDuration renders d as "0h 00m 12.34s".
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	hours := int(secs) / 3600
	minutes := (int(secs) % 3600) / 60
	seconds := secs - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%dh %02dm %05.2fs", hours, minutes, seconds)
}
