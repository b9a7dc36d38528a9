package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// Execute builds the job's image and reports the outcome. The raw build
// output is forwarded line by line to the job's logger.
func (j *BuildJob) Execute(ctx context.Context) types.JobResult {
	start := time.Now()
	result := types.JobResult{
		ID:     j.id,
		Name:   j.Spec.Name,
		Phase:  types.PhaseBuild,
		Status: types.Failure,
	}

	j.log.Printf("Build %s image...", j.Spec.Name)
	out := &lineWriter{log: j.log, prefix: "[" + j.Spec.Name + "]"}

	ref, err := j.engine.BuildImage(ctx, j.Spec, j.Tag, out)
	out.Flush()
	result.Duration = time.Since(start)

	if err != nil {
		msg := fmt.Sprintf("Build image %s failed. [Duration: %s]", j.Spec.Name, formatDuration(result.Duration))
		j.log.Printf("%s (%s)", msg, err)
		result.Messages = append(result.Messages, msg)
		return result
	}

	result.Status = types.Success
	result.Build = &types.BuildPayload{ArtifactRef: ref}
	msg := fmt.Sprintf("%s image created. [Duration: %s]", j.Spec.Name, formatDuration(result.Duration))
	j.log.Print(msg)
	result.Messages = append(result.Messages, msg)
	return result
}

// Execute starts the job's container, streams its logs until they are
// exhausted and waits for it to exit. A non-zero container exit code is a
// job failure, not an error.
func (j *RunJob) Execute(ctx context.Context) types.JobResult {
	start := time.Now()
	result := types.JobResult{
		ID:     j.id,
		Name:   j.Container,
		Phase:  types.PhaseRun,
		Status: types.Failure,
	}

	fail := func(err error) types.JobResult {
		result.Duration = time.Since(start)
		msg := fmt.Sprintf("Container %s run failed. [Duration: %s]", j.Container, formatDuration(result.Duration))
		j.log.Printf("%s (%s)", msg, err)
		result.Messages = append(result.Messages, msg)
		return result
	}

	j.log.Printf("Starting container %s...", j.Container)
	handle, err := j.engine.RunContainer(ctx, j.ArtifactRef, j.Container, j.Env, j.Volumes)
	if err != nil {
		return fail(err)
	}

	out := &lineWriter{log: j.log, prefix: "[" + j.Container + "]"}
	streamErr := handle.StreamLogs(ctx, out)
	out.Flush()

	// wait even if streaming broke, so the container is reaped and its
	// exit code recorded
	exitCode, err := handle.Wait(ctx)
	if err != nil {
		return fail(err)
	}
	result.Run = &types.RunPayload{ExitCode: exitCode}
	if streamErr != nil {
		return fail(streamErr)
	}

	result.Duration = time.Since(start)
	if exitCode != 0 {
		msg := fmt.Sprintf("Container %s run failed. [Duration: %s]", j.Container, formatDuration(result.Duration))
		j.log.Printf("%s (exit code %d)", msg, exitCode)
		result.Messages = append(result.Messages, msg)
		return result
	}

	result.Status = types.Success
	msg := fmt.Sprintf("Container %s run succeeded. [Duration: %s]", j.Container, formatDuration(result.Duration))
	j.log.Print(msg)
	result.Messages = append(result.Messages, msg)
	return result
}

// lineWriter forwards every full line written to it to a logger,
// prepending a fixed prefix. Carriage returns and trailing newlines are
// stripped so docker's progress output stays readable.
type lineWriter struct {
	log    *log.Logger
	prefix string
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it buffered
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any trailing output that was not newline-terminated.
func (w *lineWriter) Flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	w.log.Printf("%s %s", w.prefix, line)
}
