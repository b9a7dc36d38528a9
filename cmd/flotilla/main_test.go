package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

var testLogger = log.New(io.Discard, "", 0)

func assertEq(a, b interface{}, t *testing.T) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Expected %#v and %#v to be equal", a, b)
	}
}

func assert(act, exp interface{}, t *testing.T) {
	t.Helper()
	if !reflect.DeepEqual(act, exp) {
		t.Fatalf("Expected %#v to be %#v", act, exp)
	}
}

func failIfError(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("Expected no error, got: %s", err)
	}
}

// fakeEngine implements Engine in-memory. Failures are injected per
// image name; a gauge tracks how many engine operations are in flight so
// tests can verify the pool's concurrency bound end to end.
type fakeEngine struct {
	mu          sync.Mutex
	buildErr    map[string]error
	runErr      map[string]error
	runExit     map[string]int
	buildDelay  time.Duration
	builds      []string
	runs        []string
	inFlight    int
	maxInFlight int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		buildErr: make(map[string]error),
		runErr:   make(map[string]error),
		runExit:  make(map[string]int),
	}
}

func (e *fakeEngine) begin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
}

func (e *fakeEngine) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight--
}

func (e *fakeEngine) BuildImage(ctx context.Context, spec types.ImageSpec, tag string, out io.Writer) (string, error) {
	e.begin()
	defer e.end()

	if e.buildDelay > 0 {
		time.Sleep(e.buildDelay)
	}

	e.mu.Lock()
	e.builds = append(e.builds, spec.Name)
	err := e.buildErr[spec.Name]
	e.mu.Unlock()
	if err != nil {
		return "", types.ErrImageBuild{Image: spec.Name, Err: err}
	}

	fmt.Fprintf(out, "Step 1/1 : FROM scratch\nSuccessfully tagged %s\n", tag)
	return "img-" + spec.Name, nil
}

func (e *fakeEngine) RunContainer(ctx context.Context, artifactRef, name string, env, volumes map[string]string) (ContainerHandle, error) {
	image := strings.TrimPrefix(artifactRef, "img-")

	e.mu.Lock()
	e.runs = append(e.runs, name)
	err := e.runErr[image]
	exit := e.runExit[image]
	e.mu.Unlock()
	if err != nil {
		return nil, types.ErrContainerRun{Container: name, Err: err}
	}

	e.begin()
	return &fakeContainer{engine: e, exit: exit}, nil
}

type fakeContainer struct {
	engine *fakeEngine
	exit   int
}

func (c *fakeContainer) StreamLogs(ctx context.Context, out io.Writer) error {
	fmt.Fprint(out, "hello from the container\n")
	return nil
}

func (c *fakeContainer) Wait(ctx context.Context) (int, error) {
	c.engine.end()
	return c.exit, nil
}
