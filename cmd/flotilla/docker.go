package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
	"github.com/moby/go-archive"

	"github.com/flotilla-dev/flotilla/pkg/types"
)

// Engine is the capability interface through which jobs talk to the
// container engine. It is implemented by DockerEngine and by test fakes.
type Engine interface {
	// BuildImage builds the image described by spec, tags it with tag
	// and returns an opaque artifact reference to it. The raw build
	// output is written to out.
	BuildImage(ctx context.Context, spec types.ImageSpec, tag string, out io.Writer) (string, error)

	// RunContainer creates and starts a container named name from
	// artifactRef, with the given environment variables and bind
	// mounts.
	RunContainer(ctx context.Context, artifactRef, name string, env, volumes map[string]string) (ContainerHandle, error)
}

// ContainerHandle is a started container. StreamLogs must be consumed
// before Wait; the log stream is finite and not restartable.
type ContainerHandle interface {
	StreamLogs(ctx context.Context, out io.Writer) error

	// Wait blocks until the container exits and returns its exit code.
	Wait(ctx context.Context) (int, error)
}

// DockerEngine implements Engine against the local Docker daemon.
//
// The underlying client is safe for concurrent use, so a single
// DockerEngine is shared by all workers.
type DockerEngine struct {
	client *docker.Client
	log    *log.Logger
}

// NewDockerEngine creates a Docker client from the environment and
// verifies the daemon is reachable.
func NewDockerEngine(logger *log.Logger) (*DockerEngine, error) {
	c, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("could not create docker client; %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon is not available; %s", err)
	}

	return &DockerEngine{client: c, log: logger}, nil
}

// Close releases the engine's connection to the daemon.
func (e *DockerEngine) Close() error {
	return e.client.Close()
}

// BuildImage implements Engine. If there is an error, it will be of type
// types.ErrImageBuild.
func (e *DockerEngine) BuildImage(ctx context.Context, spec types.ImageSpec, tag string, out io.Writer) (string, error) {
	buildArgs := make(map[string]*string, len(spec.BuildArgs))
	for k, v := range spec.BuildArgs {
		v := v
		buildArgs[k] = &v
	}

	buildCtx, err := archive.TarWithOptions(spec.ContextPath, &archive.TarOptions{})
	if err != nil {
		return "", types.ErrImageBuild{Image: spec.Name, Err: err}
	}
	defer buildCtx.Close()

	buildOpts := build.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  spec.Dockerfile,
		BuildArgs:   buildArgs,
		Remove:      spec.RemoveIntermediates,
		ForceRemove: spec.RemoveIntermediates,
	}
	resp, err := e.client.ImageBuild(ctx, buildCtx, buildOpts)
	if err != nil {
		return "", types.ErrImageBuild{Image: spec.Name, Err: err}
	}
	defer resp.Body.Close()

	err = jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil)
	if err != nil {
		return "", types.ErrImageBuild{Image: spec.Name, Err: err}
	}

	insp, err := e.client.ImageInspect(ctx, tag)
	if err != nil {
		return "", types.ErrImageBuild{Image: spec.Name, Err: err}
	}

	ref := shortID(insp.ID)
	e.log.Printf("[engine] built image %s (id=%s size=%s)", tag, ref, units.HumanSize(float64(insp.Size)))
	return ref, nil
}

// RunContainer implements Engine. If there is an error, it will be of
// type types.ErrContainerRun.
func (e *DockerEngine) RunContainer(ctx context.Context, artifactRef, name string, env, volumes map[string]string) (ContainerHandle, error) {
	config := container.Config{Image: artifactRef, Env: envList(env)}

	mnts := make([]mount.Mount, 0, len(volumes))
	for src, target := range volumes {
		mnts = append(mnts, mount.Mount{Type: mount.TypeBind, Source: src, Target: target})
	}
	hostConfig := container.HostConfig{Mounts: mnts}

	res, err := e.client.ContainerCreate(ctx, &config, &hostConfig, nil, nil, name)
	if err != nil {
		return nil, types.ErrContainerRun{Container: name, Err: err}
	}

	err = e.client.ContainerStart(ctx, res.ID, container.StartOptions{})
	if err != nil {
		rerr := e.client.ContainerRemove(ctx, res.ID, container.RemoveOptions{Force: true})
		if rerr != nil {
			e.log.Printf("[engine] cannot remove container %s: %s", name, rerr)
		}
		return nil, types.ErrContainerRun{Container: name, Err: err}
	}

	return &dockerContainer{engine: e, id: res.ID, name: name}, nil
}

type dockerContainer struct {
	engine *DockerEngine
	id     string
	name   string
}

func (c *dockerContainer) StreamLogs(ctx context.Context, out io.Writer) error {
	logs, err := c.engine.client.ContainerLogs(ctx, c.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return types.ErrContainerRun{Container: c.name, Err: err}
	}
	defer logs.Close()

	_, err = stdcopy.StdCopy(out, out, logs)
	if err != nil {
		return types.ErrContainerRun{Container: c.name, Err: err}
	}
	return nil
}

func (c *dockerContainer) Wait(ctx context.Context) (int, error) {
	defer func() {
		// removal must not be tied to ctx, the container is gone either way
		err := c.engine.client.ContainerRemove(context.Background(), c.id, container.RemoveOptions{Force: true})
		if err != nil {
			c.engine.log.Printf("[engine] cannot remove container %s: %s", c.name, err)
		}
	}()

	waitC, errC := c.engine.client.ContainerWait(ctx, c.id, container.WaitConditionNotRunning)
	select {
	case res := <-waitC:
		if res.Error != nil {
			return 0, types.ErrContainerRun{Container: c.name, Err: fmt.Errorf("wait: %s", res.Error.Message)}
		}
		return int(res.StatusCode), nil
	case err := <-errC:
		return 0, types.ErrContainerRun{Container: c.name, Err: err}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// envList renders env as the sorted KEY=VALUE list the docker API
// expects.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
