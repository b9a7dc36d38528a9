package types

import "fmt"

// ErrImageBuild indicates an error occurred while building a Docker image.
type ErrImageBuild struct {
	Image string
	Err   error
}

func (e ErrImageBuild) Error() string {
	return fmt.Sprintf("could not build docker image '%s': %s", e.Image, e.Err)
}

func (e ErrImageBuild) Unwrap() error {
	return e.Err
}

// ErrContainerRun indicates an error occurred while creating, starting or
// waiting on a Docker container.
type ErrContainerRun struct {
	Container string
	Err       error
}

func (e ErrContainerRun) Error() string {
	return fmt.Sprintf("could not run docker container '%s': %s", e.Container, e.Err)
}

func (e ErrContainerRun) Unwrap() error {
	return e.Err
}
