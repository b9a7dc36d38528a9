package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flotilla-dev/flotilla/pkg/types"
	"github.com/flotilla-dev/flotilla/pkg/utils"
)

// DefaultThreads is the concurrency limit used when the configuration
// does not set one.
const DefaultThreads = 2

// Environment is the configuration of a single named container
// environment.
type Environment struct {
	Variables map[string]string `yaml:"variables"`

	// SkipImages are image names for which no container is started in
	// this environment.
	SkipImages []string `yaml:"skip_images"`
}

// Config holds the pre-validated inputs the orchestrator needs in order
// to function.
type Config struct {
	ProjectName string `yaml:"project_name"`

	// Images are the names of the images to build. For each name, the
	// build file `Dockerfile_<name>` is expected inside ImagePath.
	Images    []string          `yaml:"images"`
	ImagePath string            `yaml:"image_path"`
	BuildArgs map[string]string `yaml:"build_args"`

	Environments map[string]Environment `yaml:"environments"`

	// Volumes are host-to-container bind mounts, shared by all
	// container runs.
	Volumes map[string]string `yaml:"volumes"`

	Threads             int  `yaml:"threads"`
	RemoveIntermediates bool `yaml:"remove_intermediates"`
	DisableLogging      bool `yaml:"disable_logging"`
}

// ParseConfig reads a YAML configuration from r and returns a valid
// Config or an error.
func ParseConfig(r io.Reader) (*Config, error) {
	cfg := &Config{
		Threads:             DefaultThreads,
		RemoveIntermediates: true,
	}

	dec := yaml.NewDecoder(r)
	err := dec.Decode(cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.Images) == 0 {
		return nil, errors.New("images must be provided")
	}
	seen := make(map[string]bool, len(cfg.Images))
	for _, image := range cfg.Images {
		if image == "" {
			return nil, errors.New("image names cannot be empty")
		}
		if seen[image] {
			return nil, fmt.Errorf("image '%s' is configured more than once", image)
		}
		seen[image] = true
	}

	if cfg.ImagePath == "" {
		return nil, errors.New("image_path must be provided")
	}
	err = utils.PathIsDir(cfg.ImagePath)
	if err != nil {
		return nil, err
	}

	if cfg.Threads < 1 {
		return nil, fmt.Errorf("threads must be a positive integer, got %d", cfg.Threads)
	}

	return cfg, nil
}

// ImageSpecs returns one ImageSpec per configured image, in
// configuration order.
func (cfg *Config) ImageSpecs() []types.ImageSpec {
	specs := make([]types.ImageSpec, 0, len(cfg.Images))
	for _, name := range cfg.Images {
		specs = append(specs, types.ImageSpec{
			Name:                name,
			BuildArgs:           cfg.BuildArgs,
			Dockerfile:          "Dockerfile_" + name,
			ContextPath:         cfg.ImagePath,
			RemoveIntermediates: cfg.RemoveIntermediates,
		})
	}
	return specs
}

// EnvironmentSpecs returns the configured environments sorted by name,
// so that expansion is deterministic.
func (cfg *Config) EnvironmentSpecs() []types.EnvironmentSpec {
	names := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]types.EnvironmentSpec, 0, len(names))
	for _, name := range names {
		env := cfg.Environments[name]
		specs = append(specs, types.EnvironmentSpec{
			Name:       name,
			Variables:  env.Variables,
			SkipImages: env.SkipImages,
		})
	}
	return specs
}

// ImageTag returns the Docker tag under which the image will be built,
// prefixed with the sanitized project name if one is configured.
func (cfg *Config) ImageTag(image string) string {
	if cfg.ProjectName == "" {
		return utils.SanitizeTag(image)
	}
	return utils.SanitizeTag(cfg.ProjectName) + "_" + utils.SanitizeTag(image)
}
