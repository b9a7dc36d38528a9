package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli"
)

// Version contains the release version of flotilla, adhering to SemVer.
const Version = "0.1.0"

// VersionSuffix is populated at build-time with -ldflags and typically
// contains the Git SHA1 of the tip that the binary is build from. It is then
// appended to Version.
var VersionSuffix string

func main() {
	app := cli.NewApp()
	app.Name = "flotilla"
	app.Usage = "Build Docker images and run containers from them in different environments"
	app.HideVersion = false
	app.Version = Version
	if VersionSuffix != "" {
		app.Version = Version + "-" + VersionSuffix[:7]
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "file, f",
			Value: "flotilla.yml",
			Usage: "Load configuration from `FILE`",
		},
		cli.IntFlag{
			Name:  "threads, t",
			Usage: "Maximum number of builds/runs executing at the same time (overrides the configuration file)",
		},
		cli.BoolFlag{
			Name:  "build-only",
			Usage: "Build the Docker images but don't run any containers",
		},
		cli.BoolFlag{
			Name:  "disable-logging",
			Usage: "Completely disable log output; only the exit status is reported",
		},
	}
	app.Action = func(c *cli.Context) error {
		cfg, err := parseConfigFromCli(c)
		if err != nil {
			return err
		}

		logger := log.New(os.Stderr, "", log.LstdFlags)
		if cfg.DisableLogging {
			logger = log.New(io.Discard, "", 0)
		}

		engine, err := NewDockerEngine(logger)
		if err != nil {
			return err
		}
		defer func() {
			cerr := engine.Close()
			if cerr != nil {
				logger.Printf("could not close docker client: %s", cerr)
			}
		}()

		o, err := NewOrchestrator(cfg, engine, c.Bool("build-only"), logger)
		if err != nil {
			return err
		}

		failed, err := o.Run(context.Background())
		if err != nil {
			return err
		}
		if failed > 0 {
			return cli.NewExitError("", failed)
		}
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func parseConfigFromCli(c *cli.Context) (*Config, error) {
	f, err := os.Open(c.String("file"))
	if err != nil {
		return nil, fmt.Errorf("cannot parse configuration; %s", err)
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, err
	}

	if c.Int("threads") > 0 {
		cfg.Threads = c.Int("threads")
	}
	if c.Bool("disable-logging") {
		cfg.DisableLogging = true
	}
	return cfg, nil
}
