package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/gemmbench/internal/config"
	"github.com/fxnlabs/gemmbench/internal/logger"
	"github.com/fxnlabs/gemmbench/internal/metrics"
	"github.com/tebeka/atexit"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const defaultConfigPath = "gemmbench.yaml"

// env holds what the Before hook prepared for the commands.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func newApp() (*cli.App, *env) {
	e := &env{}
	app := &cli.App{
		Name:  "gemmbench",
		Usage: "Sweep GEMM kernel timings under hipprof and verify a candidate kernel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "Path to the configuration file",
				EnvVars: []string{"GEMMBENCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Override logger.verbosity (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Do not print the banner",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Args().First() == "init" {
				return nil
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			if v := c.String("verbosity"); v != "" {
				cfg.Logger.Verbosity = v
			}
			if err := cfg.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("invalid configuration:\n%v", err), 2)
			}

			log, err := logger.New(cfg.Logger.Verbosity, cfg.Logger.Encoding)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			atexit.Register(func() { _ = log.Sync() })
			if path := cfg.Metrics.Textfile; path != "" {
				atexit.Register(func() {
					if err := metrics.WriteTextfile(path); err != nil {
						log.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
					}
				})
			}

			if !c.Bool("quiet") && c.Args().First() != "" {
				fmt.Fprintln(c.App.Writer, figure.NewFigure("gemmbench", "", true).String())
			}
			e.cfg, e.log = cfg, log
			return nil
		},
		// exit codes are handled in main so atexit handlers always run
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			initCommand(),
			shapesCommand(e),
			sweepCommand(e),
			kernelTimeCommand(e),
			extractCommand(e),
			verifyCommand(e),
			verifySummaryCommand(e),
		},
	}
	return app, e
}

// loadConfig reads the configured file. A missing file at the default
// location falls back to the built-in defaults; an explicitly named one
// must exist.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) && !c.IsSet("config") {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app, e := newApp()
	err := app.RunContext(ctx, os.Args)
	stop()

	if err != nil {
		if e.log != nil {
			e.log.Error("command failed", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	atexit.Exit(exitCode(err))
}
