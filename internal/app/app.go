// Package app assembles the benchmark components into an fx graph. Commands
// populate only what they use, so a verify run never builds a profiler.
package app

import (
	"context"

	"github.com/fxnlabs/gemmbench/internal/config"
	"github.com/fxnlabs/gemmbench/internal/extract"
	"github.com/fxnlabs/gemmbench/internal/gpu"
	"github.com/fxnlabs/gemmbench/internal/metrics"
	"github.com/fxnlabs/gemmbench/internal/profiler"
	"github.com/fxnlabs/gemmbench/internal/sweep"
	"github.com/fxnlabs/gemmbench/internal/verify"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module provides every component; unneeded constructors never run.
var Module = fx.Options(
	fx.Provide(
		NewBackend,
		fx.Annotate(NewRunner, fx.As(new(profiler.Invoker))),
		NewDriver,
		NewChecker,
	),
	fx.Invoke(RegisterMetricsServer),
)

// New returns an application over cfg. opts typically carry fx.Populate
// targets for the command being run.
func New(cfg *config.Config, log *zap.Logger, opts ...fx.Option) *fx.App {
	return fx.New(Options(cfg, log, opts...))
}

// Options is New without constructing the app, for use with fxtest.
func Options(cfg *config.Config, log *zap.Logger, opts ...fx.Option) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		Module,
		fx.Options(opts...),
	)
}

// NewBackend initializes the configured candidate kernel and releases it on stop.
func NewBackend(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gpu.Manager, error) {
	m, err := gpu.NewManager(cfg.Verify.Backend, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Cleanup()
		},
	})
	return m, nil
}

func NewRunner(cfg *config.Config, log *zap.Logger) (*profiler.Runner, error) {
	return profiler.NewRunner(cfg.ProfilerOptions(), log)
}

func NewDriver(inv profiler.Invoker, cfg *config.Config, log *zap.Logger) (*sweep.Driver, error) {
	kernels, err := cfg.Sweep.CompileKernels()
	if err != nil {
		return nil, err
	}
	policy, err := extract.ParsePolicy(cfg.Sweep.Policy)
	if err != nil {
		return nil, err
	}
	return sweep.New(inv, kernels, sweep.Options{
		Repeat:    cfg.Sweep.Repeat,
		Policy:    policy,
		WorkDir:   cfg.Sweep.WorkDir,
		DebugDump: cfg.Sweep.DebugDump,
		Pause:     cfg.Sweep.Pause,
	}, log)
}

func NewChecker(backend *gpu.Manager, cfg *config.Config, log *zap.Logger) (*verify.Checker, error) {
	method, err := verify.ParseMethod(cfg.Verify.Method)
	if err != nil {
		return nil, err
	}
	return verify.New(backend, verify.Options{
		Atol:       cfg.Verify.Atol,
		Rtol:       cfg.Verify.Rtol,
		Method:     method,
		Iterations: cfg.Verify.Iterations,
		Seed:       cfg.Verify.Seed,
	}, log), nil
}

// RegisterMetricsServer serves /metrics for the lifetime of the app when
// metrics.listen is set.
func RegisterMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) {
	if cfg.Metrics.Listen == "" {
		return
	}
	srv := metrics.NewServer(cfg.Metrics.Listen, log)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: srv.Stop,
	})
}
