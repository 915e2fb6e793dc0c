package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fxnlabs/gemmbench/fixtures"
	"github.com/fxnlabs/gemmbench/internal/app"
	"github.com/fxnlabs/gemmbench/internal/extract"
	"github.com/fxnlabs/gemmbench/internal/report"
	"github.com/fxnlabs/gemmbench/internal/shape"
	"github.com/fxnlabs/gemmbench/internal/sweep"
	"github.com/fxnlabs/gemmbench/internal/verify"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runApp starts the component graph, runs fn and stops the graph again.
func runApp(ctx context.Context, e *env, fn func(ctx context.Context) error, opts ...fx.Option) error {
	a := app.New(e.cfg, e.log, opts...)
	if err := a.Err(); err != nil {
		if errors.Is(err, extract.ErrEmptyKernelList) {
			return cli.Exit("no kernels configured: set sweep.kernels or sweep.kernelsFile", 2)
		}
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), a.StopTimeout())
	defer cancel()
	return errors.Join(runErr, a.Stop(stopCtx))
}

func shapesFromFlag(c *cli.Context, fallback func() ([]shape.Shape, error)) ([]shape.Shape, error) {
	if c.IsSet("shape") {
		shapes, err := shape.ParseAll(c.StringSlice("shape"))
		if err != nil {
			return nil, cli.Exit(err.Error(), 2)
		}
		return shapes, nil
	}
	return fallback()
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a commented configuration file",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = c.String("config")
			}
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return cli.Exit(fmt.Sprintf("%s already exists, use --force to overwrite", path), 1)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, fixtures.ConfigTemplate, 0644); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Configuration written to %s\n", path)
			return nil
		},
	}
}

func shapesCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "shapes",
		Usage: "List the shapes a sweep or verify run would cover",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Value: "sweep", Usage: "sweep or verify"},
		},
		Action: func(c *cli.Context) error {
			var sc = e.cfg.Sweep.Shapes
			switch c.String("target") {
			case "sweep":
			case "verify":
				sc = e.cfg.Verify.Shapes
			default:
				return cli.Exit("--target must be sweep or verify", 2)
			}
			shapes, err := sc.Enumerate()
			if err != nil {
				return err
			}
			for _, s := range shapes {
				fmt.Fprintln(c.App.Writer, s)
			}
			fmt.Fprintf(c.App.Writer, "Total test cases: %d\n", len(shapes))
			return nil
		},
	}
}

func sweepCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Profile every configured kernel over the shape sweep and append summary rows",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Override sweep.output"},
			&cli.IntFlag{Name: "repeat", Aliases: []string{"r"}, Usage: "Override sweep.repeat"},
			&cli.StringSliceFlag{Name: "shape", Usage: "Sweep only these MxKxN shapes"},
			&cli.BoolFlag{Name: "average", Usage: "Append an Average row when done"},
		},
		Action: func(c *cli.Context) error {
			cfg := e.cfg
			if c.IsSet("output") {
				cfg.Sweep.Output = c.String("output")
			}
			if c.IsSet("repeat") {
				if c.Int("repeat") <= 0 {
					return cli.Exit("--repeat must be positive", 2)
				}
				cfg.Sweep.Repeat = c.Int("repeat")
			}
			if c.Bool("average") {
				cfg.Sweep.WriteAverage = true
			}
			shapes, err := shapesFromFlag(c, cfg.Sweep.Shapes.Enumerate)
			if err != nil {
				return err
			}

			var driver *sweep.Driver
			return runApp(c.Context, e, func(ctx context.Context) error {
				table, err := report.OpenSummaryTable(cfg.Sweep.Output, driver.Labels(), cfg.Sweep.WriteAverage)
				if err != nil {
					return err
				}
				runErr := driver.Run(ctx, shapes, table)
				closeErr := table.Close()

				printStats(c.App.Writer, driver.Stats())
				fmt.Fprintf(c.App.Writer, "Results saved to %s\n", cfg.Sweep.Output)
				return errors.Join(runErr, closeErr)
			}, fx.Populate(&driver))
		},
	}
}

func printStats(w io.Writer, s sweep.Stats) {
	fmt.Fprintf(w, "Shapes: %d, trials: %d, skipped: %d, rows: %d, rows with verdict: %d\n",
		s.Shapes, s.Trials, s.Skipped, s.Rows, s.RowsWithVerdict)
	labels := make([]string, 0, len(s.Missing))
	for label := range s.Missing {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "Missing samples for %s: %d\n", label, s.Missing[label])
	}
}

func kernelTimeCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "kernel-time",
		Usage:     "Profile one command repeatedly and tabulate each kernel's time per run",
		ArgsUsage: "'<run_cmd>' <kernel_list.txt>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output CSV (default hipprof_results_<timestamp>.csv)"},
			&cli.IntFlag{Name: "repeat", Aliases: []string{"r"}, Usage: "Override sweep.repeat"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: gemmbench kernel-time '<run_cmd>' <kernel_list.txt>\n"+
					"example: gemmbench kernel-time 'python test.py' kernel_list.txt", 1)
			}
			program := strings.Fields(c.Args().Get(0))
			if len(program) == 0 {
				return cli.Exit("run command is empty", 1)
			}

			cfg := e.cfg
			cfg.Profiler.Program = program
			cfg.Sweep.KernelsFile = c.Args().Get(1)
			cfg.Sweep.Kernels = nil
			if c.IsSet("repeat") {
				cfg.Sweep.Repeat = c.Int("repeat")
			}
			output := c.String("output")
			if output == "" {
				output = fmt.Sprintf("hipprof_results_%s.csv", time.Now().Format("20060102_150405"))
			}

			var driver *sweep.Driver
			return runApp(c.Context, e, func(ctx context.Context) error {
				set, err := driver.Measure(ctx, shape.Shape{})
				if err != nil {
					return err
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := report.WriteTrialTable(f, set, driver.Labels()); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				printStats(c.App.Writer, driver.Stats())
				fmt.Fprintf(c.App.Writer, "All results saved to: %s\n", output)
				return nil
			}, fx.Populate(&driver))
		},
	}
}

func extractCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Print the kernel times found in profiler artifacts",
		ArgsUsage: "<pmc_results.txt>...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "kernel", Aliases: []string{"k"}, Usage: "Kernel label or wildcard pattern"},
			&cli.StringFlag{Name: "kernels", Usage: "Kernel list file"},
			&cli.StringFlag{Name: "policy", Usage: "Override sweep.policy (first or min)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("usage: gemmbench extract [--kernel pattern]... <pmc_results.txt>...", 1)
			}

			sc := e.cfg.Sweep
			if c.IsSet("kernels") {
				sc.KernelsFile = c.String("kernels")
			}
			if c.IsSet("kernel") {
				sc.KernelsFile = ""
				sc.Kernels = c.StringSlice("kernel")
			}
			kernels, err := sc.CompileKernels()
			if errors.Is(err, extract.ErrEmptyKernelList) {
				return cli.Exit("no kernels given: use --kernel, --kernels or sweep.kernels", 2)
			}
			if err != nil {
				return err
			}
			policyName := sc.Policy
			if c.IsSet("policy") {
				policyName = c.String("policy")
			}
			policy, err := extract.ParsePolicy(policyName)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			for _, path := range c.Args().Slice() {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				found := extract.ExtractAll(string(data), kernels)
				fmt.Fprintln(c.App.Writer, path)
				for _, k := range kernels {
					times := found[k.Pattern()]
					v, ok := extract.Select(times, policy)
					selected := sweep.NotAvailable
					if ok {
						selected = report.FormatSeconds(v)
					} else {
						e.log.Warn("kernel not found in profiler artifact", zap.String("kernel", k.Pattern()), zap.String("path", path))
					}
					formatted := make([]string, len(times))
					for i, t := range times {
						formatted[i] = report.FormatSeconds(t)
					}
					fmt.Fprintf(c.App.Writer, "  %s: %s [%s]\n", k.Pattern(), selected, strings.Join(formatted, ", "))
				}
			}
			return nil
		},
	}
}

// verifySink writes each record to the log and echoes its status line.
type verifySink struct {
	log *report.VerifyLog
	out io.Writer
}

func (s verifySink) Write(rec verify.Record) error {
	fmt.Fprintln(s.out, report.FormatVerifyLine(rec))
	return s.log.Write(rec)
}

func printSummary(w io.Writer, s verify.Summary) {
	fmt.Fprintf(w, "Passed %d / failed %d of %d\n", s.Passed, s.Failed, s.Total)
	if s.Passed == 0 {
		return
	}
	// each maximum is taken on its own, so the triple need not be a passing shape
	fmt.Fprintf(w, "Largest passing dimension (independent maxima): M=%d, K=%d, N=%d\n", s.Max.M, s.Max.K, s.Max.N)
}

func verifyCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Compare the candidate kernel against the reference product over the verify shapes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log", Usage: "Override verify.log"},
			&cli.StringFlag{Name: "backend", Usage: "Override verify.backend"},
			&cli.Int64Flag{Name: "seed", Usage: "Override verify.seed"},
			&cli.StringFlag{Name: "method", Usage: "Override verify.method (full or freivalds)"},
			&cli.StringSliceFlag{Name: "shape", Usage: "Verify only these MxKxN shapes"},
		},
		Action: func(c *cli.Context) error {
			cfg := e.cfg
			if c.IsSet("log") {
				cfg.Verify.Log = c.String("log")
			}
			if c.IsSet("backend") {
				cfg.Verify.Backend = c.String("backend")
			}
			if c.IsSet("seed") {
				cfg.Verify.Seed = c.Int64("seed")
			}
			if c.IsSet("method") {
				cfg.Verify.Method = c.String("method")
			}
			shapes, err := shapesFromFlag(c, cfg.Verify.Shapes.Enumerate)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Total test cases: %d\n", len(shapes))

			var checker *verify.Checker
			return runApp(c.Context, e, func(ctx context.Context) error {
				vlog, err := report.CreateVerifyLog(cfg.Verify.Log)
				if err != nil {
					return err
				}
				summary, runErr := checker.Run(ctx, shapes, verifySink{log: vlog, out: c.App.Writer})
				closeErr := vlog.Close()

				fmt.Fprintln(c.App.Writer)
				printSummary(c.App.Writer, summary)
				fmt.Fprintf(c.App.Writer, "Results saved to %s\n", cfg.Verify.Log)
				return errors.Join(runErr, closeErr)
			}, fx.Populate(&checker))
		},
	}
}

func verifySummaryCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "verify-summary",
		Usage:     "Summarize a verification log",
		ArgsUsage: "[verify_results.txt]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "failures", Usage: "List every failing shape"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = e.cfg.Verify.Log
			}
			records, err := report.ReadVerifyLog(path)
			if err != nil {
				return err
			}
			printSummary(c.App.Writer, verify.Summarize(records))
			if c.Bool("failures") {
				for _, rec := range records {
					if rec.Pass {
						continue
					}
					fmt.Fprintln(c.App.Writer, report.FormatVerifyLine(rec))
					if rec.Err != "" {
						fmt.Fprintf(c.App.Writer, "  Exception: %s\n", rec.Err)
					}
				}
			}
			return nil
		},
	}
}
