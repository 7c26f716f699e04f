//go:build linux

// Command supervisor judges one untrusted C++ submission: it compiles the
// source and runs the produced binary under resource ceilings, reaping
// every descendant process, and prints exactly one verdict JSON line on
// stdout. Its own exit code mirrors the verdict class.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/bench"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/compile"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/config"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/execute"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/limiter"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/reaper"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/verdict"
)

var (
	sourcePath   string
	stdinPath    string
	configPath   string
	benchRepeats int
	noSeal       bool
	allowNetwork bool
	debug        bool

	cpuTimeMs      int64
	wallClockMs    int64
	memoryKb       int64
	maxOutputBytes int64
)

var rootCmd = &cobra.Command{
	Use:          "supervisor",
	Short:        "execution supervisor for untrusted C++ submissions",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "compile and run one submission, print its verdict",
	RunE:  runSubmission,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&sourcePath, "source", "", "C++ source file of the submission (required)")
	f.StringVar(&stdinPath, "stdin", "", "file forwarded to the submission's stdin")
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.IntVar(&benchRepeats, "bench", 0, "measure N repeated runs after an accepted verdict")
	f.BoolVar(&noSeal, "no-seal", false, "run the artifact from disk instead of a sealed memfd")
	f.BoolVar(&allowNetwork, "allow-network", false, "skip network isolation for the judged process")
	f.BoolVar(&debug, "debug", false, "verbose logging")
	f.Int64Var(&cpuTimeMs, "cpu-ms", 0, "override run CPU time limit (ms)")
	f.Int64Var(&wallClockMs, "wall-ms", 0, "override run wall clock limit (ms)")
	f.Int64Var(&memoryKb, "memory-kb", 0, "override run memory limit (KiB)")
	f.Int64Var(&maxOutputBytes, "output-bytes", 0, "override run output limit (bytes)")
	runCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(runCmd)
}

// exit code of the verdict; cobra errors leave it at the internal value
var exitCode = verdict.InternalError.ExitCode()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode)
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	// stdout stays reserved for the verdict line
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func runSubmission(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return emit(log, verdict.Internal(err))
	}
	applyOverrides(cfg)

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return emit(log, verdict.Internal(fmt.Errorf("read source: %w", err)))
	}

	r := reaper.New(log)
	code, err := r.Run(func(ctx context.Context) int {
		v := judge(ctx, r, log, cfg, source)
		if err := emit(log, v); err != nil {
			return verdict.InternalError.ExitCode()
		}
		return v.Kind.ExitCode()
	})
	if err != nil {
		return emit(log, verdict.Internal(err))
	}
	exitCode = code
	return nil
}

func applyOverrides(cfg *config.Config) {
	if cpuTimeMs > 0 {
		cfg.Run.CPUTimeMs = cpuTimeMs
	}
	if wallClockMs > 0 {
		cfg.Run.WallClockMs = wallClockMs
	}
	if memoryKb > 0 {
		cfg.Run.MemoryKb = memoryKb
	}
	if maxOutputBytes > 0 {
		cfg.Run.MaxOutputBytes = maxOutputBytes
	}
	if benchRepeats > 0 {
		cfg.BenchRepeats = benchRepeats
	}
}

// judge runs the full pipeline inside the reaper's lifetime and always
// produces exactly one verdict.
func judge(ctx context.Context, r *reaper.Reaper, log *zap.Logger, cfg *config.Config, source []byte) verdict.Verdict {
	workRoot := filepath.Join(cfg.WorkRoot, "judge-"+uuid.NewString())
	if err := os.MkdirAll(workRoot, 0755); err != nil {
		return verdict.Internal(fmt.Errorf("create work root: %w", err))
	}
	defer os.RemoveAll(workRoot)
	log.Info("work root created", zap.String("dir", workRoot))

	lim := limiter.New(r, log)

	compiler := compile.New(lim, cfg.Compiler.Path, cfg.Compiler.Flags, cfg.Build.Limit(), log)
	art, cerr := compiler.Build(ctx, workRoot, source)
	if cerr != nil {
		return verdict.Resolve(cerr, nil)
	}

	executor := execute.New(lim, cfg.Run.Limit(), log)
	executor.SealArtifact = !noSeal
	executor.IsolateNetwork = !allowNetwork

	var stdin *os.File
	if stdinPath != "" {
		stdin, cerr = os.Open(stdinPath)
		if cerr != nil {
			return verdict.Internal(fmt.Errorf("open stdin: %w", cerr))
		}
		defer stdin.Close()
	}

	out, err := executor.Execute(ctx, art, workRoot, stdin)
	if err != nil {
		return verdict.Internal(err)
	}
	v := verdict.Resolve(nil, out)
	v.Diagnostics = art.Diagnostics

	if cfg.BenchRepeats > 0 && v.Kind == verdict.Accepted {
		meter := bench.NewRunner(executor, cfg.BenchRepeats, log)
		report, err := meter.Measure(ctx, art, workRoot, stdinPath)
		if err != nil {
			// measurement trouble never flips an accepted verdict
			log.Warn("benchmark failed", zap.Error(err))
		} else {
			v.Bench = report
		}
	}
	return v
}

// emit prints the verdict as the final stdout line.
func emit(log *zap.Logger, v verdict.Verdict) error {
	b, err := v.JSON()
	if err != nil {
		log.Error("encode verdict", zap.Error(err))
		return err
	}
	fmt.Println(string(b))
	return nil
}
