//go:build linux

package bench

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/compile"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/execute"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/runner"
)

// Runner repeats the execution stage and aggregates the timings.
type Runner struct {
	Repeats int

	exec *execute.Executor
	log  *zap.Logger
}

func NewRunner(e *execute.Executor, repeats int, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Repeats: repeats, exec: e, log: log}
}

// Measure performs one discarded warm-up and Repeats measured runs.
// stdinPath is reopened for every run so each repeat reads the input from
// the start; empty means no stdin.
func (b *Runner) Measure(ctx context.Context, art *compile.Artifact, workRoot, stdinPath string) (*Report, error) {
	if _, err := b.runOnce(ctx, art, workRoot, stdinPath); err != nil {
		return nil, fmt.Errorf("warm-up run: %w", err)
	}

	var times []float64
	failures := make(map[string]int)
	for i := 0; i < b.Repeats; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := b.runOnce(ctx, art, workRoot, stdinPath)
		if err != nil {
			return nil, fmt.Errorf("repeat %d: %w", i+1, err)
		}
		if out.Status == runner.StatusNormal {
			ms := float64(out.Usage.RunningTime.Microseconds()) / 1000
			times = append(times, ms)
			b.log.Debug("measured repeat", zap.Int("n", i+1), zap.Float64("wall_ms", ms))
		} else {
			failures[out.Status.String()]++
			b.log.Debug("failed repeat", zap.Int("n", i+1), zap.Stringer("status", out.Status))
		}
	}
	if len(failures) == 0 {
		failures = nil
	}
	return Aggregate(times, b.Repeats, failures), nil
}

func (b *Runner) runOnce(ctx context.Context, art *compile.Artifact, workRoot, stdinPath string) (*execute.Outcome, error) {
	var stdin *os.File
	if stdinPath != "" {
		f, err := os.Open(stdinPath)
		if err != nil {
			return nil, fmt.Errorf("open stdin: %w", err)
		}
		defer f.Close()
		stdin = f
	}
	return b.exec.Execute(ctx, art, workRoot, stdin)
}
