//go:build linux

// Package execute runs a built artifact under run-phase ceilings in an
// isolated scratch directory. Network reachability is removed in two
// layers: a seccomp filter failing the socket family with EPERM, and a
// network namespace unshare when the supervisor is privileged enough to
// create one.
package execute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/compile"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/limiter"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/memfd"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/seccomp"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/runner"
)

// Outcome is the observed behavior of one run of the artifact.
type Outcome struct {
	Status runner.Status
	// ExitCode is valid for clean exits
	ExitCode int
	// Signal is valid when Status is StatusSignalled
	Signal syscall.Signal

	Stdout []byte
	Stderr []byte
	Usage  runner.Result
}

// Executor drives the run stage.
type Executor struct {
	// Limit bounds the judged child
	Limit runner.Limit
	// SealArtifact executes the binary from a sealed read-only memfd
	SealArtifact bool
	// IsolateNetwork loads the socket-deny seccomp filter and, when
	// privileged, unshares the network namespace
	IsolateNetwork bool

	limiter *limiter.Limiter
	log     *zap.Logger
}

func New(l *limiter.Limiter, limit runner.Limit, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		Limit:          limit,
		SealArtifact:   true,
		IsolateNetwork: true,
		limiter:        l,
		log:            log,
	}
}

// Execute runs the artifact once with stdin attached, inside a fresh
// scratch directory under workRoot that is removed before returning.
// A non-Accepted program behavior (nonzero exit, signal, limit hit) is a
// valid Outcome; an error means the supervisor could not perform the run.
func (e *Executor) Execute(ctx context.Context, art *compile.Artifact, workRoot string, stdin *os.File) (*Outcome, error) {
	scratch := filepath.Join(workRoot, "run-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	cmd := limiter.Cmd{
		Args:            []string{art.BinPath},
		Env:             []string{"PATH=/usr/bin:/bin"},
		WorkDir:         scratch,
		Stdin:           stdin,
		Limit:           e.Limit,
		NetworkIsolated: e.IsolateNetwork,
	}

	if e.IsolateNetwork {
		filter, err := seccomp.NetworkDenied()
		if err != nil {
			return nil, fmt.Errorf("assemble seccomp filter: %w", err)
		}
		cmd.Seccomp = filter.SockFprog()
	}

	if e.SealArtifact {
		bin, err := os.Open(art.BinPath)
		if err != nil {
			return nil, fmt.Errorf("open artifact: %w", err)
		}
		sealed, err := memfd.DupToMemfd(filepath.Base(art.BinPath), bin)
		bin.Close()
		if err != nil {
			return nil, fmt.Errorf("seal artifact: %w", err)
		}
		defer sealed.Close()
		cmd.ExecFile = sealed.Fd()
		cmd.Args = []string{filepath.Base(art.BinPath)}
	}

	e.log.Info("executing", zap.String("bin", art.BinPath), zap.Stringer("limit", e.Limit))
	res, stdout, stderr, err := e.limiter.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("run artifact: %w", err)
	}

	out := &Outcome{
		Status: res.Status,
		Stdout: stdout,
		Stderr: stderr,
		Usage:  res,
	}
	switch res.Status {
	case runner.StatusNormal, runner.StatusNonzeroExitStatus:
		out.ExitCode = res.ExitStatus
	case runner.StatusSignalled, runner.StatusDisallowedSyscall:
		out.Signal = syscall.Signal(res.ExitStatus)
	}
	e.log.Info("executed",
		zap.Stringer("status", res.Status),
		zap.Duration("cpu", res.Time),
		zap.Duration("wall", res.RunningTime),
		zap.Stringer("memory", res.Memory))
	return out, nil
}
