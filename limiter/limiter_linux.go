// Package limiter runs a single child process under resource ceilings and
// reports how it terminated. CPU and memory are enforced in the kernel via
// rlimits, wall clock by an independent timer, and output by capped pipe
// buffers. Exit status and rusage arrive through the reaper subscription,
// never through a direct wait in this package.
package limiter

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/forkexec"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/pipe"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/rlimit"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/reaper"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/runner"
)

const (
	// grace period between SIGTERM and SIGKILL on a wall clock overrun
	termToKillDelay = 500 * time.Millisecond

	// applied when the caller did not set an output ceiling
	defaultOutputLimit = 64 << 20

	// bound on waiting for pipe readers after the group is dead; the write
	// ends are closed in the parent, so this only triggers if a process
	// escaped the group while holding an inherited fd
	collectTimeout = 3 * time.Second

	openFileLimit = 256
)

// Cmd describes one bounded invocation.
type Cmd struct {
	Args []string
	Env  []string

	// working directory for the child; empty means inherit
	WorkDir string

	// if nonzero, execveat is performed on this fd instead of Args[0]
	ExecFile uintptr

	// stdin for the child; nil means /dev/null
	Stdin *os.File

	Limit runner.Limit

	// optional seccomp filter loaded before execve
	Seccomp *syscall.SockFprog

	// request network and IPC namespace unshare; silently skipped
	// without privilege since unprivileged clone(CLONE_NEWNET) fails
	NetworkIsolated bool
}

// Limiter launches children and classifies their termination.
type Limiter struct {
	reaper *reaper.Reaper
	log    *zap.Logger
}

func New(r *reaper.Reaper, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{reaper: r, log: log}
}

// Run executes cmd to completion and returns the measured result together
// with the captured stdout and stderr, truncated to the output limit.
// Run itself only fails through Result.Status == StatusRunnerError; the
// returned error duplicates Result.Error for callers that chain with %w.
func (l *Limiter) Run(ctx context.Context, cmd Cmd) (runner.Result, []byte, []byte, error) {
	setUpStart := time.Now()

	outputLimit := int64(cmd.Limit.OutputLimit)
	if outputLimit <= 0 {
		outputLimit = defaultOutputLimit
	}

	stdout, err := pipe.NewBuffer(outputLimit)
	if err != nil {
		return runnerError(err), nil, nil, err
	}
	stderr, err := pipe.NewBuffer(outputLimit)
	if err != nil {
		stdout.W.Close()
		return runnerError(err), nil, nil, err
	}

	stdin := cmd.Stdin
	var devNull *os.File
	if stdin == nil {
		devNull, err = os.Open(os.DevNull)
		if err != nil {
			stdout.W.Close()
			stderr.W.Close()
			return runnerError(err), nil, nil, err
		}
		stdin = devNull
	}

	var cloneFlags uintptr
	if cmd.NetworkIsolated && os.Geteuid() == 0 {
		cloneFlags = forkexec.IsolationFlags
	}

	var sub <-chan reaper.Exit
	fe := forkexec.Runner{
		Args:       cmd.Args,
		Env:        cmd.Env,
		ExecFile:   cmd.ExecFile,
		RLimits:    prepareRLimits(cmd.Limit, outputLimit),
		Files:      []uintptr{stdin.Fd(), stdout.W.Fd(), stderr.W.Fd()},
		WorkDir:    cmd.WorkDir,
		Seccomp:    cmd.Seccomp,
		CloneFlags: cloneFlags,
		SyncFunc: func(pid int) error {
			// registered while the child is parked before execve, so the
			// exit can never race the subscription
			sub = l.reaper.Subscribe(pid)
			l.reaper.SetActiveGroup(pid)
			return nil
		},
	}

	pid, err := fe.Start()

	// the write ends belong to the child now; closing ours lets the
	// reader goroutines observe EOF
	stdout.W.Close()
	stderr.W.Close()
	if devNull != nil {
		devNull.Close()
	}

	if err != nil {
		return runnerError(err), nil, nil, err
	}
	defer l.reaper.ClearActiveGroup(pid)

	setUpTime := time.Since(setUpStart)
	runStart := time.Now()
	l.log.Debug("child started",
		zap.Int("pid", pid),
		zap.Strings("args", cmd.Args),
		zap.Stringer("limit", cmd.Limit))

	var (
		wallTimer  <-chan time.Time
		graceTimer <-chan time.Time
		outDone    = stdout.Done
		errDone    = stderr.Done
		wallHit    bool
		oleHit     bool
		cancelled  bool
	)
	if cmd.Limit.WallLimit > 0 {
		wt := time.NewTimer(cmd.Limit.WallLimit)
		defer wt.Stop()
		wallTimer = wt.C
	}

	var ev reaper.Exit
collect:
	for {
		select {
		case ev = <-sub:
			break collect

		case <-ctx.Done():
			cancelled = true
			unix.Kill(-pid, unix.SIGKILL)
			ev = <-sub
			break collect

		case <-wallTimer:
			wallHit = true
			wallTimer = nil
			l.log.Debug("wall clock limit hit", zap.Int("pid", pid))
			unix.Kill(-pid, unix.SIGTERM)
			gt := time.NewTimer(termToKillDelay)
			defer gt.Stop()
			graceTimer = gt.C

		case <-graceTimer:
			graceTimer = nil
			unix.Kill(-pid, unix.SIGKILL)

		case <-outDone:
			outDone = nil
			if stdout.OverLimit() {
				oleHit = true
				unix.Kill(-pid, unix.SIGKILL)
			}

		case <-errDone:
			errDone = nil
			if stderr.OverLimit() {
				oleHit = true
				unix.Kill(-pid, unix.SIGKILL)
			}
		}
	}
	runningTime := time.Since(runStart)

	// sweep stragglers that survived the group leader
	unix.Kill(-pid, unix.SIGKILL)

	// wait out the pipe readers so Bytes is stable; if a process escaped
	// the group with an inherited write end, force EOF on the readers and
	// still wait for Done so the buffers stop changing
	deadline := time.NewTimer(collectTimeout)
	defer deadline.Stop()
	deadlineC := deadline.C
	for outDone != nil || errDone != nil {
		select {
		case <-outDone:
			outDone = nil
		case <-errDone:
			errDone = nil
		case <-deadlineC:
			deadlineC = nil
			stdout.Abort()
			stderr.Abort()
		}
	}

	res := l.classify(cmd.Limit, ev, wallHit, oleHit, cancelled, stdout, stderr)
	res.SetUpTime = setUpTime
	res.RunningTime = runningTime
	if res.Status == runner.StatusRunnerError {
		return res, stdout.Bytes(), stderr.Bytes(), fmt.Errorf("limiter: %s", res.Error)
	}
	return res, stdout.Bytes(), stderr.Bytes(), nil
}

func (l *Limiter) classify(limit runner.Limit, ev reaper.Exit,
	wallHit, oleHit, cancelled bool, stdout, stderr *pipe.Buffer) runner.Result {

	ws := ev.Status
	cpuTime := time.Duration(ev.Rusage.Utime.Nano()) + time.Duration(ev.Rusage.Stime.Nano())
	memory := runner.Size(ev.Rusage.Maxrss << 10)

	res := runner.Result{
		Time:   cpuTime,
		Memory: memory,
		Stdout: runner.Size(stdout.Buffer.Len()),
		Stderr: runner.Size(stderr.Buffer.Len()),
	}

	switch {
	case cancelled:
		res.Status = runner.StatusRunnerError
		res.Error = "cancelled"

	case wallHit:
		res.Status = runner.StatusTimeLimitExceeded

	case oleHit || stdout.OverLimit() || stderr.OverLimit():
		res.Status = runner.StatusOutputLimitExceeded

	case ws.Signaled():
		sig := ws.Signal()
		res.ExitStatus = int(sig)
		switch sig {
		case unix.SIGXCPU:
			res.Status = runner.StatusTimeLimitExceeded
		case unix.SIGKILL:
			// hard RLIMIT_CPU delivers SIGKILL; so does the oom killer
			if memoryExhausted(limit.MemoryLimit, memory) {
				res.Status = runner.StatusMemoryLimitExceeded
			} else {
				res.Status = runner.StatusTimeLimitExceeded
			}
		case unix.SIGXFSZ:
			res.Status = runner.StatusOutputLimitExceeded
		case unix.SIGSYS:
			res.Status = runner.StatusDisallowedSyscall
		case unix.SIGSEGV, unix.SIGABRT, unix.SIGBUS:
			// a failed allocation under RLIMIT_AS surfaces as a fault or
			// abort with the peak RSS parked just under the cap
			if memoryExhausted(limit.MemoryLimit, memory) {
				res.Status = runner.StatusMemoryLimitExceeded
			} else {
				res.Status = runner.StatusSignalled
			}
		default:
			res.Status = runner.StatusSignalled
		}

	case limit.TimeLimit > 0 && cpuTime > limit.TimeLimit:
		res.Status = runner.StatusTimeLimitExceeded

	case ws.ExitStatus() != 0:
		res.ExitStatus = ws.ExitStatus()
		if memoryExhausted(limit.MemoryLimit, memory) {
			res.Status = runner.StatusMemoryLimitExceeded
		} else {
			res.Status = runner.StatusNonzeroExitStatus
		}

	default:
		res.Status = runner.StatusNormal
	}
	return res
}

// The address-space rlimit caps RSS from above, so the kernel never
// reports a peak beyond the ceiling; a process that died failing an
// allocation leaves its peak parked just below it instead. memorySlack is
// how close to the ceiling counts as exhausted.
const memorySlack runner.Size = 8 << 20

func memoryExhausted(limit, memory runner.Size) bool {
	if limit == 0 {
		return false
	}
	return memory+memorySlack >= limit
}

// prepareRLimits derives kernel ceilings from the invocation limit. The
// CPU hard ceiling sits one second above the soft one so a handler that
// ignores SIGXCPU is still killed.
func prepareRLimits(l runner.Limit, outputLimit int64) []rlimit.RLimit {
	cpu := uint64(0)
	if l.TimeLimit > 0 {
		cpu = uint64((l.TimeLimit + time.Second - 1) / time.Second)
		if cpu == 0 {
			cpu = 1
		}
	}
	r := rlimit.RLimits{
		CPU:         cpu,
		CPUHard:     cpu + 1,
		FileSize:    uint64(outputLimit),
		OpenFile:    openFileLimit,
		DisableCore: true,
	}
	if l.MemoryLimit > 0 {
		m := uint64(l.MemoryLimit)
		r.AddressSpace = m
		r.Data = m
		r.Stack = m
	}
	return r.PrepareRLimit()
}

func runnerError(err error) runner.Result {
	return runner.Result{
		Status: runner.StatusRunnerError,
		Error:  err.Error(),
	}
}
