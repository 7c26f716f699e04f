//go:build linux

// Package reaper makes the supervisor act as the first process of the
// container: it continuously harvests every terminated descendant so that
// processes orphaned by the judged program never accumulate as zombies,
// and it forwards external termination signals to the active process group.
package reaper

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// State is the lifecycle state of one tracked process
type State int

// Lifecycle states; every record must reach StateReaped before the
// supervisor exits
const (
	StateSpawned State = iota
	StateRunning
	StateExited
	StateSignaled
	StateReaped
)

var stateString = []string{"spawned", "running", "exited", "signaled", "reaped"}

func (s State) String() string {
	if s >= StateSpawned && s <= StateReaped {
		return stateString[s]
	}
	return "unknown"
}

// ProcessRecord tracks one descendant through its lifecycle
type ProcessRecord struct {
	PID        int
	PPID       int
	State      State
	WaitStatus unix.WaitStatus
	ReapedAt   time.Time
}

// Exit is the harvested termination of one process, delivered to its
// subscriber together with the kernel-reported resource usage
type Exit struct {
	Pid    int
	Status unix.WaitStatus
	Rusage unix.Rusage
}

// forwarded to the active process group so container stop reaches every
// descendant of the judged tree
var forwardedSignals = []os.Signal{
	syscall.SIGTERM,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGHUP,
}

// Reaper owns the process-table bookkeeping for the whole supervisor
// lifetime. It is the only caller of wait4 in the program.
type Reaper struct {
	log *zap.Logger

	mu         sync.Mutex
	records    map[int]*ProcessRecord
	subs       map[int]chan Exit
	pending    map[int]Exit
	activePgid int

	chld     chan os.Signal
	term     chan os.Signal
	stop     chan struct{}
	loopDone chan struct{}
	started  bool
	cancel   context.CancelFunc
}

// New creates a reaper; Start or Run must be called before any child is
// spawned
func New(log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		log:      log,
		records:  make(map[int]*ProcessRecord),
		subs:     make(map[int]chan Exit),
		pending:  make(map[int]Exit),
		chld:     make(chan os.Signal, 1),
		term:     make(chan os.Signal, 4),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start installs the subreaper role and begins harvesting. When the
// supervisor is not pid 1, PR_SET_CHILD_SUBREAPER reparents orphaned
// descendants to it anyway, which keeps the harvesting loop testable
// outside a container.
func (r *Reaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if os.Getpid() != 1 {
		if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
			return err
		}
	}
	signal.Notify(r.chld, syscall.SIGCHLD)
	signal.Notify(r.term, forwardedSignals...)
	r.started = true
	go r.loop()
	return nil
}

// Subscribe registers interest in pid's termination and returns a channel
// delivering exactly one Exit. It must be called before the child can
// possibly terminate (e.g. from the forkexec sync window); exits harvested
// before the subscription are replayed, never lost.
func (r *Reaper) Subscribe(pid int) <-chan Exit {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Exit, 1)
	if ev, ok := r.pending[pid]; ok {
		delete(r.pending, pid)
		ch <- ev
		return ch
	}
	r.subs[pid] = ch
	if _, ok := r.records[pid]; !ok {
		r.records[pid] = &ProcessRecord{PID: pid, PPID: os.Getpid(), State: StateRunning}
	}
	return ch
}

// SetActiveGroup marks the process group that receives forwarded
// termination signals
func (r *Reaper) SetActiveGroup(pgid int) {
	r.mu.Lock()
	r.activePgid = pgid
	r.mu.Unlock()
}

// ClearActiveGroup removes the group if it is still the active one
func (r *Reaper) ClearActiveGroup(pgid int) {
	r.mu.Lock()
	if r.activePgid == pgid {
		r.activePgid = 0
	}
	r.mu.Unlock()
}

// Run executes main under the reaper: the harvesting loop runs for the
// whole call, an external termination signal cancels the context, and any
// remaining reapable descendant is drained before Run returns main's code.
// On a Start failure main never runs.
func (r *Reaper) Run(main func(context.Context) int) (int, error) {
	if err := r.Start(); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	code := main(ctx)

	r.Shutdown()
	return code, nil
}

// Shutdown stops the harvesting loop after a final drain. Safe to call
// once after all stages finished.
func (r *Reaper) Shutdown() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	pgid := r.activePgid
	r.mu.Unlock()

	if pgid != 0 {
		// forced cancellation: no stage cleaned up, kill the leftover tree
		unix.Kill(-pgid, unix.SIGKILL)
	}
	r.drain(3 * time.Second)

	close(r.stop)
	<-r.loopDone
	signal.Stop(r.chld)
	signal.Stop(r.term)
}

// Unreaped returns the number of records that have not reached
// StateReaped; zero is an exit invariant of the supervisor
func (r *Reaper) Unreaped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.State != StateReaped {
			n++
		}
	}
	return n
}

// Records returns a snapshot of all tracked processes
func (r *Reaper) Records() []ProcessRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProcessRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

func (r *Reaper) loop() {
	defer close(r.loopDone)
	// safety tick: SIGCHLD coalesces, and a signal delivered before
	// Notify would otherwise be missed
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-r.chld:
			r.reapAll()
		case <-tick.C:
			r.reapAll()
		case sig := <-r.term:
			r.forward(sig)
		}
	}
}

// reapAll collects every currently reapable descendant without blocking
func (r *Reaper) reapAll() {
	for {
		var (
			ws unix.WaitStatus
			ru unix.Rusage
		)
		pid, err := unix.Wait4(-1, &ws, unix.WALL|unix.WNOHANG, &ru)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if err != unix.ECHILD {
				// losing a single process to a race is non-fatal
				r.log.Warn("reap failed", zap.Error(err))
			}
			return
		}
		if pid <= 0 {
			return
		}
		r.deliver(pid, ws, ru)
	}
}

func (r *Reaper) deliver(pid int, ws unix.WaitStatus, ru unix.Rusage) {
	r.mu.Lock()
	rec, ok := r.records[pid]
	if !ok {
		// orphan reparented to us by a descendant that already died
		rec = &ProcessRecord{PID: pid, PPID: os.Getpid()}
		r.records[pid] = rec
		r.log.Debug("reaped orphan", zap.Int("pid", pid))
	}
	if ws.Signaled() {
		rec.State = StateSignaled
	} else {
		rec.State = StateExited
	}
	rec.WaitStatus = ws

	ev := Exit{Pid: pid, Status: ws, Rusage: ru}
	ch, subbed := r.subs[pid]
	if subbed {
		delete(r.subs, pid)
	} else {
		r.pending[pid] = ev
	}

	// status collected, the zombie is gone from the process table
	rec.State = StateReaped
	rec.ReapedAt = time.Now()
	r.mu.Unlock()

	if subbed {
		ch <- ev
	}
}

// forward relays an external stop signal to the active process group and
// cancels the pipeline context
func (r *Reaper) forward(sig os.Signal) {
	r.mu.Lock()
	pgid := r.activePgid
	cancel := r.cancel
	r.mu.Unlock()

	r.log.Info("forwarding signal", zap.String("signal", sig.String()), zap.Int("pgid", pgid))
	if pgid != 0 {
		if s, ok := sig.(syscall.Signal); ok {
			unix.Kill(-pgid, s)
		}
	}
	if cancel != nil {
		cancel()
	}
}

// drain reaps until the process has no children left or the deadline
// passes; called once before the supervisor exits
func (r *Reaper) drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		var ws unix.WaitStatus
		var ru unix.Rusage
		pid, err := unix.Wait4(-1, &ws, unix.WALL|unix.WNOHANG, &ru)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			return
		case err != nil:
			r.log.Warn("drain reap failed", zap.Error(err))
			return
		case pid > 0:
			r.deliver(pid, ws, ru)
		default:
			// children exist but none reapable yet
			if time.Now().After(deadline) {
				r.log.Warn("drain deadline passed with live descendants")
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}
