//go:build linux

package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/forkexec"
)

func spawn(t *testing.T, r *Reaper, args ...string) (int, <-chan Exit) {
	t.Helper()
	var sub <-chan Exit
	fe := forkexec.Runner{
		Args: args,
		Env:  []string{"PATH=/bin:/usr/bin"},
		SyncFunc: func(pid int) error {
			sub = r.Subscribe(pid)
			return nil
		},
	}
	pid, err := fe.Start()
	if err != nil {
		t.Fatalf("spawn %v: %v", args, err)
	}
	return pid, sub
}

func TestReap_DirectChild(t *testing.T) {
	r := New(nil)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	pid, sub := spawn(t, r, "/bin/true")
	select {
	case ev := <-sub:
		if ev.Pid != pid {
			t.Errorf("exit pid = %d, want %d", ev.Pid, pid)
		}
		if !ev.Status.Exited() || ev.Status.ExitStatus() != 0 {
			t.Errorf("status = %v, want clean exit 0", ev.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for exit event")
	}
	if n := r.Unreaped(); n != 0 {
		t.Errorf("Unreaped() = %d, want 0", n)
	}
}

func TestReap_ExitCodePreserved(t *testing.T) {
	r := New(nil)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	_, sub := spawn(t, r, "/bin/sh", "-c", "exit 3")
	select {
	case ev := <-sub:
		if ev.Status.ExitStatus() != 3 {
			t.Errorf("exit status = %d, want 3", ev.Status.ExitStatus())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for exit event")
	}
}

func TestReap_OrphanGrandchild(t *testing.T) {
	r := New(nil)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	// the grandchild outlives its parent and reparents to the subreaper
	pid, sub := spawn(t, r, "/bin/sh", "-c", "{ sleep 0.2 & } ; exit 7")
	select {
	case ev := <-sub:
		if ev.Status.ExitStatus() != 7 {
			t.Errorf("exit status = %d, want 7", ev.Status.ExitStatus())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for direct child")
	}

	// shutdown drains the orphaned grandchild before returning
	r.Shutdown()
	if n := r.Unreaped(); n != 0 {
		t.Errorf("Unreaped() = %d, want 0", n)
	}
	found := false
	for _, rec := range r.Records() {
		if rec.PID != pid && rec.State == StateReaped {
			found = true
		}
		if rec.State != StateReaped {
			t.Errorf("record pid %d left in state %v", rec.PID, rec.State)
		}
	}
	if !found {
		t.Error("orphaned grandchild was not recorded as reaped")
	}
}

func TestSubscribe_PendingReplay(t *testing.T) {
	r := New(nil)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()

	// no subscription at spawn time: the exit is harvested as pending
	fe := forkexec.Runner{Args: []string{"/bin/true"}}
	pid, err := fe.Start()
	if err != nil {
		t.Fatal(err)
	}

	// wait until the harvest shows up before subscribing, so the single
	// Subscribe below can only be satisfied by the pending replay
	deadline := time.Now().Add(5 * time.Second)
	for !recordReaped(r, pid) {
		if time.Now().After(deadline) {
			t.Fatal("child was never harvested")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sub := r.Subscribe(pid)
	select {
	case ev := <-sub:
		if ev.Pid != pid {
			t.Errorf("exit pid = %d, want %d", ev.Pid, pid)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("pending exit was not replayed")
	}
}

func recordReaped(r *Reaper, pid int) bool {
	for _, rec := range r.Records() {
		if rec.PID == pid && rec.State == StateReaped {
			return true
		}
	}
	return false
}

func TestRun_ReturnsMainCode(t *testing.T) {
	r := New(nil)
	code, err := r.Run(func(ctx context.Context) int {
		if ctx.Err() != nil {
			t.Error("context cancelled before any signal")
		}
		return 42
	})
	if err != nil {
		t.Fatal(err)
	}
	if code != 42 {
		t.Errorf("Run() = %d, want 42", code)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateSpawned, "spawned"},
		{StateRunning, "running"},
		{StateExited, "exited"},
		{StateSignaled, "signaled"},
		{StateReaped, "reaped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
