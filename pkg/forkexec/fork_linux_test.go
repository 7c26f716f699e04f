//go:build linux

package forkexec

import (
	"errors"
	"os"
	"syscall"
	"testing"
)

func waitFor(t *testing.T, pid int) syscall.WaitStatus {
	t.Helper()
	var ws syscall.WaitStatus
	_, err := syscall.Wait4(pid, &ws, 0, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &ws, 0, nil)
	}
	if err != nil {
		t.Fatalf("wait4: %v", err)
	}
	return ws
}

func TestStart_OK(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer devNull.Close()

	r := Runner{
		Args:  []string{"/bin/true"},
		Env:   []string{"PATH=/bin:/usr/bin"},
		Files: []uintptr{devNull.Fd(), devNull.Fd(), devNull.Fd()},
	}
	pid, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	ws := waitFor(t, pid)
	if !ws.Exited() || ws.ExitStatus() != 0 {
		t.Errorf("wait status = %v, want clean exit 0", ws)
	}
}

func TestStart_OwnProcessGroup(t *testing.T) {
	syncSeen := false
	r := Runner{
		Args: []string{"/bin/true"},
		SyncFunc: func(pid int) error {
			syncSeen = true
			pgid, err := syscall.Getpgid(pid)
			if err != nil {
				return err
			}
			if pgid != pid {
				t.Errorf("pgid = %d, want %d", pgid, pid)
			}
			return nil
		},
	}
	pid, err := r.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !syncSeen {
		t.Error("SyncFunc was not invoked")
	}
	waitFor(t, pid)
}

func TestStart_ExecveFailure(t *testing.T) {
	r := Runner{
		Args: []string{"/nonexistent/binary"},
	}
	_, err := r.Start()
	if err == nil {
		t.Fatal("Start() succeeded for nonexistent binary")
	}
	var ce ChildError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ChildError", err)
	}
	if ce.Location != LocExecve {
		t.Errorf("Location = %v, want %v", ce.Location, LocExecve)
	}
	if ce.Err != syscall.ENOENT {
		t.Errorf("Err = %v, want ENOENT", ce.Err)
	}
}

func TestStart_SyncFuncAbort(t *testing.T) {
	abort := errors.New("abort launch")
	r := Runner{
		Args:     []string{"/bin/true"},
		SyncFunc: func(int) error { return abort },
	}
	_, err := r.Start()
	if !errors.Is(err, abort) {
		t.Fatalf("error = %v, want %v", err, abort)
	}
}

func TestChildErrorString(t *testing.T) {
	tests := []struct {
		name string
		ce   ChildError
		want string
	}{
		{
			name: "NoIndex",
			ce:   ChildError{Err: syscall.ENOENT, Location: LocExecve},
			want: "execve: no such file or directory",
		},
		{
			name: "WithIndex",
			ce:   ChildError{Err: syscall.EPERM, Location: LocSetRlimit, Index: 2},
			want: "setrlimit(2): operation not permitted",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ce.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
