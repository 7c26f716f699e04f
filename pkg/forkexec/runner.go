package forkexec

import (
	"syscall"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/pkg/rlimit"
)

// Runner is the configuration for one supervised child: exec path, argv,
// resource limits and isolation settings
type Runner struct {
	// argv and env for execve syscall for the child process
	Args []string
	Env  []string

	// if ExecFile is defined, execveat is called on it instead of Args[0]
	// (used to execute a sealed memfd artifact)
	ExecFile uintptr

	// POSIX resource limits applied via prlimit64 before execve
	RLimits []rlimit.RLimit

	// file descriptors map for the new process, from 0 to len - 1
	Files []uintptr

	// work path set by chdir(dir) for the child
	WorkDir string

	// seccomp syscall filter loaded right before execve
	Seccomp *syscall.SockFprog

	// clone unshare flags, restricted to the isolation namespaces
	// (network, IPC); requires privilege in the parent namespace
	CloneFlags uintptr

	// no_new_privs disables setuid escalation for the child; it is
	// automatically enabled when a seccomp filter is provided
	NoNewPrivs bool

	// SyncFunc is invoked with the child pid while the child is parked
	// before execve. A returned error aborts the launch and the child is
	// killed and collected. Used to register the pid with the reaper
	// before the child can possibly exit.
	SyncFunc func(pid int) error
}
