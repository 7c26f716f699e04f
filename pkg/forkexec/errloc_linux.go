//go:build linux

package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation defines the setup step where the child failed before execve
type ErrorLocation int

// ChildError carries the exact errno and location of a child setup failure
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// Location constants, in child setup order
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocDup3
	LocFcntl
	LocSetSid
	LocChdir
	LocSetRlimit
	LocSetNoNewPrivs
	LocSeccomp
	LocSyncWrite
	LocSyncRead
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"dup3",
	"fcntl",
	"setsid",
	"chdir",
	"setrlimit",
	"set_no_new_privs",
	"seccomp",
	"sync_write",
	"sync_read",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}
