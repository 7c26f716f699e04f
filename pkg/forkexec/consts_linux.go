//go:build linux

package forkexec

import (
	"golang.org/x/sys/unix"
)

// defines missing consts from syscall package
const (
	SECCOMP_SET_MODE_FILTER   = 1
	SECCOMP_FILTER_FLAG_TSYNC = 1

	// IsolationFlags are the clone namespace flags the supervisor may
	// request: no network route and a private IPC namespace
	IsolationFlags = unix.CLONE_NEWNET | unix.CLONE_NEWIPC
)

var (
	empty = [...]byte{0}

	// retry interval between execve attempts on ETXTBSY
	etxtbsyRetryInterval = unix.Timespec{Nsec: 1 * 1000 * 1000}
)
