//go:build linux

package seccomp

import (
	"syscall"
)

// Filter is the kernel-ready BPF seccomp filter value
type Filter []syscall.SockFilter

// SockFprog converts Filter to SockFprog for the seccomp syscall
func (f Filter) SockFprog() *syscall.SockFprog {
	b := []syscall.SockFilter(f)
	return &syscall.SockFprog{
		Len:    uint16(len(b)),
		Filter: &b[0],
	}
}
