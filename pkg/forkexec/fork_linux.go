//go:build linux

package forkexec

import (
	"syscall"
	"unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// Start clones the child, applies its limits and isolation, synchronizes
// through a socketpair and returns the child pid once execve succeeded.
// The child runs in its own session, so its process group id equals its pid.
func (r *Runner) Start() (int, error) {
	argv0, argv, env, err := prepareExec(r.Args, r.Env)
	if err != nil {
		return 0, err
	}

	// prepare work dir
	workdir, err := syscallStringFromString(r.WorkDir)
	if err != nil {
		return 0, err
	}

	// socketpair p is used by the child to report setup errors and by the
	// parent to park the child before execve
	// p[0] is used by parent and p[1] is used by child
	p, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}

	// fork in child
	pid, err1 := forkAndExecInChild(r, argv0, argv, env, workdir, p)

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()

	return syncWithChild(r, p, int(pid), err1)
}

func syncWithChild(r *Runner, p [2]int, pid int, err1 syscall.Errno) (int, error) {
	var (
		childErr ChildError
		n        uintptr
		err      error
	)

	unix.Close(p[1])

	// clone syscall failed
	if err1 != 0 {
		unix.Close(p[0])
		return 0, ChildError{Err: err1, Location: LocClone}
	}

	// child writes a zero ChildError once its setup reached the sync point
	n, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]),
		uintptr(unsafe.Pointer(&childErr)), uintptr(unsafe.Sizeof(childErr)))
	if err1 != 0 || n != unsafe.Sizeof(childErr) || childErr.Err != 0 {
		err = childSyncError(n, err1, childErr)
		goto fail
	}

	// the child is parked before execve; let the caller register the pid
	if r.SyncFunc != nil {
		if err = r.SyncFunc(pid); err != nil {
			goto fail
		}
	}

	// ack the child so it proceeds to execve
	n, _, err1 = syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]),
		uintptr(unsafe.Pointer(&childErr)), uintptr(unsafe.Sizeof(childErr)))
	if err1 != 0 || n == 0 {
		err = childSyncError(n, err1, childErr)
		goto fail
	}

	// the socketpair is close-on-exec: a successful execve reads as EOF,
	// anything else is a ChildError from a failed setup step
	n, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]),
		uintptr(unsafe.Pointer(&childErr)), uintptr(unsafe.Sizeof(childErr)))
	if err1 != 0 || n != 0 {
		if n == unsafe.Sizeof(childErr) && childErr.Err != 0 {
			err = childErr
		} else {
			err = childSyncError(n, err1, childErr)
		}
		goto fail
	}
	unix.Close(p[0])
	return pid, nil

fail:
	unix.Close(p[0])
	handleChildFailed(pid)
	return 0, err
}

func childSyncError(n uintptr, errno syscall.Errno, childErr ChildError) error {
	if errno != 0 {
		return errno
	}
	if n == unsafe.Sizeof(childErr) && childErr.Err != 0 {
		return childErr
	}
	return syscall.EPIPE
}

func handleChildFailed(pid int) {
	var wstatus syscall.WaitStatus
	// make sure the failed child does not linger as a zombie
	syscall.Kill(pid, syscall.SIGKILL)
	_, err := syscall.Wait4(pid, &wstatus, 0, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
}
