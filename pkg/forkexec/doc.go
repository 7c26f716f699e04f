// Package forkexec launches a resource-limited, optionally seccomp-filtered
// child process in its own session. The child is created by a raw clone so
// that rlimits, file descriptors, working directory and the syscall filter
// are all applied between fork and execve, before any untrusted code runs.
//
// The parent and child synchronize over a socketpair: the child reports
// setup errors with their exact location, and the parent gets a window to
// register the pid (e.g. with the reaper) while the child is still parked
// before execve.
package forkexec
