// Package seccomp builds kernel-loadable BPF seccomp filters for the
// supervised process. The supervisor installs a filter that fails every
// networking syscall so a judged program has no route to any network
// endpoint even when namespace isolation is unavailable.
package seccomp
