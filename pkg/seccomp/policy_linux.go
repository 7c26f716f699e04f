//go:build linux

package seccomp

import (
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
)

// networkSyscalls are failed with EPERM for the judged process
var networkSyscalls = []string{
	"socket",
	"socketpair",
	"connect",
	"accept",
	"accept4",
	"bind",
	"listen",
	"sendto",
	"recvfrom",
	"sendmsg",
	"recvmsg",
	"sendmmsg",
	"recvmmsg",
	"getsockname",
	"getpeername",
	"getsockopt",
	"setsockopt",
	"shutdown",
}

// Builder assembles a seccomp filter from syscall names
type Builder struct {
	// Deny lists syscalls failed with EPERM; everything else is allowed
	Deny []string
}

// Build assembles the policy into a kernel-loadable filter
func (b *Builder) Build() (Filter, error) {
	policy := libseccomp.Policy{
		DefaultAction: libseccomp.ActionAllow,
		Syscalls: []libseccomp.SyscallGroup{
			{
				Action: libseccomp.ActionErrno,
				Names:  b.Deny,
			},
		},
	}
	insts, err := policy.Assemble()
	if err != nil {
		return nil, err
	}
	return exportFilter(insts)
}

// NetworkDenied builds the standard filter refusing all socket-family
// syscalls
func NetworkDenied() (Filter, error) {
	b := Builder{Deny: networkSyscalls}
	return b.Build()
}

// exportFilter converts assembled BPF instructions to the raw
// sock_filter program the seccomp syscall expects
func exportFilter(insts []bpf.Instruction) (Filter, error) {
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, err
	}
	prog := make(Filter, 0, len(raw))
	for _, ins := range raw {
		prog = append(prog, syscall.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		})
	}
	return prog, nil
}
