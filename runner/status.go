package runner

// Status is the termination reason determined for one bounded invocation
type Status int

// Termination reasons for a supervised child process
const (
	StatusInvalid Status = iota // 0 not initialized
	// Normal
	StatusNormal // 1 clean exit, exit code recorded separately

	// Resource Limit Exceeded
	StatusTimeLimitExceeded   // 2 cpu or wall clock ceiling crossed
	StatusMemoryLimitExceeded // 3 memory ceiling crossed
	StatusOutputLimitExceeded // 4 output ceiling crossed

	// Unauthorized Access
	StatusDisallowedSyscall // 5 killed by seccomp filter

	// Runtime Error
	StatusSignalled         // 6 terminated by uncaught signal
	StatusNonzeroExitStatus // 7 clean exit with nonzero code

	// Runner Error
	StatusRunnerError // 8 supervisor / environment failure
)

var statusString = []string{
	"Invalid",
	"",
	"Time Limit Exceeded",
	"Memory Limit Exceeded",
	"Output Limit Exceeded",
	"Disallowed Syscall",
	"Signalled",
	"Nonzero Exit Status",
	"Runner Error",
}

func (t Status) String() string {
	i := int(t)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

func (t Status) Error() string {
	return t.String()
}

// IsLimit reports whether the status is a resource ceiling violation
func (t Status) IsLimit() bool {
	return t == StatusTimeLimitExceeded || t == StatusMemoryLimitExceeded ||
		t == StatusOutputLimitExceeded
}
