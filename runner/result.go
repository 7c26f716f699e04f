package runner

import (
	"fmt"
	"time"
)

// Result is the measured outcome of one bounded invocation
type Result struct {
	Status            // termination reason
	ExitStatus int    // exit code (signal number if signalled)
	Error      string // potential detailed error message (for runner error)

	Time   time.Duration // used user + system CPU time
	Memory Size          // peak resident memory

	Stdout Size // bytes captured from stdout
	Stderr Size // bytes captured from stderr

	// metrics for the supervisor itself
	SetUpTime   time.Duration
	RunningTime time.Duration // wall clock of the child
}

func (r Result) String() string {
	switch r.Status {
	case StatusNormal:
		return fmt.Sprintf("Result[%v %v][%v %v]", r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	case StatusSignalled:
		return fmt.Sprintf("Result[Signalled(%d)][%v %v][%v %v]", r.ExitStatus, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	case StatusRunnerError:
		return fmt.Sprintf("Result[RunnerFailed(%s)][%v %v][%v %v]", r.Error, r.Time, r.Memory, r.SetUpTime, r.RunningTime)

	default:
		return fmt.Sprintf("Result[%v(%s %d)][%v %v][%v %v]", r.Status, r.Error, r.ExitStatus, r.Time, r.Memory, r.SetUpTime, r.RunningTime)
	}
}
