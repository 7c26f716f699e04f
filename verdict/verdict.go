// Package verdict maps the outcomes of the build and run stages onto a
// single classification for the submission. The mapping is total and
// ordered: supervisor faults win over everything, then compile failures,
// then resource verdicts, then runtime errors, and only a clean zero exit
// is accepted.
package verdict

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/bench"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/compile"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/execute"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/runner"
)

// Kind is the verdict class for one submission.
type Kind int

const (
	Accepted Kind = iota
	CompileError
	TimeLimitExceeded
	MemoryLimitExceeded
	OutputLimitExceeded
	RuntimeError
	InternalError
)

var kindString = map[Kind]string{
	Accepted:            "accepted",
	CompileError:        "compile_error",
	TimeLimitExceeded:   "time_limit_exceeded",
	MemoryLimitExceeded: "memory_limit_exceeded",
	OutputLimitExceeded: "output_limit_exceeded",
	RuntimeError:        "runtime_error",
	InternalError:       "internal_error",
}

func (k Kind) String() string {
	if s, ok := kindString[k]; ok {
		return s
	}
	return "internal_error"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, s := range kindString {
		if s == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown verdict kind %q", b)
}

// The supervisor's own exit code per verdict class.
var kindExitCode = map[Kind]int{
	Accepted:            0,
	CompileError:        1,
	TimeLimitExceeded:   2,
	MemoryLimitExceeded: 3,
	OutputLimitExceeded: 4,
	RuntimeError:        5,
	InternalError:       7,
}

// ExitCode returns the supervisor exit code mirroring the verdict class.
func (k Kind) ExitCode() int {
	if c, ok := kindExitCode[k]; ok {
		return c
	}
	return kindExitCode[InternalError]
}

// Verdict is the single machine-parseable result of one submission.
type Verdict struct {
	Kind Kind `json:"verdict"`

	// behavior of the judged process, when it ran
	ExitCode int `json:"exit_code"`
	Signal   int `json:"signal,omitempty"`

	CPUTimeMs  int64 `json:"cpu_time_ms"`
	WallTimeMs int64 `json:"wall_time_ms"`
	MemoryKb   int64 `json:"memory_kb"`

	// capped captures
	Stdout      string `json:"stdout,omitempty"`
	Stderr      string `json:"stderr,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`

	// set only for InternalError
	Message string `json:"message,omitempty"`

	Bench *bench.Report `json:"bench,omitempty"`
}

// JSON renders the verdict as a single line.
func (v *Verdict) JSON() ([]byte, error) {
	return json.Marshal(v)
}

// Resolve classifies one submission. compileErr is the error returned by
// the build stage (nil on success); out is the run outcome, ignored unless
// compileErr is nil.
func Resolve(compileErr error, out *execute.Outcome) Verdict {
	if compileErr != nil {
		var f *compile.Failure
		if errors.As(compileErr, &f) {
			// a compiler hitting its own ceilings is still a failure of
			// the submission, not of the environment
			return Verdict{
				Kind:        CompileError,
				ExitCode:    f.Result.ExitStatus,
				CPUTimeMs:   f.Result.Time.Milliseconds(),
				WallTimeMs:  f.Result.RunningTime.Milliseconds(),
				MemoryKb:    int64(f.Result.Memory) >> 10,
				Diagnostics: f.Diagnostics,
			}
		}
		return Verdict{Kind: InternalError, Message: compileErr.Error()}
	}
	if out == nil {
		return Verdict{Kind: InternalError, Message: "no run outcome"}
	}

	v := Verdict{
		ExitCode:   out.ExitCode,
		Signal:     int(out.Signal),
		CPUTimeMs:  out.Usage.Time.Milliseconds(),
		WallTimeMs: out.Usage.RunningTime.Milliseconds(),
		MemoryKb:   int64(out.Usage.Memory) >> 10,
		Stdout:     string(out.Stdout),
		Stderr:     string(out.Stderr),
	}
	switch out.Status {
	case runner.StatusTimeLimitExceeded:
		v.Kind = TimeLimitExceeded
	case runner.StatusMemoryLimitExceeded:
		v.Kind = MemoryLimitExceeded
	case runner.StatusOutputLimitExceeded:
		v.Kind = OutputLimitExceeded
	case runner.StatusDisallowedSyscall, runner.StatusSignalled, runner.StatusNonzeroExitStatus:
		v.Kind = RuntimeError
	case runner.StatusNormal:
		v.Kind = Accepted
	default:
		v.Kind = InternalError
		v.Message = out.Usage.Error
	}
	return v
}

// Internal builds an InternalError verdict for a supervisor fault outside
// the build and run stages.
func Internal(err error) Verdict {
	return Verdict{Kind: InternalError, Message: err.Error()}
}
