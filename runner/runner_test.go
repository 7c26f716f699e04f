package runner

import (
	"testing"
	"time"
)

func TestSizeString(t *testing.T) {
	tests := []struct {
		size Size
		want string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1 << 10, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{1 << 30, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("Size(%d).String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
	}
}

func TestSizeSet(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{"100", 100, false},
		{"100b", 100, false},
		{"1k", 1 << 10, false},
		{"1K", 1 << 10, false},
		{"2m", 2 << 20, false},
		{"1g", 1 << 30, false},
		{"64mb", 64 << 20, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		var s Size
		err := s.Set(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && s != tt.want {
			t.Errorf("Set(%q) = %d, want %d", tt.in, uint64(s), uint64(tt.want))
		}
	}
}

func TestSizeConversions(t *testing.T) {
	s := Size(3 << 30)
	if s.Byte() != 3<<30 {
		t.Errorf("Byte() = %d", s.Byte())
	}
	if s.KiB() != 3<<20 {
		t.Errorf("KiB() = %d", s.KiB())
	}
	if s.MiB() != 3<<10 {
		t.Errorf("MiB() = %d", s.MiB())
	}
	if s.GiB() != 3 {
		t.Errorf("GiB() = %d", s.GiB())
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusInvalid, "Invalid"},
		{StatusNormal, ""},
		{StatusTimeLimitExceeded, "Time Limit Exceeded"},
		{StatusMemoryLimitExceeded, "Memory Limit Exceeded"},
		{StatusOutputLimitExceeded, "Output Limit Exceeded"},
		{StatusDisallowedSyscall, "Disallowed Syscall"},
		{StatusSignalled, "Signalled"},
		{StatusNonzeroExitStatus, "Nonzero Exit Status"},
		{StatusRunnerError, "Runner Error"},
		{Status(100), "Invalid"},
		{Status(-1), "Invalid"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}

func TestStatusIsLimit(t *testing.T) {
	limits := []Status{StatusTimeLimitExceeded, StatusMemoryLimitExceeded, StatusOutputLimitExceeded}
	for _, s := range limits {
		if !s.IsLimit() {
			t.Errorf("%v.IsLimit() = false, want true", s)
		}
	}
	others := []Status{StatusInvalid, StatusNormal, StatusSignalled, StatusNonzeroExitStatus, StatusRunnerError}
	for _, s := range others {
		if s.IsLimit() {
			t.Errorf("%v.IsLimit() = true, want false", s)
		}
	}
}

func TestLimitString(t *testing.T) {
	l := Limit{
		TimeLimit:   time.Second,
		WallLimit:   2 * time.Second,
		MemoryLimit: 256 << 20,
		OutputLimit: 64 << 20,
	}
	want := "Limit[Time=1s, Wall=2s, Memory=256.0 MiB, Output=64.0 MiB]"
	if got := l.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestResultString(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "Normal",
			result: Result{Status: StatusNormal, Time: time.Second, Memory: 1 << 20},
			want:   "Result[1s 1.0 MiB][0s 0s]",
		},
		{
			name:   "Signalled",
			result: Result{Status: StatusSignalled, ExitStatus: 9},
			want:   "Result[Signalled(9)][0s 0 B][0s 0s]",
		},
		{
			name:   "RunnerError",
			result: Result{Status: StatusRunnerError, Error: "spawn failed"},
			want:   "Result[RunnerFailed(spawn failed)][0s 0 B][0s 0s]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
