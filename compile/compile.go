// Package compile turns one submitted C++ source into a runnable artifact.
// The compiler itself runs under the limiter, so a pathological submission
// (template bombs, gigabyte error spews) is bounded like any other child.
package compile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/limiter"
	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/runner"
)

const (
	sourceName = "solution.cpp"
	binName    = "solution"

	// compiler diagnostics kept for the verdict
	diagnosticLimit = 16 << 10
)

// Artifact is a successfully built binary, valid until its work dir is
// removed.
type Artifact struct {
	BinPath     string
	Diagnostics string
	Duration    time.Duration
	Usage       runner.Result
}

// Failure reports that the submission itself failed to build. An
// environment problem (missing compiler, limiter fault) is returned as a
// plain error instead and must not be attributed to the submission.
type Failure struct {
	Result      runner.Result
	Diagnostics string
}

func (f *Failure) Error() string {
	switch f.Result.Status {
	case runner.StatusNormal:
		return "compile failed: no binary produced"
	case runner.StatusNonzeroExitStatus:
		return fmt.Sprintf("compile failed: exit status %d", f.Result.ExitStatus)
	default:
		return fmt.Sprintf("compile failed: %v", f.Result.Status)
	}
}

// Compiler drives the build stage.
type Compiler struct {
	// Path is the compiler executable, looked up on PATH if not absolute
	Path string
	// Flags are placed between the compiler path and the source file
	Flags []string
	// Limit bounds the compile child
	Limit runner.Limit

	limiter *limiter.Limiter
	log     *zap.Logger
}

func New(l *limiter.Limiter, path string, flags []string, limit runner.Limit, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{
		Path:    path,
		Flags:   flags,
		Limit:   limit,
		limiter: l,
		log:     log,
	}
}

// Build writes source into workDir and compiles it there. It returns a
// *Failure when the submission does not compile and a plain error when the
// environment is at fault.
func (c *Compiler) Build(ctx context.Context, workDir string, source []byte) (*Artifact, error) {
	compilerPath, err := exec.LookPath(c.Path)
	if err != nil {
		return nil, fmt.Errorf("compiler %q not available: %w", c.Path, err)
	}

	srcPath := filepath.Join(workDir, sourceName)
	if err := os.WriteFile(srcPath, source, 0644); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	args := make([]string, 0, len(c.Flags)+4)
	args = append(args, compilerPath)
	args = append(args, c.Flags...)
	args = append(args, sourceName, "-o", binName)

	c.log.Info("compiling", zap.Strings("args", args), zap.Stringer("limit", c.Limit))
	res, _, stderr, err := c.limiter.Run(ctx, limiter.Cmd{
		Args:    args,
		Env:     compileEnv(),
		WorkDir: workDir,
		Limit:   c.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("compiler launch: %w", err)
	}

	diag := truncate(stderr, diagnosticLimit)
	if res.Status != runner.StatusNormal {
		return nil, &Failure{Result: res, Diagnostics: diag}
	}

	binPath := filepath.Join(workDir, binName)
	if _, err := os.Stat(binPath); err != nil {
		// the compiler ran and exited clean, so this is still a failed
		// build, not an environment fault
		if diag != "" {
			diag += "\n"
		}
		diag += "compiler exited without producing a binary"
		return nil, &Failure{Result: res, Diagnostics: diag}
	}

	c.log.Info("compiled",
		zap.Duration("wall", res.RunningTime),
		zap.Stringer("memory", res.Memory))
	return &Artifact{
		BinPath:     binPath,
		Diagnostics: diag,
		Duration:    res.RunningTime,
		Usage:       res,
	}, nil
}

func compileEnv() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{"PATH=" + path}
}

func truncate(b []byte, max int) string {
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
