// Package config holds the supervisor configuration: compiler command and
// independent resource ceilings for the build and run phases. Values come
// from defaults, an optional YAML file, and CLI flags, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/VANDRESSAGALDINOS/adaptive-code-judge/runner"
)

// PhaseLimits are the ceilings for one phase in external units.
type PhaseLimits struct {
	CPUTimeMs      int64 `yaml:"cpuTimeMs"`
	WallClockMs    int64 `yaml:"wallClockMs"`
	MemoryKb       int64 `yaml:"memoryKb"`
	MaxOutputBytes int64 `yaml:"maxOutputBytes"`
}

// Limit converts the external units into the runner's limit.
func (p PhaseLimits) Limit() runner.Limit {
	return runner.Limit{
		TimeLimit:   time.Duration(p.CPUTimeMs) * time.Millisecond,
		WallLimit:   time.Duration(p.WallClockMs) * time.Millisecond,
		MemoryLimit: runner.Size(p.MemoryKb) << 10,
		OutputLimit: runner.Size(p.MaxOutputBytes),
	}
}

// Compiler is the build command.
type Compiler struct {
	Path  string   `yaml:"path"`
	Flags []string `yaml:"flags"`
}

// Config is the full supervisor configuration.
type Config struct {
	Compiler     Compiler    `yaml:"compiler"`
	Build        PhaseLimits `yaml:"build"`
	Run          PhaseLimits `yaml:"run"`
	WorkRoot     string      `yaml:"workRoot"`
	// BenchRepeats > 0 enables the measurement mode after an accepted
	// verdict; zero leaves it off
	BenchRepeats int `yaml:"benchRepeats"`
}

// Default mirrors the judge container settings: gnu++17 at -O2, a 60 s
// wall umbrella and 1 GiB of memory per phase.
func Default() *Config {
	return &Config{
		Compiler: Compiler{
			Path:  "g++",
			Flags: []string{"-O2", "-std=gnu++17"},
		},
		Build: PhaseLimits{
			CPUTimeMs:      30000,
			WallClockMs:    60000,
			MemoryKb:       1 << 20,
			MaxOutputBytes: 16 << 20,
		},
		Run: PhaseLimits{
			CPUTimeMs:      10000,
			WallClockMs:    60000,
			MemoryKb:       1 << 20,
			MaxOutputBytes: 64 << 20,
		},
		WorkRoot:     os.TempDir(),
		BenchRepeats: 0,
	}
}

// Load returns the defaults overlaid with the YAML file at path; empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects values the limiter cannot enforce.
func (c *Config) Validate() error {
	if c.Compiler.Path == "" {
		return fmt.Errorf("compiler path is empty")
	}
	for phase, p := range map[string]PhaseLimits{"build": c.Build, "run": c.Run} {
		if p.CPUTimeMs < 0 || p.WallClockMs < 0 || p.MemoryKb < 0 || p.MaxOutputBytes < 0 {
			return fmt.Errorf("%s limits must not be negative", phase)
		}
		if p.WallClockMs == 0 {
			return fmt.Errorf("%s wall clock limit is required", phase)
		}
	}
	if c.BenchRepeats < 0 {
		return fmt.Errorf("benchRepeats must not be negative")
	}
	return nil
}
