// Package config holds the compile-time constants of the Wist core and the
// runtime limits that can be tuned through a wist.yaml file.
//
// A wist.yaml file looks like:
//
//	vm:
//	  arg_stack: 65536
//	  return_stack: 65536
//	  gc_threshold: 65536
//	  max_steps: 0
//	  trace: false
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level wist.yaml configuration.
type Config struct {
	VM Limits `yaml:"vm"`
}

// Limits bounds the resources a single VM instance may use.
type Limits struct {
	// ArgStack is the capacity of the argument stack, in values.
	ArgStack int `yaml:"arg_stack,omitempty"`

	// ReturnStack is the capacity of the return stack, in entries
	// (frames and pending extra arguments).
	ReturnStack int `yaml:"return_stack,omitempty"`

	// GCThreshold is the live-object count that triggers a collection
	// between instructions. Zero disables collection entirely, which
	// reproduces the free-at-shutdown allocator.
	GCThreshold *int `yaml:"gc_threshold,omitempty"`

	// MaxSteps caps the number of instructions one evaluation may run.
	// Zero means unlimited.
	MaxSteps int64 `yaml:"max_steps,omitempty"`

	// Trace logs every executed instruction at debug level.
	Trace bool `yaml:"trace,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// GC returns the effective collection threshold.
func (l Limits) GC() int {
	if l.GCThreshold == nil {
		return DefaultGCThreshold
	}
	return *l.GCThreshold
}

// LoadConfig reads and parses a wist.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses wist.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for wist.yaml starting from dir and walking up
// to parent directories. Returns an empty path and nil error when none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	l := c.VM
	if l.ArgStack < 0 {
		return fmt.Errorf("%s: vm.arg_stack must not be negative", path)
	}
	if l.ReturnStack < 0 {
		return fmt.Errorf("%s: vm.return_stack must not be negative", path)
	}
	if l.GCThreshold != nil && *l.GCThreshold < 0 {
		return fmt.Errorf("%s: vm.gc_threshold must not be negative", path)
	}
	if l.MaxSteps < 0 {
		return fmt.Errorf("%s: vm.max_steps must not be negative", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.VM.ArgStack == 0 {
		c.VM.ArgStack = DefaultArgStackSize
	}
	if c.VM.ReturnStack == 0 {
		c.VM.ReturnStack = DefaultReturnStackSize
	}
}
