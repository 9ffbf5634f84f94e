// Package config resolves server settings from, in increasing
// priority: built-in defaults, an optional YAML config file, and command
// line flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lighkLife/kvs/internal/engine"
)

// Server holds every setting internal/server needs to start.
type Server struct {
	Addr     string `yaml:"addr"`
	Engine   string `yaml:"engine"`
	Dir      string `yaml:"dir"`
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// DefaultServer returns the built-in defaults from spec.md §6.
func DefaultServer() Server {
	return Server{
		Addr:     "127.0.0.1:4000",
		Engine:   string(engine.Builtin),
		Dir:      ".",
		Workers:  4,
		LogLevel: "info",
	}
}

// LoadServerFile reads a YAML file at path and overlays it onto base. A
// missing path is not an error; other I/O or parse errors are.
func LoadServerFile(path string, base Server) (Server, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file: %w", err)
	}
	var file Server
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parsing config file: %w", err)
	}
	merged := base
	if file.Addr != "" {
		merged.Addr = file.Addr
	}
	if file.Engine != "" {
		merged.Engine = file.Engine
	}
	if file.Dir != "" {
		merged.Dir = file.Dir
	}
	if file.Workers != 0 {
		merged.Workers = file.Workers
	}
	if file.LogLevel != "" {
		merged.LogLevel = file.LogLevel
	}
	if file.LogFile != "" {
		merged.LogFile = file.LogFile
	}
	return merged, nil
}

// Validate checks the bad-argument conditions spec.md §6 requires the
// server to reject at startup.
func (s Server) Validate() error {
	if s.Addr == "" {
		return &engine.Error{Kind: engine.ErrKindBadArgument, Err: fmt.Errorf("address must not be empty")}
	}
	if !engine.Name(s.Engine).Valid() {
		return &engine.Error{Kind: engine.ErrKindBadArgument, Err: fmt.Errorf("unknown engine %q", s.Engine)}
	}
	if s.Workers < 1 {
		return &engine.Error{Kind: engine.ErrKindBadArgument, Err: fmt.Errorf("workers must be at least 1")}
	}
	return nil
}
