package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/lighkLife/kvs/internal/engine"
)

const markerFileName = "kvs.engine"

// SelectEngine enforces spec.md §4.E's engine-selection policy: if dir
// already has a marker naming engine X and requested != X, startup fails.
// If dir is fresh, requested is written to the marker, durably, via an
// atomic rename so a crash mid-write never leaves a half-written marker
// (the same durability concern the teacher solves for terminated
// .valuestoc files, here solved with github.com/natefinch/atomic instead of
// a trailing checksum since the marker is a single small value, not a
// stream).
func SelectEngine(dir string, requested engine.Name) (engine.Name, error) {
	if !requested.Valid() {
		return "", &engine.Error{Kind: engine.ErrKindBadArgument, Err: fmt.Errorf("unknown engine %q", requested)}
	}

	markerPath := filepath.Join(dir, markerFileName)
	data, err := os.ReadFile(markerPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", engine.NewIOError(err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", engine.NewIOError(err)
		}
		if err := atomic.WriteFile(markerPath, strings.NewReader(string(requested))); err != nil {
			return "", engine.NewIOError(err)
		}
		return requested, nil
	}

	existing := engine.Name(strings.TrimSpace(string(data)))
	if existing != requested {
		return "", &engine.Error{
			Kind: engine.ErrKindEngineMismatch,
			Err:  fmt.Errorf("data directory %s was created with engine %q, cannot open with engine %q", dir, existing, requested),
		}
	}
	return existing, nil
}
