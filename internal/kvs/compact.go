package kvs

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lighkLife/kvs/internal/engine"
)

// compactLocked rewrites every live entry into a fresh generation file and
// retargets the active file to a new generation, then drops the generation
// files that are now entirely superseded. Caller must hold writeMu.
//
// The index is updated one key at a time rather than under one long
// exclusive region: a Get racing this loop observes either the pre- or
// post-compaction location for any given key, and both are valid reads,
// because deletion of the stale files is deferred until after every key has
// been retargeted and the reader-handle watermark has advanced.
func (s *Store) compactLocked() error {
	compactGen := atomic.AddInt64(&s.nextGen, 1) - 1
	newActiveGen := atomic.AddInt64(&s.nextGen, 1) - 1

	compactFile, err := os.OpenFile(genPath(s.dir, compactGen), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return engine.NewIOError(err)
	}
	cw := bufio.NewWriter(compactFile)
	var cOffset int64

	var keys []string
	s.idx.forEach(func(key string, _ location) {
		keys = append(keys, key)
	})

	for _, key := range keys {
		loc, ok := s.idx.get(key)
		if !ok {
			continue // removed by this same compaction pass's own bookkeeping; shouldn't happen under single-writer discipline
		}
		value, found, err := s.readAt(loc, key)
		if err != nil {
			cw.Flush()
			compactFile.Close()
			return err
		}
		if !found {
			continue
		}
		n, werr := encode(cw, record{tag: tagSet, key: key, value: value})
		if werr != nil {
			cw.Flush()
			compactFile.Close()
			return engine.NewIOError(werr)
		}
		newLoc := location{generation: compactGen, offset: cOffset, length: n}
		cOffset += n
		s.idx.set(key, newLoc)
	}

	if err := cw.Flush(); err != nil {
		compactFile.Close()
		return engine.NewIOError(err)
	}
	if err := compactFile.Close(); err != nil {
		return engine.NewIOError(err)
	}

	oldActiveGen := s.activeGen
	if err := s.activeWriter.Flush(); err != nil {
		return engine.NewIOError(err)
	}
	if err := s.active.Close(); err != nil {
		return engine.NewIOError(err)
	}
	if err := s.openActive(newActiveGen); err != nil {
		return err
	}

	s.readers.advanceWatermark(compactGen)
	s.readers.forget(oldActiveGen)

	staleGens := s.listStaleGenerations(compactGen)
	for _, gen := range staleGens {
		s.readers.forget(gen)
		if err := os.Remove(genPath(s.dir, gen)); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to remove superseded generation file", zap.Int64("generation", gen), zap.Error(err))
		}
	}

	atomic.StoreInt64(&s.uncompacted, 0)
	s.log.Info("compaction complete",
		zap.Int64("compaction_generation", compactGen),
		zap.Int64("new_active_generation", newActiveGen),
		zap.Int("keys_rewritten", len(keys)),
		zap.Int("stale_files_removed", len(staleGens)),
	)
	return nil
}

// listStaleGenerations returns every generation file in the data directory
// strictly below compactGen.
func (s *Store) listStaleGenerations(compactGen int64) []int64 {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var gens []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".kvlog") {
			continue
		}
		gen, err := strconv.ParseInt(strings.TrimSuffix(name, ".kvlog"), 10, 64)
		if err != nil {
			continue
		}
		if gen < compactGen {
			gens = append(gens, gen)
		}
	}
	return gens
}
