package kvs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lighkLife/kvs/internal/engine"
)

// recover replays every generation file in s.dir in ascending order,
// rebuilding the index and the uncompacted counter. Corrupt or truncated
// trailing records in the last (most recent) file are treated as absent and
// the file is truncated to the last good boundary; a corrupt record in any
// earlier, frozen file is fatal. It returns the highest generation number
// found, or 0 if the directory held no generation files.
func (s *Store) recover() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, engine.NewIOError(err)
	}

	var gens []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".kvlog") {
			continue // unknown files are ignored on replay
		}
		gen, err := strconv.ParseInt(strings.TrimSuffix(name, ".kvlog"), 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })

	var maxGen int64
	for i, gen := range gens {
		isLast := i == len(gens)-1
		if err := s.recoverFile(gen, isLast); err != nil {
			return 0, err
		}
		if gen > maxGen {
			maxGen = gen
		}
	}
	return maxGen, nil
}

func (s *Store) recoverFile(gen int64, isLast bool) error {
	path := genPath(s.dir, gen)
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return engine.NewIOError(err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var offset int64
	var count int
	for {
		rec, n, err := decodeAt(br)
		if err != nil {
			if err == io.EOF && n == 0 {
				break // clean end of file
			}
			if !isLast {
				return engine.NewCorruptError(fmt.Errorf("generation %d: %w", gen, err))
			}
			// Trailing partial/corrupt record in the active file: recovery
			// truncates to the last good boundary and treats it as absent.
			if terr := f.Truncate(offset); terr != nil {
				return engine.NewIOError(terr)
			}
			s.log.Warn("truncating incomplete trailing record",
				zap.Int64("generation", gen), zap.Int64("offset", offset), zap.Error(err))
			break
		}

		loc := location{generation: gen, offset: offset, length: n}
		switch rec.tag {
		case tagSet:
			old, had := s.idx.set(rec.key, loc)
			if had {
				atomic.AddInt64(&s.uncompacted, old.length)
			}
		case tagRemove:
			old, had := s.idx.remove(rec.key)
			extra := n
			if had {
				extra += old.length
			}
			atomic.AddInt64(&s.uncompacted, extra)
		}
		offset += n
		count++
	}
	s.log.Debug("replayed generation file", zap.Int64("generation", gen), zap.Int("records", count))
	return nil
}
