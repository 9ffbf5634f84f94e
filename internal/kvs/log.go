package kvs

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lighkLife/kvs/internal/engine"
)

// Set upserts key to value. It appends a Set record to the active file,
// flushes the buffer to the OS, then updates the index. The displaced
// entry's length, if any, is added to the uncompacted counter.
func (s *Store) Set(key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	loc, n, err := s.append(record{tag: tagSet, key: key, value: value})
	if err != nil {
		return engine.NewIOError(err)
	}

	old, had := s.idx.set(key, loc)
	if had {
		atomic.AddInt64(&s.uncompacted, old.length)
	}
	_ = n

	s.maybeCompactLocked()
	return nil
}

// Remove deletes key. It fails with ErrKeyNotFound if key is absent,
// without writing anything to the log.
func (s *Store) Remove(key string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old, had := s.idx.get(key)
	if !had {
		return engine.ErrKeyNotFound
	}

	_, n, err := s.append(record{tag: tagRemove, key: key})
	if err != nil {
		return engine.NewIOError(err)
	}

	s.idx.remove(key)
	atomic.AddInt64(&s.uncompacted, old.length+n)

	s.maybeCompactLocked()
	return nil
}

// append writes rec to the active file and returns its location along with
// the number of bytes it occupied. Caller must hold writeMu.
func (s *Store) append(rec record) (location, int64, error) {
	startOffset := s.activeOffset
	n, err := encode(s.activeWriter, rec)
	if err != nil {
		return location{}, 0, err
	}
	if err := s.activeWriter.Flush(); err != nil {
		return location{}, 0, err
	}
	s.activeOffset += n
	loc := location{generation: s.activeGen, offset: startOffset, length: n}
	return loc, n, nil
}

func (s *Store) maybeCompactLocked() {
	if atomic.LoadInt64(&s.uncompacted) < compactionThreshold {
		return
	}
	if err := s.compactLocked(); err != nil {
		s.log.Warn("compaction failed", zap.Error(err))
	}
}
