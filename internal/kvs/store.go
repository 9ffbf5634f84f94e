// Package kvs implements the built-in log-structured storage engine: an
// append-only command log with an in-memory index and compaction, in the
// style of Bitcask. Compaction runs inside the Set or Remove call that
// pushes the uncompacted counter over the threshold, while that call holds
// the writer lock; Gets are not blocked by it. It satisfies
// internal/engine.Engine.
package kvs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lighkLife/kvs/internal/engine"
)

// compactionThreshold is the number of uncompacted bytes that triggers a
// compaction pass, per spec's "e.g. 1 MiB" guidance.
const compactionThreshold = 1 << 20

// Store is the built-in engine. A *Store is cheaply duplicable: callers
// typically hand out the same pointer to every connection handler, since
// the index and writer are already internally synchronized, and a Store
// value has no per-handle state that would need cloning.
type Store struct {
	dir string
	log *zap.Logger

	idx     *index
	readers *readerCache

	writeMu      sync.Mutex
	active       *os.File
	activeWriter *bufio.Writer
	activeGen    int64
	activeOffset int64

	nextGen     int64 // atomic; next generation number to allocate
	uncompacted int64 // atomic; bytes of log no longer reachable from idx
	closed      int32
}

// Open replays the generation files in dir (creating it if absent), builds
// the in-memory index, and opens a fresh active file. logger may be nil, in
// which case a no-op logger is used.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, engine.NewIOError(err)
	}

	s := &Store{
		dir:     dir,
		log:     logger,
		idx:     newIndex(2 * runtime.GOMAXPROCS(0)),
		readers: newReaderCache(dir),
	}

	maxGen, err := s.recover()
	if err != nil {
		return nil, err
	}

	if err := s.openActive(maxGen + 1); err != nil {
		return nil, err
	}
	atomic.StoreInt64(&s.nextGen, maxGen+2)
	return s, nil
}

func (s *Store) openActive(gen int64) error {
	f, err := os.OpenFile(genPath(s.dir, gen), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return engine.NewIOError(err)
	}
	s.active = f
	s.activeWriter = bufio.NewWriter(f)
	s.activeGen = gen
	s.activeOffset = 0
	return nil
}

// Get returns the current value for key, or ("", false, nil) if absent.
func (s *Store) Get(key string) (string, bool, error) {
	loc, ok := s.idx.get(key)
	if !ok {
		return "", false, nil
	}
	f, err := s.readers.get(loc.generation)
	if err != nil {
		// The file may have been unlinked by a compaction that raced ahead
		// of this lookup; a fresh idx.get will reflect the post-compaction
		// location.
		if loc2, ok2 := s.idx.get(key); ok2 && loc2 != loc {
			return s.readAt(loc2, key)
		}
		return "", false, engine.NewIOError(err)
	}
	return s.readRecordAt(f, loc, key)
}

func (s *Store) readAt(loc location, key string) (string, bool, error) {
	f, err := s.readers.get(loc.generation)
	if err != nil {
		return "", false, engine.NewIOError(err)
	}
	return s.readRecordAt(f, loc, key)
}

func (s *Store) readRecordAt(f *os.File, loc location, key string) (string, bool, error) {
	sec := io.NewSectionReader(f, loc.offset, loc.length)
	rec, _, err := decodeAt(bufio.NewReader(sec))
	if err != nil {
		return "", false, engine.NewCorruptError(fmt.Errorf("reading %s at gen %d off %d: %w", key, loc.generation, loc.offset, err))
	}
	if rec.tag != tagSet || rec.key != key {
		return "", false, engine.NewCorruptError(fmt.Errorf("index points at mismatched record for key %q", key))
	}
	return rec.value, true, nil
}

// Close flushes the active file and releases all cached read handles.
func (s *Store) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.writeMu.Lock()
	var err error
	if s.activeWriter != nil {
		if ferr := s.activeWriter.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}
	if s.active != nil {
		if cerr := s.active.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.writeMu.Unlock()
	if rerr := s.readers.closeAll(); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return engine.NewIOError(err)
	}
	return nil
}

// KeyCount returns the number of live keys, for stats reporting.
func (s *Store) KeyCount() int { return s.idx.len() }

// UncompactedBytes returns the current uncompacted-counter value, for stats
// reporting.
func (s *Store) UncompactedBytes() int64 { return atomic.LoadInt64(&s.uncompacted) }
