package server

import (
	"fmt"

	"github.com/gholt/brimtext"

	"github.com/lighkLife/kvs/internal/engine"
)

// statsProvider is implemented by engine realizations that can report
// introspection data; currently only the built-in kvs.Store does. Engines
// that don't implement it (boltengine.Store) simply show no extra rows.
type statsProvider interface {
	KeyCount() int
	UncompactedBytes() int64
}

// Stats renders engine statistics as an aligned table, in the style of the
// teacher's ValuesStoreStats.String() (brimtext.Align over a slice of
// label/value row pairs). It takes a bare engine rather than a *Server so
// the `kvs-server stats` CLI command can report on a data directory without
// binding a listener or starting a worker pool.
func Stats(eng engine.Engine) string {
	rows := [][]string{
		{"engine", fmt.Sprintf("%T", eng)},
	}
	if sp, ok := eng.(statsProvider); ok {
		rows = append(rows,
			[]string{"keys", fmt.Sprintf("%d", sp.KeyCount())},
			[]string{"uncompacted_bytes", fmt.Sprintf("%d", sp.UncompactedBytes())},
		)
	}
	return brimtext.Align(rows, nil)
}
