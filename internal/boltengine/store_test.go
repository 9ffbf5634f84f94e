package boltengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lighkLife/kvs/internal/engine"
)

func TestSetGetRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Set("a", "1"))
	v, found, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", v)

	require.NoError(t, s.Remove("a"))
	_, found, err = s.Get("a")
	require.NoError(t, err)
	require.False(t, found)

	err = s.Remove("a")
	require.Error(t, err)
	require.Equal(t, engine.ErrKindKeyNotFound, engine.KindOf(err))
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v, found, err := s2.Get("k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", v)
}
