package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lighkLife/kvs/internal/engine"
)

func TestSelectEngineWritesMarkerOnFreshDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := SelectEngine(dir, engine.Builtin)
	require.NoError(t, err)
	require.Equal(t, engine.Builtin, got)
}

func TestSelectEngineAgreesOnSecondOpen(t *testing.T) {
	dir := t.TempDir()
	_, err := SelectEngine(dir, engine.Bolt)
	require.NoError(t, err)

	got, err := SelectEngine(dir, engine.Bolt)
	require.NoError(t, err)
	require.Equal(t, engine.Bolt, got)
}

func TestSelectEngineRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	_, err := SelectEngine(dir, engine.Builtin)
	require.NoError(t, err)

	_, err = SelectEngine(dir, engine.Bolt)
	require.Error(t, err)
	require.Equal(t, engine.ErrKindEngineMismatch, engine.KindOf(err))
}

func TestSelectEngineRejectsUnknownName(t *testing.T) {
	dir := t.TempDir()
	_, err := SelectEngine(dir, engine.Name("unknown"))
	require.Error(t, err)
	require.Equal(t, engine.ErrKindBadArgument, engine.KindOf(err))
}
