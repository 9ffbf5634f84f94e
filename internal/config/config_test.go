package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: 0.0.0.0:9000\nworkers: 8\n"), 0o644))

	cfg, err := LoadServerFile(path, DefaultServer())
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Addr)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, DefaultServer().Engine, cfg.Engine)
}

func TestLoadServerFileMissingPathIsNotAnError(t *testing.T) {
	cfg, err := LoadServerFile("", DefaultServer())
	require.NoError(t, err)
	require.Equal(t, DefaultServer(), cfg)
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := DefaultServer()
	cfg.Engine = "mystery"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	cfg := DefaultServer()
	cfg.Addr = ""
	require.Error(t, cfg.Validate())
}
