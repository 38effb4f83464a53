package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "/sys/block", cfg.SysBlock)
	assert.Equal(t, 100*kb, cfg.ChunkSize)
	assert.True(t, cfg.Verify)
}

func TestLoadConfigMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := loadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	_, err = loadConfig(path, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sysBlock: /tmp/sys/block
chunkSize: 1048576
verify: false
watchInterval: 500ms
debug: true
`), 0o644))

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, Config{
		SysBlock:      "/tmp/sys/block",
		DevRoot:       "/dev",
		ChunkSize:     mb,
		Verify:        false,
		WatchInterval: 500 * time.Millisecond,
		Debug:         true,
	}, cfg)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("chunkSize: [1, 2"), 0o644))
	_, err := loadConfig(broken, true)
	assert.Error(t, err)

	negative := filepath.Join(dir, "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("chunkSize: -1\n"), 0o644))
	cfg, err := loadConfig(negative, true)
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.validate(), "chunkSize")
}
