package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSysfsRegistryFirstByte(t *testing.T) {
	root := t.TempDir()
	writeSysfsFixture(t, root, map[string]map[string]string{
		"sdb": {attrRemovable: "1\n", attrDeviceType: "", "size": "31116288\n"},
	})
	reg := newSysfsRegistry(root)

	b, err := reg.FirstByte("sdb", attrRemovable)
	require.NoError(t, err)
	assert.Equal(t, byte('1'), b)

	b, err = reg.FirstByte("sdb", "size")
	require.NoError(t, err)
	assert.Equal(t, byte('3'), b)

	_, err = reg.FirstByte("sdb", attrDeviceType)
	assert.ErrorIs(t, err, io.EOF)

	_, err = reg.FirstByte("sdb", "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSysfsRegistryFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	devices := filepath.Join(root, "devices")
	writeSysfsFixture(t, devices, map[string]map[string]string{
		"usb1": {attrRemovable: "1", attrDeviceType: "0"},
	})
	block := filepath.Join(root, "block")
	require.NoError(t, os.Mkdir(block, 0o755))
	require.NoError(t, os.Symlink(filepath.Join(devices, "usb1"), filepath.Join(block, "sdd")))

	disks, err := listRemovableDisks(newSysfsRegistry(block))
	require.NoError(t, err)
	assert.Equal(t, []string{"sdd"}, disks)
}

func TestSysfsRegistryDefaultRoot(t *testing.T) {
	assert.Equal(t, defaultSysBlock, newSysfsRegistry("").root)
}

func TestMemRegistry(t *testing.T) {
	reg := newMemRegistry().
		add("sda", attrRemovable, "1").
		add("sdb", attrRemovable, "0")

	names, err := reg.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"sda", "sdb"}, names)

	_, err = reg.FirstByte("sda", attrDeviceType)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = reg.FirstByte("sdx", attrRemovable)
	assert.ErrorIs(t, err, os.ErrNotExist)

	reg.remove("sda")
	names, err = reg.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"sdb"}, names)
}
