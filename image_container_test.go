package main

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectVirtualDisk(t *testing.T) {
	vdi := make([]byte, 512)
	copy(vdi, "<<< Oracle VM VirtualBox Disk Image >>>\n")
	binary.LittleEndian.PutUint32(vdi[0x40:], 0xBEDA107F)

	cases := []struct {
		name string
		head []byte
		want containerType
	}{
		{"qcow2", []byte{'Q', 'F', 'I', 0xFB, 0, 0, 0, 3}, containerQCOW2},
		{"vmdk", []byte("KDMV\x01\x00\x00\x00"), containerVMDK},
		{"vhdx", []byte("vhdxfile"), containerVHDX},
		{"vhd", []byte("conectix\x00\x00\x00\x02"), containerVHD},
		{"vdi", vdi, containerVDI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := detectVirtualDisk(tc.head)
			assert.True(t, ok)
			assert.Equal(t, tc.want, kind)
		})
	}

	_, ok := detectVirtualDisk(make([]byte, 4*kb))
	assert.False(t, ok)
	_, ok = detectVirtualDisk(nil)
	assert.False(t, ok)
}

func TestDetectVolumeContainer(t *testing.T) {
	lvm := make([]byte, 8*kb)
	copy(lvm[512:], "LABELONE\x01\x00\x00\x00\x00\x00\x00\x00")
	copy(lvm[512+24:], "LVM2 001")

	md := make([]byte, 8*kb)
	binary.LittleEndian.PutUint32(md[4096:], mdraidMagic)

	kind, ok := detectVolumeContainer(lvm)
	assert.True(t, ok)
	assert.Equal(t, containerLVM2PV, kind)
	assert.Equal(t, "LVM2PV", inspectImage(lvm))

	kind, ok = detectVolumeContainer(md)
	assert.True(t, ok)
	assert.Equal(t, containerMDRAID, kind)

	_, ok = detectVolumeContainer(md[:4096])
	assert.False(t, ok)
}

func TestWriteImageRefusesVirtualDisk(t *testing.T) {
	image := filepath.Join(t.TempDir(), "disk.qcow2")
	head := append([]byte{'Q', 'F', 'I', 0xFB}, testImageData(4*kb)...)
	require.NoError(t, os.WriteFile(image, head, 0o644))
	device := fakeDevice(t, 8*kb)

	_, err := writeImage(context.Background(), writeOptions{
		Image:       image,
		Device:      device,
		Compression: compressionNone,
		Mounts:      noMounts,
	})
	assert.ErrorIs(t, err, errVirtualDiskImage)
	assert.ErrorContains(t, err, "QCOW2")

	untouched, err := os.ReadFile(device)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8*kb), untouched)
}
