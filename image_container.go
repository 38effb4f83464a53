package main

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// containerType names a format that wraps disk contents instead of being them
type containerType string

const (
	containerQCOW2  containerType = "QCOW2"
	containerVMDK   containerType = "VMDK"
	containerVHDX   containerType = "VHDX"
	containerVHD    containerType = "VHD"
	containerVDI    containerType = "VDI"
	containerLVM2PV containerType = "LVM2PV"
	containerMDRAID containerType = "MDRAID"
)

var errVirtualDiskImage = errors.New("image is a virtual machine disk; convert it to a raw image first")

const mdraidMagic = 0xA92B4EFC

// detectVirtualDisk recognizes hypervisor disk formats. Writing one of these
// byte for byte leaves the target unbootable.
func detectVirtualDisk(head []byte) (containerType, bool) {
	switch {
	case bytes.HasPrefix(head, []byte{'Q', 'F', 'I', 0xFB}):
		return containerQCOW2, true
	case bytes.HasPrefix(head, []byte("KDMV")):
		return containerVMDK, true
	case bytes.HasPrefix(head, []byte("vhdxfile")):
		return containerVHDX, true
	// Dynamic and differencing VHDs carry a copy of the footer up front
	case bytes.HasPrefix(head, []byte("conectix")):
		return containerVHD, true
	case len(head) >= 0x44 && binary.LittleEndian.Uint32(head[0x40:0x44]) == 0xBEDA107F:
		return containerVDI, true
	}
	return "", false
}

// detectVolumeContainer finds LVM2 physical volume labels and MD RAID
// superblocks at the start of an image.
func detectVolumeContainer(head []byte) (containerType, bool) {
	if detectLVM2PV(head, 512) {
		return containerLVM2PV, true
	}
	if detectMDRAID(head) {
		return containerMDRAID, true
	}
	return "", false
}

func detectLVM2PV(head []byte, sectorSize int) bool {
	offsets := []int{0, sectorSize, 4 * sectorSize, 8 * sectorSize, 4096}
	for _, off := range offsets {
		if off+512 > len(head) {
			continue
		}
		if bytes.Contains(head[off:off+512], []byte("LABELONE")) {
			return true
		}
	}
	return false
}

// detectMDRAID checks where version 1.2 superblocks live
func detectMDRAID(head []byte) bool {
	for _, off := range []int{4096, 8192} {
		if off+4 > len(head) {
			continue
		}
		if binary.LittleEndian.Uint32(head[off:off+4]) == mdraidMagic ||
			binary.BigEndian.Uint32(head[off:off+4]) == mdraidMagic {
			return true
		}
	}
	return false
}
