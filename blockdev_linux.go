//go:build linux

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// getBlockDeviceSize retrieves the total size of the block device using an ioctl call.
// Regular files (image files used as targets) report their stat size.
func getBlockDeviceSize(devPath string) (int64, error) {
	f, err := os.Open(devPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode().IsRegular() {
		return info.Size(), nil
	}

	var size uint64
	_, _, e := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if e != 0 {
		return 0, fmt.Errorf("ioctl BLKGETSIZE64 failed: %v", e)
	}
	return int64(size), nil
}

func getSectorSize(file *os.File) int {
	sectorSize, err := unix.IoctlGetInt(int(file.Fd()), unix.BLKSSZGET)
	if err == nil {
		return sectorSize
	}

	// If ioctl fails, fallback to reading from sysfs
	devName := filepath.Base(file.Name())
	data, err := os.ReadFile("/sys/class/block/" + devName + "/queue/hw_sector_size")
	if err == nil {
		sz, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr == nil && sz > 0 {
			return sz
		}
	}

	return 512
}

func hasWritePermission(device string) bool {
	file, err := os.OpenFile(device, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
