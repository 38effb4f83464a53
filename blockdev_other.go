//go:build !linux

package main

import "os"

func getBlockDeviceSize(devPath string) (int64, error) {
	info, err := os.Stat(devPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func getSectorSize(_ *os.File) int {
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
