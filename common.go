package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// formatBytes renders a byte count using the largest fitting unit
func formatBytes[T dataSizeNumber](n T) string {
	if n < 0 {
		return fmt.Sprintf("%d bytes", int64(n))
	}
	v := uint64(n)
	for _, u := range units {
		if v >= u.Threshold {
			if u.Threshold == 1 {
				return fmt.Sprintf("%d bytes", v)
			}
			return fmt.Sprintf("%.2f %s", float64(v)/float64(u.Threshold), u.Name)
		}
	}
	return "0 bytes"
}

// formatSpeed renders a transfer rate in bytes per second
func formatSpeed(bps float64) string {
	if bps <= 0 {
		return "0 bytes/s"
	}
	return formatBytes(uint64(bps)) + "/s"
}

// formatETA renders the estimated time left, or N/A when it cannot be known
func formatETA(done, total int64, elapsed time.Duration) string {
	if total <= 0 || done <= 0 || elapsed <= 0 {
		return "N/A"
	}
	rate := float64(done) / elapsed.Seconds()
	remaining := float64(total-done) / rate
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining * float64(time.Second)).Truncate(time.Second).String()
}

// devicePath maps a registry name to its device node
func devicePath(devRoot, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(devRoot, name)
}

// Exit if we don't have permission to write the device
func checkForPerms(device string) {
	if !hasWritePermission(device) {
		fmt.Printf("No permission to write the device: %s, try with elevated priviledges\n", device)
		os.Exit(13)
	}
}
