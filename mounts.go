package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	log "github.com/sirupsen/logrus"
)

// isPartitionOf reports whether partition is diskPath itself or one of its
// partitions: /dev/sdb -> /dev/sdb1, /dev/mmcblk0 -> /dev/mmcblk0p1.
func isPartitionOf(partition, diskPath string) bool {
	if partition == diskPath {
		return true
	}
	if !strings.HasPrefix(partition, diskPath) {
		return false
	}
	suffix := partition[len(diskPath):]
	// Disks whose name ends in a digit number their partitions with a 'p'
	if n := len(diskPath); n > 0 && diskPath[n-1] >= '0' && diskPath[n-1] <= '9' {
		if !strings.HasPrefix(suffix, "p") {
			return false
		}
		suffix = suffix[1:]
	}
	if suffix == "" {
		return false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// filterMountedPartitions picks the mount table entries that belong to diskPath
func filterMountedPartitions(stats []disk.PartitionStat, diskPath string) []MountedPartition {
	var parts []MountedPartition
	for _, st := range stats {
		if isPartitionOf(st.Device, diskPath) {
			parts = append(parts, MountedPartition{
				Device:     st.Device,
				Mountpoint: st.Mountpoint,
				Fstype:     st.Fstype,
			})
		}
	}
	return parts
}

// mountedPartitions returns the mounted filesystems living on diskPath
func mountedPartitions(ctx context.Context, diskPath string) ([]MountedPartition, error) {
	stats, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read mount table: %w", err)
	}
	return filterMountedPartitions(stats, diskPath), nil
}

// unmounter runs the platform unmount for a single partition device
type unmounter func(ctx context.Context, partitionPath string) error

// unmountPartitionPlatform performs the actual unmount operation
func unmountPartitionPlatform(ctx context.Context, partitionPath string) error {
	cmd := exec.CommandContext(ctx, "umount", partitionPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to unmount %s: %s", partitionPath, strings.TrimSpace(string(output)))
	}
	return nil
}

// unmountPartitions unmounts every partition, warning about and collecting
// failures instead of stopping at the first one.
func unmountPartitions(ctx context.Context, parts []MountedPartition, umount unmounter) error {
	var errs []error
	for _, part := range parts {
		logger := log.WithFields(log.Fields{
			"component":  "mounts",
			"device":     part.Device,
			"mountpoint": part.Mountpoint,
		})
		if err := umount(ctx, part.Device); err != nil {
			logger.Warnf("Failed to unmount: %v.", err)
			errs = append(errs, err)
			continue
		}
		logger.Info("Unmounted.")
	}
	return errors.Join(errs...)
}

// mountSummary renders the mount points for display
func mountSummary(parts []MountedPartition) string {
	if len(parts) == 0 {
		return "(not mounted)"
	}
	points := make([]string, 0, len(parts))
	for _, p := range parts {
		points = append(points, fmt.Sprintf("%s on %s (%s)", p.Device, p.Mountpoint, p.Fstype))
	}
	return "(mounted: " + strings.Join(points, ", ") + ")"
}
