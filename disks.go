package main

import (
	"context"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/disk"
	log "github.com/sirupsen/logrus"
)

// describeDisks gathers display details for the enumerated removable disks.
// Missing details never drop a name from the result.
func describeDisks(ctx context.Context, names []string, devRoot string) []DiskInfo {
	logger := log.WithField("component", "disks")

	var inventory []*ghw.Disk
	block, err := ghw.Block()
	if err != nil {
		logger.Debugf("Block inventory unavailable: %v.", err)
	} else {
		inventory = block.Disks
	}

	mounts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		logger.Debugf("Mount table unavailable: %v.", err)
	}

	return mergeDiskDetails(names, devRoot, inventory, mounts, getBlockDeviceSize)
}

// mergeDiskDetails joins the enumerated names with the ghw inventory and the
// mount table, preserving the order of names.
func mergeDiskDetails(names []string, devRoot string, inventory []*ghw.Disk, mounts []disk.PartitionStat, sizeOf func(string) (int64, error)) []DiskInfo {
	byName := make(map[string]*ghw.Disk, len(inventory))
	for _, d := range inventory {
		byName[d.Name] = d
	}

	disks := make([]DiskInfo, 0, len(names))
	for _, name := range names {
		info := DiskInfo{
			Name: name,
			Path: devicePath(devRoot, name),
		}

		if d, ok := byName[name]; ok {
			info.Size = int64(d.SizeBytes)
			info.Vendor = d.Vendor
			info.Model = d.Model
			info.Serial = d.SerialNumber
		} else if size, err := sizeOf(info.Path); err == nil {
			info.Size = size
		}

		if info.Size > 0 {
			info.SizeStr = formatBytes(info.Size)
		} else {
			info.SizeStr = "unknown size"
		}

		parts := filterMountedPartitions(mounts, info.Path)
		info.Mounted = len(parts) > 0
		info.MountInfo = mountSummary(parts)

		disks = append(disks, info)
	}
	return disks
}
