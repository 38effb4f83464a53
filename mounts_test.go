package main

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
)

func TestIsPartitionOf(t *testing.T) {
	cases := []struct {
		partition, disk string
		want            bool
	}{
		{"/dev/sdb", "/dev/sdb", true},
		{"/dev/sdb1", "/dev/sdb", true},
		{"/dev/sdb12", "/dev/sdb", true},
		{"/dev/sdba", "/dev/sdb", false},
		{"/dev/sdba1", "/dev/sdb", false},
		{"/dev/sda1", "/dev/sdb", false},
		{"/dev/mmcblk0p1", "/dev/mmcblk0", true},
		{"/dev/mmcblk0", "/dev/mmcblk0", true},
		{"/dev/mmcblk01", "/dev/mmcblk0", false},
		{"/dev/mmcblk0boot0", "/dev/mmcblk0", false},
		{"/dev/nvme0n1p2", "/dev/nvme0n1", true},
		{"/dev/nvme0n1p", "/dev/nvme0n1", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isPartitionOf(tc.partition, tc.disk), "%s on %s", tc.partition, tc.disk)
	}
}

func TestFilterMountedPartitions(t *testing.T) {
	stats := []disk.PartitionStat{
		{Device: "/dev/sda2", Mountpoint: "/", Fstype: "ext4"},
		{Device: "/dev/sdb1", Mountpoint: "/media/usb/boot", Fstype: "vfat"},
		{Device: "tmpfs", Mountpoint: "/tmp", Fstype: "tmpfs"},
		{Device: "/dev/sdb2", Mountpoint: "/media/usb/root", Fstype: "ext4"},
	}

	parts := filterMountedPartitions(stats, "/dev/sdb")
	assert.Equal(t, []MountedPartition{
		{Device: "/dev/sdb1", Mountpoint: "/media/usb/boot", Fstype: "vfat"},
		{Device: "/dev/sdb2", Mountpoint: "/media/usb/root", Fstype: "ext4"},
	}, parts)

	assert.Empty(t, filterMountedPartitions(stats, "/dev/sdc"))
}

func TestUnmountPartitionsContinuesAfterFailure(t *testing.T) {
	parts := []MountedPartition{
		{Device: "/dev/sdb1", Mountpoint: "/media/a"},
		{Device: "/dev/sdb2", Mountpoint: "/media/b"},
	}
	busy := errors.New("target is busy")

	var tried []string
	err := unmountPartitions(context.Background(), parts, func(_ context.Context, p string) error {
		tried = append(tried, p)
		if p == "/dev/sdb1" {
			return busy
		}
		return nil
	})

	assert.ErrorIs(t, err, busy)
	assert.Equal(t, []string{"/dev/sdb1", "/dev/sdb2"}, tried)
}

func TestMountSummary(t *testing.T) {
	assert.Equal(t, "(not mounted)", mountSummary(nil))
	assert.Equal(t, "(mounted: /dev/sdb1 on /media/usb (vfat))",
		mountSummary([]MountedPartition{{Device: "/dev/sdb1", Mountpoint: "/media/usb", Fstype: "vfat"}}))
}
