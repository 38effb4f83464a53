package main

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const (
	attrRemovable  = "removable"
	attrDeviceType = "device/type"

	// SCSI peripheral type code for direct-access block devices
	scsiTypeDisk = '0'
)

// ErrRegistryUnavailable is returned when the registry root itself cannot
// be listed, as opposed to a registry that simply has no removable disks.
var ErrRegistryUnavailable = errors.New("block device registry unavailable")

// listRemovableDisks returns the names of all registry entries that are
// removable whole disks, in registry iteration order.
func listRemovableDisks(reg Registry) ([]string, error) {
	entries, err := reg.Entries()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}

	devices := make([]string, 0)
	for _, name := range entries {
		if isRemovable(reg, name) && isDisk(reg, name) {
			devices = append(devices, name)
		}
	}

	return devices, nil
}

func isRemovable(reg Registry, name string) bool {
	return checkFirstByte(reg, name, attrRemovable, '1')
}

func isDisk(reg Registry, name string) bool {
	return checkFirstByte(reg, name, attrDeviceType, scsiTypeDisk)
}

// checkFirstByte reports whether the attribute starts with value. Read
// failures count as a mismatch and only surface in debug logs.
func checkFirstByte(reg Registry, name, attribute string, value byte) bool {
	b, err := reg.FirstByte(name, attribute)
	if err != nil {
		log.WithFields(log.Fields{
			"component": "enumerate",
			"device":    name,
			"attribute": attribute,
		}).Debugf("Attribute unreadable: %v.", err)
		return false
	}
	return b == value
}
