package main

var appversion = "0.3.2"

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
	tb = 1 << 40
	pb = 1 << 50
)

// placeholderDevice is shown in device selectors when nothing can be offered
const placeholderDevice = "--"

// DataSizeNumber is a type constraint that allows any signed or unsigned integer type.
type dataSizeNumber interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~uintptr
}

// Unit represents a data size unit with its name and threshold.
type Unit struct {
	Name      string
	Threshold uint64
}

// Predefined units in descending order.
var units = []Unit{
	{"PB", pb},
	{"TB", tb},
	{"GB", gb},
	{"MB", mb},
	{"KB", kb},
	{"bytes", 1},
}

// DiskInfo represents information about a removable disk
type DiskInfo struct {
	Name      string
	Path      string
	Size      int64  // Size in bytes, 0 if unavailable
	SizeStr   string // Formatted size string
	Vendor    string
	Model     string
	Serial    string
	MountInfo string // Mount points of the disk's partitions
	Mounted   bool
}

// MountedPartition is a mounted filesystem that lives on a target disk
type MountedPartition struct {
	Device     string
	Mountpoint string
	Fstype     string
}

// WatchEvent reports a removable disk appearing or disappearing
type WatchEvent struct {
	Name      string
	Connected bool
}
