package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// imageHeadSize is how much of the decompressed image is sniffed before writing
const imageHeadSize = 128 * kb

type fileSystemStruct struct {
	Name      string
	Signature []byte
	Offset    int64
}

// imageSignatureList holds signatures found at the start of whole-disk
// images or of bare filesystem images.
var imageSignatureList = []fileSystemStruct{
	{Name: "GPT", Signature: []byte("EFI PART"), Offset: 0x200},
	{Name: "ISO9660", Signature: []byte("CD001"), Offset: 0x8001},
	{Name: "UDF", Signature: []byte{0x01, 0x50, 0x4E, 0x41, 0x31, 0x33, 0x30, 0x31}, Offset: 0x4028},
	{Name: "Btrfs", Signature: []byte("_BHRfS_M"), Offset: 0x10040},
	{Name: "SquashFS", Signature: []byte("hsqs"), Offset: 0},
	{Name: "XFS", Signature: []byte("XFSB"), Offset: 0},
	{Name: "F2FS", Signature: []byte{0x10, 0x20, 0xF5, 0xF2}, Offset: 0x400},
	{Name: "exFAT", Signature: []byte("EXFAT   "), Offset: 3},
	{Name: "NTFS", Signature: []byte("NTFS    "), Offset: 3},
	{Name: "FAT32", Signature: []byte("FAT32   "), Offset: 0x52},
	{Name: "FAT12/16", Signature: []byte("FAT1"), Offset: 0x36},
	{Name: "LUKS", Signature: []byte{'L', 'U', 'K', 'S', 0xBA, 0xBE}, Offset: 0},
}

// inspectImage names the layout found at the start of an image. Unknown
// images are not rejected; the name is only used for diagnostics.
func inspectImage(head []byte) string {
	for _, fs := range imageSignatureList {
		end := fs.Offset + int64(len(fs.Signature))
		if int64(len(head)) >= end && bytes.Equal(head[fs.Offset:end], fs.Signature) {
			return fs.Name
		}
	}

	if c, ok := detectVolumeContainer(head); ok {
		return string(c)
	}

	if extFsType := detectExtFilesystem(head); extFsType != "Unknown" {
		return extFsType
	}

	// A bare boot signature with no filesystem marker is a partitioned disk
	if len(head) >= 512 && binary.LittleEndian.Uint16(head[510:512]) == 0xAA55 {
		return "MBR"
	}

	return "Unknown"
}

// detectExtFilesystem detects ext2/ext3/ext4 filesystems by reading superblock
func detectExtFilesystem(head []byte) string {
	const superblockOffset = 0x400
	if len(head) < superblockOffset+0x70 {
		return "Unknown"
	}
	buffer := head[superblockOffset : superblockOffset+0x70]

	magic := binary.LittleEndian.Uint16(buffer[0x38:0x3a])
	compatibleFeatures := binary.LittleEndian.Uint32(buffer[0x5c:0x60])
	incompatibleFeatures := binary.LittleEndian.Uint32(buffer[0x60:0x64])

	if magic != 0xEF53 {
		return "Unknown"
	}

	if (incompatibleFeatures & 0x40) == 0x40 {
		return "ext4"
	} else if (compatibleFeatures & 0x4) == 0x4 {
		return "ext3"
	}

	return "ext2"
}

// imageReport describes an image file without writing it
type imageReport struct {
	Path        string
	Compression string
	Size        int64  // uncompressed size, 0 when unknown before decompressing
	Container   string // virtual disk format, if the image is one
	Layout      string
	Table       *partitionTable
	TableErr    error
}

// describeImage decompresses the head of an image and decodes what it finds there
func describeImage(path, algorithm string) (imageReport, error) {
	if algorithm == "" {
		algorithm = detectCompression(path)
	}
	if _, err := getCompressionExtension(algorithm); err != nil {
		return imageReport{}, err
	}

	image, err := openImage(path, algorithm)
	if err != nil {
		return imageReport{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer image.Close()

	head := make([]byte, imageHeadSize)
	n, err := io.ReadFull(image, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return imageReport{}, fmt.Errorf("failed to read image: %w", err)
	}
	head = head[:n]

	report := imageReport{
		Path:        path,
		Compression: algorithm,
		Size:        uncompressedSize(path, algorithm),
	}
	if kind, ok := detectVirtualDisk(head); ok {
		report.Container = string(kind)
		return report, nil
	}
	report.Layout = inspectImage(head)
	report.Table, report.TableErr = readPartitionTable(head)
	return report, nil
}
