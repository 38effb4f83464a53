package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strings"
	"unicode/utf16"
)

// Images are laid out for 512 byte sectors
const imageSectorSize = 512

var errNoPartitionTable = errors.New("no partition table found")

type gptHeader struct {
	Signature           [8]byte
	Revision            [4]byte
	HeaderSize          uint32
	CRC32               uint32
	_                   [4]byte
	CurrentLBA          uint64
	BackupLBA           uint64
	FirstUsableLBA      uint64
	LastUsableLBA       uint64
	DiskGUID            [16]byte
	PartitionEntryLBA   uint64
	NumPartEntries      uint32
	PartEntrySize       uint32
	PartEntryArrayCRC32 uint32
}

type gptPartition struct {
	TypeGUID       [16]byte
	UniqueGUID     [16]byte
	FirstLBA       uint64
	LastLBA        uint64
	AttributeFlags uint64
	PartitionName  [72]byte
}

type mbrPartition struct {
	Status      uint8
	_           [3]byte
	Type        uint8
	_           [3]byte
	FirstSector uint32
	Sectors     uint32
}

type mbrStruct struct {
	_          [446]byte
	Partitions [4]mbrPartition
	Signature  uint16
}

// imagePartition is one entry of the partition table found in an image
type imagePartition struct {
	Number     int
	Type       string
	Name       string
	FirstLBA   uint64
	Sectors    uint64
	Logical    bool
	Filesystem string // empty when the partition starts past the inspected data
}

// partitionTable is the decoded partition table of an image
type partitionTable struct {
	Scheme     string
	Partitions []imagePartition
	Warnings   []string
}

var gptTypeNames = map[string]string{
	"0fc63daf-8483-4772-8e79-3d69d8477de4": "Linux Filesystem",
	"0657fd6d-a4ab-43c4-84e5-0933c84b4f4f": "Linux Swap",
	"e6d6d379-f507-44c2-a23c-238f2a3df928": "Linux LVM",
	"a19d880f-05fc-4d3b-a006-743f0f84911e": "Linux RAID",
	"4f68bce3-e8cd-4db1-96e7-fbcaf984b709": "Linux Root (x86-64)",
	"b921b045-1df0-41c3-af44-4c6f280d3fae": "Linux Root (ARM64)",
	"c12a7328-f81f-11d2-ba4b-00a0c93ec93b": "EFI System",
	"21686148-6449-6e6f-744e-656564454649": "BIOS Boot",
	"ebd0a0a2-b9e5-4433-87c0-68b6b72699c7": "Windows Basic Data",
	"e3c9e316-0b5c-4db8-817d-f92df00215ae": "Microsoft Reserved",
	"de94bba4-06d1-4d40-a16a-bfd50179d6ac": "Windows Recovery",
	"48465300-0000-11aa-aa11-00306543ecac": "Apple HFS+",
	"7c3457ef-0000-11aa-aa11-00306543ecac": "Apple APFS",
}

var mbrTypeNames = map[byte]string{
	0x01: "FAT12",
	0x04: "FAT16",
	0x05: "Extended",
	0x06: "FAT16",
	0x07: "NTFS/exFAT",
	0x0b: "FAT32",
	0x0c: "FAT32 (LBA)",
	0x0e: "FAT16 (LBA)",
	0x0f: "Extended (LBA)",
	0x82: "Linux Swap",
	0x83: "Linux",
	0x85: "Linux Extended",
	0x8e: "Linux LVM",
	0xa5: "FreeBSD",
	0xee: "GPT Protective",
	0xef: "EFI System",
	0xfd: "Linux RAID",
}

// guidToString formats a GUID byte array into the standard string format
func guidToString(b []byte) string {
	if len(b) < 16 {
		return ""
	}
	d1 := binary.LittleEndian.Uint32(b[0:4])
	d2 := binary.LittleEndian.Uint16(b[4:6])
	d3 := binary.LittleEndian.Uint16(b[6:8])
	return fmt.Sprintf("%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		d1, d2, d3,
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	)
}

// decodeUTF16LE decodes UTF-16LE encoded partition names
func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		v := binary.LittleEndian.Uint16(b[i : i+2])
		if v == 0 {
			break
		}
		u16 = append(u16, v)
	}
	return string(utf16.Decode(u16))
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// validateGPTHeaderCRC validates the CRC32 of a GPT header
func validateGPTHeaderCRC(headerBytes []byte, headerSize uint32) error {
	if len(headerBytes) < int(headerSize) {
		return fmt.Errorf("header too small for validation")
	}

	origCRC := binary.LittleEndian.Uint32(headerBytes[16:20])

	// Create a copy with CRC field zeroed
	tmp := make([]byte, headerSize)
	copy(tmp, headerBytes[:headerSize])
	for i := 16; i < 20; i++ {
		tmp[i] = 0
	}

	calculatedCRC := crc32.ChecksumIEEE(tmp)
	if calculatedCRC != origCRC {
		return fmt.Errorf("GPT header CRC mismatch: calculated 0x%08X, expected 0x%08X", calculatedCRC, origCRC)
	}
	return nil
}

// validateGPTEntriesCRC validates the CRC32 of GPT partition entries
func validateGPTEntriesCRC(entries []byte, expectedCRC uint32) error {
	calculatedCRC := crc32.ChecksumIEEE(entries)
	if calculatedCRC != expectedCRC {
		return fmt.Errorf("GPT entries CRC mismatch: calculated 0x%08X, expected 0x%08X", calculatedCRC, expectedCRC)
	}
	return nil
}

// readPartitionTable decodes the GPT or MBR partition table at the start of
// an image. Only head is consulted.
func readPartitionTable(head []byte) (*partitionTable, error) {
	if len(head) >= 2*imageSectorSize && string(head[imageSectorSize:imageSectorSize+8]) == "EFI PART" {
		return readGPT(head)
	}
	return readMBR(head)
}

func readGPT(head []byte) (*partitionTable, error) {
	headerBytes := head[imageSectorSize : 2*imageSectorSize]
	header := gptHeader{}
	if err := binary.Read(bytes.NewReader(headerBytes), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("error parsing GPT header: %w", err)
	}
	if header.HeaderSize < 92 || int(header.HeaderSize) > len(headerBytes) {
		return nil, fmt.Errorf("invalid GPT header size: %d", header.HeaderSize)
	}
	if header.PartEntrySize < 128 {
		return nil, fmt.Errorf("invalid GPT entry size: %d", header.PartEntrySize)
	}

	table := &partitionTable{Scheme: "GPT"}
	if err := validateGPTHeaderCRC(headerBytes, header.HeaderSize); err != nil {
		table.Warnings = append(table.Warnings, err.Error())
	}

	start := header.PartitionEntryLBA * imageSectorSize
	size := uint64(header.NumPartEntries) * uint64(header.PartEntrySize)
	if start+size > uint64(len(head)) {
		return nil, fmt.Errorf("GPT entries at LBA %d lie beyond the first %s of the image",
			header.PartitionEntryLBA, formatBytes(len(head)))
	}
	entries := head[start : start+size]
	if err := validateGPTEntriesCRC(entries, header.PartEntryArrayCRC32); err != nil {
		table.Warnings = append(table.Warnings, err.Error())
	}

	for i := uint32(0); i < header.NumPartEntries; i++ {
		off := uint64(i) * uint64(header.PartEntrySize)
		part := gptPartition{}
		if err := binary.Read(bytes.NewReader(entries[off:off+uint64(header.PartEntrySize)]), binary.LittleEndian, &part); err != nil {
			return nil, fmt.Errorf("error reading partition entry %d: %w", i, err)
		}
		// Skip empty entries (all-zero TypeGUID)
		if isAllZero(part.TypeGUID[:]) || part.FirstLBA == 0 {
			continue
		}

		typeGUID := guidToString(part.TypeGUID[:])
		typeName, ok := gptTypeNames[typeGUID]
		if !ok {
			typeName = typeGUID
		}
		table.Partitions = append(table.Partitions, imagePartition{
			Number:     len(table.Partitions) + 1,
			Type:       typeName,
			Name:       decodeUTF16LE(part.PartitionName[:]),
			FirstLBA:   part.FirstLBA,
			Sectors:    part.LastLBA - part.FirstLBA + 1,
			Filesystem: partitionFilesystem(head, part.FirstLBA),
		})
	}
	return table, nil
}

func readMBR(head []byte) (*partitionTable, error) {
	if len(head) < imageSectorSize {
		return nil, errNoPartitionTable
	}
	mbr := mbrStruct{}
	if err := binary.Read(bytes.NewReader(head[:imageSectorSize]), binary.LittleEndian, &mbr); err != nil {
		return nil, fmt.Errorf("error reading MBR: %w", err)
	}
	if mbr.Signature != 0xAA55 {
		return nil, errNoPartitionTable
	}

	table := &partitionTable{Scheme: "MBR"}
	for _, part := range mbr.Partitions {
		if part.Sectors == 0 || part.Type == 0 {
			continue
		}
		// Boot code in a bare filesystem boot sector, not a table
		if part.Status != 0x00 && part.Status != 0x80 {
			return nil, errNoPartitionTable
		}
		table.Partitions = append(table.Partitions, mbrImagePartition(head, part, len(table.Partitions)+1, false))

		if !isExtendedType(part.Type) {
			continue
		}
		logical, err := readEBRChain(bytes.NewReader(head), imageSectorSize, part.FirstSector)
		if err != nil {
			table.Warnings = append(table.Warnings, fmt.Sprintf("could not read extended partition chain: %v", err))
		}
		for _, lp := range logical {
			table.Partitions = append(table.Partitions, mbrImagePartition(head, lp, len(table.Partitions)+1, true))
		}
	}

	// A FAT or NTFS boot sector also ends in 0xAA55 but holds no table
	if len(table.Partitions) == 0 {
		return nil, errNoPartitionTable
	}
	return table, nil
}

func mbrImagePartition(head []byte, part mbrPartition, number int, logical bool) imagePartition {
	typeName, ok := mbrTypeNames[part.Type]
	if !ok {
		typeName = fmt.Sprintf("0x%02x", part.Type)
	}
	p := imagePartition{
		Number:   number,
		Type:     typeName,
		FirstLBA: uint64(part.FirstSector),
		Sectors:  uint64(part.Sectors),
		Logical:  logical,
	}
	if !isExtendedType(part.Type) {
		p.Filesystem = partitionFilesystem(head, p.FirstLBA)
	}
	return p
}

// partitionFilesystem names the filesystem at lba if it starts inside head
func partitionFilesystem(head []byte, lba uint64) string {
	off := lba * imageSectorSize
	if off >= uint64(len(head)) {
		return ""
	}
	return inspectImage(head[off:])
}

// isExtendedType checks if a partition type is an extended partition type
func isExtendedType(t byte) bool {
	switch t {
	case 0x05, 0x0F, 0x85:
		return true
	default:
		return false
	}
}

// parseMBREntryFromBytes parses an MBR entry from raw bytes
func parseMBREntryFromBytes(b []byte) mbrPartition {
	return mbrPartition{
		Status:      b[0],
		Type:        b[4],
		FirstSector: binary.LittleEndian.Uint32(b[8:12]),
		Sectors:     binary.LittleEndian.Uint32(b[12:16]),
	}
}

// readEBRChain reads the extended boot record chain to find logical partitions
func readEBRChain(r io.ReaderAt, sectorSize uint64, baseLBA uint32) ([]mbrPartition, error) {
	var logicalPartitions []mbrPartition
	nextEBR := uint64(baseLBA)
	maxHops := 128

	for hops := 0; hops < maxHops; hops++ {
		buf := make([]byte, sectorSize)
		if _, err := r.ReadAt(buf, int64(nextEBR*sectorSize)); err != nil {
			return logicalPartitions, fmt.Errorf("read EBR at LBA %d failed: %w", nextEBR, err)
		}
		if buf[510] != 0x55 || buf[511] != 0xAA {
			return logicalPartitions, fmt.Errorf("EBR signature missing at LBA %d", nextEBR)
		}

		entries := buf[446 : 446+32]
		e1 := parseMBREntryFromBytes(entries[0:16])
		e2 := parseMBREntryFromBytes(entries[16:32])

		// First entry is the logical partition, relative to its EBR
		if e1.Type != 0x00 && e1.Sectors != 0 {
			logicalPartitions = append(logicalPartitions, mbrPartition{
				Status:      e1.Status,
				Type:        e1.Type,
				FirstSector: uint32(nextEBR + uint64(e1.FirstSector)),
				Sectors:     e1.Sectors,
			})
		}

		// Second entry points to the next EBR, relative to the extended partition
		if e2.Type == 0x00 || e2.Sectors == 0 || !isExtendedType(e2.Type) {
			break
		}
		nextEBR = uint64(baseLBA) + uint64(e2.FirstSector)
	}

	return logicalPartitions, nil
}

// String renders the table the way the inspect command prints it
func (t *partitionTable) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Partition table: %s\n", t.Scheme)
	for _, p := range t.Partitions {
		indent := "  "
		if p.Logical {
			indent = "    "
		}
		fmt.Fprintf(&b, "%s%d. %s, FirstSector: %d, Sectors: %d, Total: %s",
			indent, p.Number, p.Type, p.FirstLBA, p.Sectors, formatBytes(p.Sectors*imageSectorSize))
		if p.Name != "" {
			fmt.Fprintf(&b, ", Name: %q", p.Name)
		}
		if p.Filesystem != "" {
			fmt.Fprintf(&b, ", FileSystem: %s", p.Filesystem)
		}
		b.WriteString("\n")
	}
	for _, w := range t.Warnings {
		fmt.Fprintf(&b, "  Warning: %s\n", w)
	}
	return b.String()
}
