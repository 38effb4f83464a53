package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

type writeState int

const (
	stateInit writeState = iota
	stateWrite
	stateVerify
	stateDone
	stateError
)

func (s writeState) String() string {
	switch s {
	case stateInit:
		return "Init"
	case stateWrite:
		return "Writing"
	case stateVerify:
		return "Verifying"
	case stateDone:
		return "Done"
	case stateError:
		return "Error"
	default:
		return fmt.Sprintf("writeState(%d)", int(s))
	}
}

var (
	errImageNotFound    = errors.New("image file not found")
	errChecksumMismatch = errors.New("checksum error")
	errStillMounted     = errors.New("device still has mounted partitions")
)

// writeOptions describes one image write
type writeOptions struct {
	Image       string
	Device      string
	Compression string // empty selects by file extension
	ChunkSize   int
	Verify      bool
	Progress    progressSink

	// Replaceable for tests; default to the mount table and umount(8)
	Mounts  func(ctx context.Context, diskPath string) ([]MountedPartition, error)
	Unmount unmounter
}

// writeResult summarizes a finished write
type writeResult struct {
	Written   int64
	Checksum  string
	ImageKind string
	Verified  bool
}

// imageWriter moves through init, write and verify one step at a time
type imageWriter struct {
	opts  writeOptions
	state writeState
	err   error
	log   *log.Entry

	algorithm string
	total     int64
	written   int64
	verified  int64
	imageKind string

	image  io.ReadCloser
	source io.Reader
	device *os.File
	out    *countingWriter
	buf    []byte

	writeHash hash.Hash
	checkHash hash.Hash
}

func newImageWriter(opts writeOptions) *imageWriter {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Mounts == nil {
		opts.Mounts = mountedPartitions
	}
	if opts.Unmount == nil {
		opts.Unmount = unmountPartitionPlatform
	}
	return &imageWriter{
		opts:      opts,
		state:     stateInit,
		writeHash: sha256.New(),
		checkHash: sha256.New(),
		log: log.WithFields(log.Fields{
			"component": "write",
			"device":    opts.Device,
		}),
	}
}

// writeImage writes opts.Image onto opts.Device and verifies it
func writeImage(ctx context.Context, opts writeOptions) (writeResult, error) {
	w := newImageWriter(opts)
	defer w.cleanup()

	for w.next(ctx) {
	}
	if w.opts.Progress != nil {
		w.opts.Progress.Finish()
	}
	if w.state == stateError {
		return w.result(), w.err
	}
	return w.result(), nil
}

func (w *imageWriter) result() writeResult {
	return writeResult{
		Written:   w.written,
		Checksum:  hex.EncodeToString(w.writeHash.Sum(nil)),
		ImageKind: w.imageKind,
		Verified:  w.state == stateDone && w.opts.Verify,
	}
}

func (w *imageWriter) fail(err error) bool {
	w.err = err
	w.state = stateError
	w.log.WithError(err).Debug("Write failed.")
	return false
}

// next performs one step and reports whether more steps remain
func (w *imageWriter) next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil && w.state != stateDone && w.state != stateError {
		return w.fail(err)
	}

	switch w.state {
	case stateInit:
		return w.init(ctx)
	case stateWrite:
		return w.writeChunk()
	case stateVerify:
		return w.verifyChunk()
	default:
		return false
	}
}

func (w *imageWriter) init(ctx context.Context) bool {
	info, err := os.Stat(w.opts.Image)
	if err != nil || !info.Mode().IsRegular() {
		return w.fail(fmt.Errorf("%w: %s", errImageNotFound, w.opts.Image))
	}

	w.algorithm = w.opts.Compression
	if w.algorithm == "" {
		w.algorithm = detectCompression(w.opts.Image)
	}
	if _, err := getCompressionExtension(w.algorithm); err != nil {
		return w.fail(err)
	}
	w.total = uncompressedSize(w.opts.Image, w.algorithm)

	image, err := openImage(w.opts.Image, w.algorithm)
	if err != nil {
		return w.fail(fmt.Errorf("failed to open image: %w", err))
	}
	w.image = image

	reader := bufio.NewReaderSize(image, imageHeadSize)
	head, err := reader.Peek(imageHeadSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return w.fail(fmt.Errorf("failed to read image: %w", err))
	}
	w.source = reader
	if kind, ok := detectVirtualDisk(head); ok {
		return w.fail(fmt.Errorf("%w: %s", errVirtualDiskImage, kind))
	}
	w.imageKind = inspectImage(head)

	if err := w.releaseDevice(ctx); err != nil {
		return w.fail(err)
	}

	device, err := os.OpenFile(w.opts.Device, os.O_WRONLY, 0)
	if err != nil {
		return w.fail(fmt.Errorf("failed to open device: %w", err))
	}
	w.device = device
	w.out = &countingWriter{w: io.MultiWriter(device, w.writeHash)}

	chunk := w.opts.ChunkSize
	if st, err := device.Stat(); err == nil && st.Mode()&os.ModeDevice != 0 {
		sector := getSectorSize(device)
		chunk = (chunk + sector - 1) / sector * sector
	}
	w.buf = make([]byte, chunk)

	logger := w.log.WithFields(log.Fields{
		"image":       w.opts.Image,
		"compression": w.algorithm,
		"layout":      w.imageKind,
	})
	if w.imageKind == "Unknown" {
		logger.Warn("Image has no recognizable partition table or filesystem.")
	} else {
		logger.Info("Writing image.")
	}

	w.state = stateWrite
	return true
}

// releaseDevice unmounts everything mounted from the target device
func (w *imageWriter) releaseDevice(ctx context.Context) error {
	parts, err := w.opts.Mounts(ctx, w.opts.Device)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}

	// Failures are reported per partition; what matters is the state afterwards
	_ = unmountPartitions(ctx, parts, w.opts.Unmount)

	parts, err = w.opts.Mounts(ctx, w.opts.Device)
	if err != nil {
		return err
	}
	if len(parts) > 0 {
		return fmt.Errorf("%w: %s", errStillMounted, mountSummary(parts))
	}
	return nil
}

func (w *imageWriter) writeChunk() bool {
	n, err := io.ReadFull(w.source, w.buf)
	if n > 0 {
		_, wErr := w.out.Write(w.buf[:n])
		w.written = w.out.count
		if wErr != nil {
			return w.fail(fmt.Errorf("failed to write image: %w", wErr))
		}
		w.report(stateWrite, w.written, w.total)
	}

	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if w.total > 0 && w.written < w.total {
			return w.fail(fmt.Errorf("failed to read image: got %d of %d bytes", w.written, w.total))
		}
		return w.finishWrite()
	default:
		return w.fail(fmt.Errorf("failed to read image: %w", err))
	}
}

func (w *imageWriter) finishWrite() bool {
	if w.written == 0 {
		return w.fail(fmt.Errorf("failed to read image: image is empty"))
	}
	if err := w.device.Sync(); err != nil {
		return w.fail(fmt.Errorf("failed to flush device: %w", err))
	}
	if err := w.device.Close(); err != nil {
		w.device = nil
		return w.fail(fmt.Errorf("failed to close device: %w", err))
	}
	w.device = nil
	_ = w.image.Close()
	w.image = nil

	w.log.WithField("bytes", w.written).Info("Image written.")

	if !w.opts.Verify {
		w.state = stateDone
		return false
	}

	device, err := os.Open(w.opts.Device)
	if err != nil {
		return w.fail(fmt.Errorf("failed to open device for verification: %w", err))
	}
	w.device = device
	w.state = stateVerify
	return true
}

func (w *imageWriter) verifyChunk() bool {
	if w.verified == w.written {
		if !bytes.Equal(w.writeHash.Sum(nil), w.checkHash.Sum(nil)) {
			return w.fail(errChecksumMismatch)
		}
		w.log.Info("Image verified.")
		w.state = stateDone
		return false
	}

	want := int64(len(w.buf))
	if remaining := w.written - w.verified; remaining < want {
		want = remaining
	}
	n, err := io.ReadFull(w.device, w.buf[:want])
	if err != nil {
		return w.fail(fmt.Errorf("failed to read back device: %w", err))
	}
	w.checkHash.Write(w.buf[:n])
	w.verified += int64(n)
	w.report(stateVerify, w.verified, w.written)
	return true
}

func (w *imageWriter) report(state writeState, done, total int64) {
	if w.opts.Progress != nil {
		w.opts.Progress.Update(state, done, total)
	}
}

func (w *imageWriter) cleanup() {
	if w.device != nil {
		_ = w.device.Close()
		w.device = nil
	}
	if w.image != nil {
		_ = w.image.Close()
		w.image = nil
	}
}
