package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const compressionNone = "none"

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

// compressionExtensions maps file extensions to compression algorithms
var compressionExtensions = map[string]string{
	".gz":     "gzip",
	".gzip":   "gzip",
	".zlib":   "zlib",
	".bz2":    "bzip2",
	".snappy": "snappy",
	".sz":     "snappy",
	".s2":     "s2",
	".zst":    "zstd",
	".zstd":   "zstd",
	".xz":     "xz",
	".zip":    "zip",
}

// detectCompression guesses the compression algorithm from the file extension
func detectCompression(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if algorithm, ok := compressionExtensions[ext]; ok {
		return algorithm
	}
	return compressionNone
}

// getCompressionExtension returns the file extension for a given compression algorithm
func getCompressionExtension(compressionAlgorithm string) (string, error) {
	switch compressionAlgorithm {
	case "gzip":
		return ".gz", nil
	case "zlib":
		return ".zlib", nil
	case "bzip2":
		return ".bz2", nil
	case "snappy":
		return ".snappy", nil
	case "s2":
		return ".s2", nil
	case "zstd":
		return ".zst", nil
	case "xz":
		return ".xz", nil
	case "zip":
		return ".zip", nil
	case compressionNone:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported compression algorithm: %s", compressionAlgorithm)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// zipEntryWriter closes the archive once the single entry is done
type zipEntryWriter struct {
	io.Writer
	archive *zip.Writer
}

func (z *zipEntryWriter) Close() error {
	return z.archive.Close()
}

// createCompressionWriter creates a compression writer based on the algorithm.
// Closing the writer flushes the stream but leaves output open.
func createCompressionWriter(algorithm string, output io.Writer) (io.WriteCloser, error) {
	switch algorithm {
	case compressionNone:
		return nopWriteCloser{output}, nil
	case "gzip":
		return gzip.NewWriter(output), nil
	case "zlib":
		return zlib.NewWriter(output), nil
	case "bzip2":
		return bzip2.NewWriter(output, &bzip2.WriterConfig{})
	case "snappy":
		return snappy.NewBufferedWriter(output), nil
	case "s2":
		return s2.NewWriter(output), nil
	case "zstd":
		return zstd.NewWriter(output)
	case "xz":
		return xz.NewWriter(output)
	case "zip":
		zipWriter := zip.NewWriter(output)
		zipFile, err := zipWriter.Create("image.img")
		if err != nil {
			_ = zipWriter.Close()
			return nil, fmt.Errorf("failed to create zip entry: %w", err)
		}
		return &zipEntryWriter{Writer: zipFile, archive: zipWriter}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// multiCloser closes the decompressor before the underlying file
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openImage opens path and returns a reader producing the raw image bytes
func openImage(path, algorithm string) (io.ReadCloser, error) {
	if algorithm == "zip" {
		return openZipImage(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := createDecompressionReader(algorithm, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &multiCloser{Reader: r, closers: []io.Closer{r, f}}, nil
}

// createDecompressionReader wraps input according to the algorithm
func createDecompressionReader(algorithm string, input io.Reader) (io.ReadCloser, error) {
	switch algorithm {
	case compressionNone:
		return io.NopCloser(input), nil
	case "gzip":
		return gzip.NewReader(input)
	case "zlib":
		return zlib.NewReader(input)
	case "bzip2":
		return bzip2.NewReader(input, &bzip2.ReaderConfig{})
	case "snappy":
		return io.NopCloser(snappy.NewReader(input)), nil
	case "s2":
		return io.NopCloser(s2.NewReader(input)), nil
	case "zstd":
		decoder, err := zstd.NewReader(input)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	case "xz":
		reader, err := xz.NewReader(input)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(reader), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// openZipImage opens the first regular file stored in the archive
func openZipImage(path string) (io.ReadCloser, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}

	for _, entry := range archive.File {
		if !entry.Mode().IsRegular() {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			_ = archive.Close()
			return nil, fmt.Errorf("failed to open zip entry %s: %w", entry.Name, err)
		}
		return &multiCloser{Reader: rc, closers: []io.Closer{rc, archive}}, nil
	}

	_ = archive.Close()
	return nil, fmt.Errorf("zip archive %s contains no image", path)
}

// uncompressedSize returns the image size when it can be known without
// decompressing the whole stream, or 0.
func uncompressedSize(path, algorithm string) int64 {
	switch algorithm {
	case compressionNone:
		if info, err := os.Stat(path); err == nil {
			return info.Size()
		}
	case "zip":
		archive, err := zip.OpenReader(path)
		if err != nil {
			return 0
		}
		defer archive.Close()
		for _, entry := range archive.File {
			if entry.Mode().IsRegular() {
				return int64(entry.UncompressedSize64)
			}
		}
	}
	return 0
}
