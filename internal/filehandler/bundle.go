package filehandler

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// ZipMethodZstd is the ZIP compression method ID for Zstandard (APPNOTE 6.3.7).
const ZipMethodZstd uint16 = 93

var registerZstd sync.Once

// registerZstdCompressor registers Zstandard as a ZIP compressor and
// decompressor at level 12, the highest the library maps to.
func registerZstdCompressor() {
	registerZstd.Do(func() {
		zip.RegisterCompressor(ZipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(12)))
		})
		zip.RegisterDecompressor(ZipMethodZstd, func(r io.Reader) io.ReadCloser {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return io.NopCloser(errReader{err})
			}
			return dec.IOReadCloser()
		})
	})
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// BundleResults writes the given files into a zstd-compressed ZIP at zipPath.
// Entries are stored by base name. Unreadable files are skipped with a
// warning. Returns the number of files written.
func BundleResults(zipPath string, files []string) (int, error) {
	registerZstdCompressor()

	out, err := os.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	written := 0
	for _, path := range files {
		if err := addToZip(zw, path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Failed to add file to archive, skipping")
			continue
		}
		written++
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return written, fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close archive: %w", err)
	}

	log.Info().
		Str("archive", zipPath).
		Int("files", written).
		Msg("Result archive created")
	return written, nil
}

func addToZip(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(path)
	header.Method = ZipMethodZstd

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
