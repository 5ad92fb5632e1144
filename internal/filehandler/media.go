// Package filehandler covers the local file side of an analysis: input video
// discovery and validation, the FFmpeg size reducer, result naming and
// persistence, and zip bundles of finished results.
package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedVideoExtensions maps the accepted video extensions to their MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".wmv":  "video/x-ms-wmv",
	".3gp":  "video/3gpp",
	".flv":  "video/x-flv",
}

// DefaultVideoMIMEType is used for inputs with an unknown extension.
const DefaultVideoMIMEType = "video/mp4"

// ErrInputNotFound is returned when an input video does not exist.
var ErrInputNotFound = errors.New("input file not found")

// VideoFile describes an input video on disk.
type VideoFile struct {
	Path     string
	MIMEType string
	Size     int64
}

// LoadVideoFile stats path and returns its description. Directories and
// missing paths are rejected; unknown extensions fall back to DefaultVideoMIMEType.
func LoadVideoFile(path string) (*VideoFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	v := &VideoFile{
		Path:     path,
		MIMEType: MIMEType(path),
		Size:     info.Size(),
	}
	log.Debug().
		Str("path", path).
		Str("mime_type", v.MIMEType).
		Int64("size_bytes", v.Size).
		Msg("Video file loaded")
	return v, nil
}

// MIMEType returns the video MIME type for path based on its extension.
func MIMEType(path string) string {
	if mimeType, ok := SupportedVideoExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return mimeType
	}
	return DefaultVideoMIMEType
}

// IsVideo returns true if the file extension corresponds to a supported video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// IsValidMP4 reports whether path is a non-empty .mp4 file whose header
// carries an "ftyp" box within the first 20 bytes.
func IsValidMP4(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".mp4" {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, 20)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return bytes.Contains(header[:n], []byte("ftyp"))
}

// FileSize returns the size of path in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return 0, err
	}
	return info.Size(), nil
}

// MB is the number of bytes in one megabyte as used by the size ceiling.
const MB int64 = 1024 * 1024
