package filehandler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanOptions configures directory scanning behavior.
type ScanOptions struct {
	// MaxDepth limits recursion depth. 0 = unlimited, 1 = top-level only.
	MaxDepth int

	// Limit caps the number of videos returned. 0 = unlimited.
	Limit int
}

// ScanVideos walks dirPath and returns the supported videos it contains,
// sorted by path. Symlinks to files are followed; symlinks to directories are
// skipped. Unreadable entries are logged and skipped.
func ScanVideos(dirPath string, opts ScanOptions) ([]*VideoFile, error) {
	log.Info().
		Str("path", dirPath).
		Int("max_depth", opts.MaxDepth).
		Int("limit", opts.Limit).
		Msg("Scanning directory for videos")

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dirPath)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	baseDepth := strings.Count(absPath, string(os.PathSeparator))

	var videos []*VideoFile
	limitReached := false

	err = filepath.WalkDir(absPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth > 0 && path != absPath {
				depth := strings.Count(path, string(os.PathSeparator)) - baseDepth
				if depth >= opts.MaxDepth {
					return fs.SkipDir
				}
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to resolve symlink, skipping")
				return nil
			}
			if target.IsDir() {
				log.Debug().Str("path", path).Msg("Skipping symlink to directory")
				return nil
			}
		}

		if !IsVideo(filepath.Ext(d.Name())) || IsCompressedArtifact(d.Name()) {
			return nil
		}

		if opts.Limit > 0 && len(videos) >= opts.Limit {
			limitReached = true
			return fs.SkipAll
		}

		v, err := LoadVideoFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", d.Name()).Msg("Failed to load video file, skipping")
			return nil
		}
		videos = append(videos, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(videos, func(i, j int) bool {
		return videos[i].Path < videos[j].Path
	})

	evt := log.Info().
		Int("total_videos", len(videos)).
		Str("directory", dirPath)
	if limitReached {
		evt = evt.Bool("limit_reached", true)
	}
	evt.Msg("Directory scan complete")

	return videos, nil
}

// VideoPaths returns the paths of videos in order.
func VideoPaths(videos []*VideoFile) []string {
	paths := make([]string, len(videos))
	for i, v := range videos {
		paths[i] = v.Path
	}
	return paths
}
