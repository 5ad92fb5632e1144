package filehandler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/metrics"
)

// Re-encode settings. The quality parameter starts at CRFStart and rises by
// CRFStep up to and including CRFMax until the output fits the target size.
const (
	CRFStart = 28
	CRFStep  = 2
	CRFMax   = 34

	// VideoCodec is the H.264 encoder used for every pass.
	VideoCodec = "libx264"

	// VideoPreset trades encoding speed for efficiency.
	VideoPreset = "medium"

	AudioCodec   = "aac"
	AudioBitrate = "128k"
)

// Attempt outcomes, also used as metric labels.
const (
	OutcomeFit      = "fit"
	OutcomeTooLarge = "too_large"
	OutcomeFailed   = "failed"
)

// ErrToolUnavailable is returned when ffmpeg cannot be found on PATH.
var ErrToolUnavailable = errors.New("ffmpeg not found in PATH")

// CheckFFmpegAvailable checks if ffmpeg is available in the system PATH.
// Returns nil if ffmpeg is available, or an error describing the issue.
func CheckFFmpegAvailable() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("%w: video compression will be unavailable. Install FFmpeg with: brew install ffmpeg (macOS), apt install ffmpeg (Linux) or winget install ffmpeg (Windows)", ErrToolUnavailable)
	}
	log.Debug().Str("path", path).Msg("ffmpeg found")
	return nil
}

// IsFFmpegAvailable returns true if ffmpeg is available in the system PATH.
func IsFFmpegAvailable() bool {
	return CheckFFmpegAvailable() == nil
}

// FFmpegVersion runs `ffmpeg -version` and returns the first line of its output.
func FFmpegVersion(ctx context.Context) (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", ErrToolUnavailable
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// EncodeRequest is one re-encode pass.
type EncodeRequest struct {
	Input  string
	Output string
	CRF    int
}

// EncodeResult is the structured outcome of running the encoder process.
type EncodeResult struct {
	// ExitCode is the process exit status, or -1 if it never ran to completion.
	ExitCode int
	// Output is the combined stdout and stderr of the process.
	Output string
	Err    error
}

// Failed reports whether the pass did not complete successfully.
func (r EncodeResult) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Encoder runs a single re-encode pass.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest) EncodeResult
}

// FFmpegEncoder runs passes with the ffmpeg binary at Path.
type FFmpegEncoder struct {
	Path string
}

// Encode runs ffmpeg and captures its output.
func (e *FFmpegEncoder) Encode(ctx context.Context, req EncodeRequest) EncodeResult {
	args := buildFFmpegArgs(req)
	log.Debug().Strs("args", args).Msg("Running FFmpeg compression")

	output, err := exec.CommandContext(ctx, e.Path, args...).CombinedOutput()
	res := EncodeResult{Output: string(output), Err: err}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}
	return res
}

// buildFFmpegArgs constructs the ffmpeg arguments for one pass.
func buildFFmpegArgs(req EncodeRequest) []string {
	return []string{
		"-y",
		"-i", req.Input,
		"-vcodec", VideoCodec,
		"-crf", strconv.Itoa(req.CRF),
		"-preset", VideoPreset,
		"-movflags", "+faststart",
		"-acodec", AudioCodec,
		"-b:a", AudioBitrate,
		req.Output,
	}
}

// Attempt records one pass of the reducer.
type Attempt struct {
	CRF        int
	OutputSize int64
	Outcome    string
	Err        error
}

// Reduction is the result of Reduce.
type Reduction struct {
	// Path is the file to use: the input itself when Compressed is false.
	Path         string
	Compressed   bool
	OriginalSize int64
	FinalSize    int64
	Attempts     []Attempt
}

// CompressionExhaustedError is returned when no pass up to CRFMax produced a
// file within the target size.
type CompressionExhaustedError struct {
	Input       string
	TargetBytes int64
	Attempts    []Attempt
}

func (e *CompressionExhaustedError) Error() string {
	return fmt.Sprintf("could not compress %s below %d bytes even at CRF %d (%d attempts)",
		filepath.Base(e.Input), e.TargetBytes, CRFMax, len(e.Attempts))
}

// ProgressFunc receives a human-readable message and a percentage in 0..100.
type ProgressFunc func(message string, percent int)

// Reducer shrinks a video below a byte target by re-encoding it at
// increasing CRF values.
type Reducer struct {
	// Encoder runs each pass. Nil means an FFmpegEncoder for the binary found on PATH.
	Encoder Encoder
	// LookPath locates the ffmpeg binary. Nil means exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewReducer returns a Reducer backed by the ffmpeg found on PATH.
func NewReducer() *Reducer {
	return &Reducer{LookPath: exec.LookPath}
}

// Reduce returns input unchanged when it already fits targetBytes. Otherwise
// it writes <stem>_compressed<ext> next to input and returns its path.
//
// Errors: ErrInputNotFound, ErrToolUnavailable, *CompressionExhaustedError,
// or the context's error when canceled between passes.
func (r *Reducer) Reduce(ctx context.Context, input string, targetBytes int64, progress ProgressFunc) (*Reduction, error) {
	if progress == nil {
		progress = func(string, int) {}
	}

	info, err := os.Stat(input)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}

	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	ffmpegPath, err := lookPath("ffmpeg")
	if err != nil {
		log.Warn().Msg("FFmpeg not found in PATH, skipping compression")
		return nil, ErrToolUnavailable
	}

	originalSize := info.Size()
	if originalSize <= targetBytes {
		log.Info().
			Str("input_path", input).
			Int64("size_bytes", originalSize).
			Int64("target_bytes", targetBytes).
			Msg("File already within target size, compression not needed")
		return &Reduction{Path: input, OriginalSize: originalSize, FinalSize: originalSize}, nil
	}

	encoder := r.Encoder
	if encoder == nil {
		encoder = &FFmpegEncoder{Path: ffmpegPath}
	}

	output := CompressedOutputPath(input)
	steps := (CRFMax-CRFStart)/CRFStep + 1

	log.Info().
		Str("input_path", input).
		Str("output_path", output).
		Int64("input_size_bytes", originalSize).
		Int64("target_bytes", targetBytes).
		Msg("Starting video compression")
	progress(fmt.Sprintf("Compressing %s (%s > %s)", filepath.Base(input), FormatBytes(originalSize), FormatBytes(targetBytes)), 0)

	var attempts []Attempt
	for i, crf := 0, CRFStart; crf <= CRFMax; i, crf = i+1, crf+CRFStep {
		if err := ctx.Err(); err != nil {
			removeQuietly(output)
			return nil, err
		}

		progress(fmt.Sprintf("Compressing at CRF %d", crf), i*100/steps)
		removeQuietly(output)

		start := time.Now()
		res := encoder.Encode(ctx, EncodeRequest{Input: input, Output: output, CRF: crf})
		attempt := Attempt{CRF: crf}

		switch {
		case res.Failed():
			attempt.Outcome = OutcomeFailed
			attempt.Err = res.Err
			if attempt.Err == nil {
				attempt.Err = fmt.Errorf("ffmpeg exited with code %d", res.ExitCode)
			}
			log.Warn().
				Err(attempt.Err).
				Int("crf", crf).
				Int("exit_code", res.ExitCode).
				Str("ffmpeg_output", tail(res.Output, 20)).
				Msg("FFmpeg pass failed, trying next CRF")
		default:
			out, statErr := os.Stat(output)
			if statErr != nil {
				attempt.Outcome = OutcomeFailed
				attempt.Err = fmt.Errorf("ffmpeg produced no output file: %w", statErr)
				log.Warn().Int("crf", crf).Msg("FFmpeg did not create an output file, trying next CRF")
				break
			}
			attempt.OutputSize = out.Size()
			if attempt.OutputSize <= targetBytes {
				attempt.Outcome = OutcomeFit
			} else {
				attempt.Outcome = OutcomeTooLarge
			}
			log.Info().
				Int("crf", crf).
				Int64("output_size_bytes", attempt.OutputSize).
				Int64("target_bytes", targetBytes).
				Str("outcome", attempt.Outcome).
				Dur("duration", time.Since(start)).
				Msg("Compression pass finished")
		}

		metrics.RecordCompressionAttempt(attempt.Outcome)
		attempts = append(attempts, attempt)

		if attempt.Outcome == OutcomeFit {
			progress("Compression complete", 100)
			return &Reduction{
				Path:         output,
				Compressed:   true,
				OriginalSize: originalSize,
				FinalSize:    attempt.OutputSize,
				Attempts:     attempts,
			}, nil
		}
	}

	removeQuietly(output)
	log.Error().
		Str("input_path", input).
		Int64("target_bytes", targetBytes).
		Int("attempts", len(attempts)).
		Msg("Compression could not reach target size")
	return nil, &CompressionExhaustedError{Input: input, TargetBytes: targetBytes, Attempts: attempts}
}

// compressedStem matches the stems CompressedOutputPath produces.
var compressedStem = regexp.MustCompile(`_compressed(_\d+)?$`)

// CompressedOutputPath returns <stem>_compressed<ext> next to input, adding
// _1, _2, ... to the stem until the name is unused.
func CompressedOutputPath(input string) string {
	dir := filepath.Dir(input)
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext) + "_compressed"

	candidate := filepath.Join(dir, stem+ext)
	for n := 1; fileExists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
	return candidate
}

// IsCompressedArtifact reports whether name looks like a reducer output.
func IsCompressedArtifact(name string) bool {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return compressedStem.MatchString(stem)
}

// FormatBytes renders n as a short human-readable size.
func FormatBytes(n int64) string {
	switch {
	case n >= MB:
		return fmt.Sprintf("%.2fMB", float64(n)/float64(MB))
	case n >= 1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeQuietly deletes path, logging anything other than "does not exist".
func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove compression output")
	}
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	return strings.Join(lines, "\n")
}
