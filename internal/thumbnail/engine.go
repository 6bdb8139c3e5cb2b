package thumbnail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zpavlovic/kinoteka/internal/ffmpeg"
	"github.com/zpavlovic/kinoteka/internal/models"
)

const ffmpegTimeout = 2 * time.Minute

var (
	ErrUnavailable      = errors.New("ffmpeg is not available")
	ErrNotFound         = errors.New("video file not found")
	ErrInvalidTimestamp = errors.New("timestamp out of range")
)

// incompatibleErrors are ffmpeg stderr fragments that indicate the file
// itself cannot be decoded for frame extraction. These are expected
// across a heterogeneous library and classified as a skip, not a failure.
var incompatibleErrors = []string{
	"filtergraph inputs/outputs",
	"Invalid argument",
	"Conversion failed",
	"codec not currently supported",
	"No such filter",
	"Error opening filters",
}

func isIncompatibleError(output string) bool {
	for _, substr := range incompatibleErrors {
		if strings.Contains(output, substr) {
			return true
		}
	}
	return false
}

// Outcome is the tagged result of a generation attempt: either a
// produced artifact path or a deliberate skip with a reason.
type Outcome struct {
	Path    string `json:"path,omitempty"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// Engine produces and caches still-image artifacts for video files.
// Artifacts live in a dedicated directory, auto-created on first use,
// and are always addressed by a deterministic filename so repeated
// scans reuse rather than regenerate them.
type Engine struct {
	ffmpegPath      string
	ffprobePath     string
	thumbnailerPath string
	artifactDir     string
	probe           *ffmpeg.FFprobe

	availOnce sync.Once
	available bool

	thumbnailerOnce      sync.Once
	thumbnailerAvailable bool
}

func NewEngine(ffmpegPath, ffprobePath, thumbnailerPath, artifactDir string) *Engine {
	return &Engine{
		ffmpegPath:      ffmpegPath,
		ffprobePath:     ffprobePath,
		thumbnailerPath: thumbnailerPath,
		artifactDir:     artifactDir,
		probe:           ffmpeg.NewFFprobe(ffprobePath),
	}
}

// Available probes once whether ffmpeg responds to a version query.
// Concurrent first-time callers share the single in-flight probe.
func (e *Engine) Available() bool {
	e.availOnce.Do(func() {
		err := exec.Command(e.ffmpegPath, "-version").Run()
		e.available = err == nil
		if !e.available {
			log.Printf("Thumbnail: ffmpeg not available at %q: %v", e.ffmpegPath, err)
		}
	})
	return e.available
}

func (e *Engine) hasThumbnailer() bool {
	e.thumbnailerOnce.Do(func() {
		if e.thumbnailerPath == "" {
			return
		}
		err := exec.Command(e.thumbnailerPath, "-v").Run()
		e.thumbnailerAvailable = err == nil
	})
	return e.thumbnailerAvailable
}

// IdentityToken derives a short stable token from an identity key,
// used to name artifacts so repeated scans address the same file.
func (e *Engine) IdentityToken(key string) string {
	token := base64.StdEncoding.EncodeToString([]byte(key))
	token = strings.NewReplacer("/", "", "+", "", "=", "").Replace(token)
	if len(token) > 16 {
		token = token[:16]
	}
	return token
}

// DeriveFilename returns the artifact filename (without extension) for
// an identity token. Timestamp-qualified names are only used for
// ad-hoc manual captures; the deterministic form keeps the
// auto-generation path idempotent across rescans.
func (e *Engine) DeriveFilename(token string, withTimestamp bool) string {
	if withTimestamp {
		return fmt.Sprintf("movie-%s-%d", token, time.Now().UnixNano())
	}
	return "movie-" + token
}

// ExistingArtifact checks the artifact directory for filename.jpg and
// returns its catalog-relative path without attempting any generation.
func (e *Engine) ExistingArtifact(filename string) (string, bool) {
	if _, err := os.Stat(filepath.Join(e.artifactDir, filename+".jpg")); err != nil {
		return "", false
	}
	return models.GeneratedThumbPrefix + filename + ".jpg", true
}

// ArtifactFile resolves a catalog-relative generated path to its
// location on disk.
func (e *Engine) ArtifactFile(relPath string) string {
	return filepath.Join(e.artifactDir, strings.TrimPrefix(relPath, models.GeneratedThumbPrefix))
}

// RemoveArtifact deletes a generated artifact, tolerating already-gone.
func (e *Engine) RemoveArtifact(relPath string) error {
	err := os.Remove(e.ArtifactFile(relPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (e *Engine) ensureArtifactDir() error {
	return os.MkdirAll(e.artifactDir, 0755)
}

func (e *Engine) runFFmpeg(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("ffmpeg timed out after %v", ffmpegTimeout)
	}
	return output, err
}

// GenerateRandom extracts one frame at a pseudo-random timestamp within
// [10%, 40%] of the video's duration, scaled to 1280x720, and writes it
// as filename.jpg. The window avoids opening and closing credits.
func (e *Engine) GenerateRandom(videoPath, filename string) (*Outcome, error) {
	if !e.Available() {
		return nil, ErrUnavailable
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, videoPath)
	}

	result, err := e.probe.Probe(videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}
	duration := result.GetDurationSeconds()
	if duration <= 0 {
		duration = 1
	}
	timestamp := float64(duration) * (0.10 + rand.Float64()*0.30)

	if err := e.ensureArtifactDir(); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	outPath := filepath.Join(e.artifactDir, filename+".jpg")

	output, err := e.runFFmpeg(
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", "scale=1280:720",
		"-q:v", "2",
		"-y", outPath,
	)
	if err != nil {
		if isIncompatibleError(string(output)) {
			log.Printf("Thumbnail: skipping incompatible file %s: %s", filepath.Base(videoPath), lastLine(output))
			return &Outcome{Skipped: true, Reason: lastLine(output)}, nil
		}
		log.Printf("Thumbnail: generation failed for %s: %s", filepath.Base(videoPath), string(output))
		return nil, fmt.Errorf("frame extraction: %w", err)
	}

	return &Outcome{Path: models.GeneratedThumbPrefix + filename + ".jpg"}, nil
}

// CaptureAtTimestamp extracts a frame at an exact caller-supplied
// timestamp, walking an ordered ladder of extraction strategies until
// one succeeds. Frame-accurate seeking on arbitrary consumer encodes is
// unreliable with a single invocation style, so each rung trades seek
// accuracy for decoder compatibility.
func (e *Engine) CaptureAtTimestamp(videoPath string, timestamp float64, filename string) (string, error) {
	if timestamp < 0 {
		return "", fmt.Errorf("%w: %.2f", ErrInvalidTimestamp, timestamp)
	}
	if !e.Available() {
		return "", ErrUnavailable
	}
	if _, err := os.Stat(videoPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, videoPath)
	}

	result, err := e.probe.Probe(videoPath)
	if err != nil {
		return "", fmt.Errorf("probe duration: %w", err)
	}
	// Compare against the fractional duration so a capture at the very
	// last instant of the file is still accepted.
	duration := result.GetDuration()
	if timestamp > duration {
		return "", fmt.Errorf("%w: %.2f exceeds duration %.2f", ErrInvalidTimestamp, timestamp, duration)
	}

	if err := e.ensureArtifactDir(); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	ts := fmt.Sprintf("%.2f", timestamp)
	strategies := []struct {
		name string
		args func(out string) []string
	}{
		{"pre-seek scaled", func(out string) []string {
			return []string{
				"-ss", ts, "-probesize", "50M", "-analyzeduration", "200M",
				"-i", videoPath, "-frames:v", "1", "-vf", "scale=1280:720",
				"-q:v", "2", "-f", "image2", "-map", "0:v:0", "-y", out,
			}
		}},
		{"pre-seek raw", func(out string) []string {
			return []string{
				"-ss", ts, "-probesize", "50M", "-analyzeduration", "200M",
				"-i", videoPath, "-frames:v", "1",
				"-q:v", "2", "-f", "image2", "-map", "0:v:0", "-y", out,
			}
		}},
		{"input-seek raw", func(out string) []string {
			return []string{
				"-probesize", "50M", "-analyzeduration", "200M",
				"-i", videoPath, "-ss", ts, "-frames:v", "1",
				"-q:v", "2", "-f", "image2", "-map", "0:v:0", "-y", out,
			}
		}},
	}

	var diagnostics []string
	for _, strategy := range strategies {
		for _, ext := range []string{".jpg", ".png"} {
			outPath := filepath.Join(e.artifactDir, filename+ext)
			output, err := e.runFFmpeg(strategy.args(outPath)...)
			if err == nil && fileNonEmpty(outPath) {
				return models.GeneratedThumbPrefix + filename + ext, nil
			}
			diagnostics = append(diagnostics,
				fmt.Sprintf("%s (%s): %v: %s", strategy.name, ext, err, lastLine(output)))
		}
	}

	if e.hasThumbnailer() {
		outPath := filepath.Join(e.artifactDir, filename+".jpg")
		cmd := exec.Command(e.thumbnailerPath,
			"-i", videoPath,
			"-o", outPath,
			"-s", "1280",
			"-t", secondsToClock(timestamp),
		)
		output, err := cmd.CombinedOutput()
		if err == nil && fileNonEmpty(outPath) {
			return models.GeneratedThumbPrefix + filename + ".jpg", nil
		}
		diagnostics = append(diagnostics,
			fmt.Sprintf("thumbnailer: %v: %s", err, lastLine(output)))
	}

	if relPath, err := e.captureViaTranscode(videoPath, ts, filename, &diagnostics); err == nil {
		return relPath, nil
	}

	log.Printf("Thumbnail: capture failed for %s at %ss, attempts:\n  %s",
		filepath.Base(videoPath), ts, strings.Join(diagnostics, "\n  "))
	return "", fmt.Errorf("frame capture failed for %s: this file or codec does not support frame extraction", filepath.Base(videoPath))
}

// captureViaTranscode is the last rung of the capture ladder: transcode
// a 2-second clip starting at the timestamp into a widely-compatible
// codec, then extract a frame from the start of that clip. Sacrifices
// speed and exact-frame precision to get some result from inputs no
// direct strategy can decode.
func (e *Engine) captureViaTranscode(videoPath, ts, filename string, diagnostics *[]string) (string, error) {
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("kinoteka-capture-%d.mp4", time.Now().UnixNano()))
	defer os.Remove(tmpPath)

	transcoded := false
	for _, codec := range []string{"libx264", "mpeg4"} {
		args := []string{"-ss", ts, "-i", videoPath, "-t", "2", "-c:v", codec, "-pix_fmt", "yuv420p"}
		if codec == "libx264" {
			args = append(args, "-preset", "ultrafast")
		}
		args = append(args, "-movflags", "+faststart", "-an", "-y", tmpPath)

		output, err := e.runFFmpeg(args...)
		if err == nil && fileNonEmpty(tmpPath) {
			transcoded = true
			break
		}
		*diagnostics = append(*diagnostics,
			fmt.Sprintf("transcode (%s): %v: %s", codec, err, lastLine(output)))
	}
	if !transcoded {
		return "", errors.New("transcode fallback failed")
	}

	outPath := filepath.Join(e.artifactDir, filename+".jpg")
	output, err := e.runFFmpeg("-i", tmpPath, "-frames:v", "1", "-q:v", "2", "-y", outPath)
	if err != nil || !fileNonEmpty(outPath) {
		*diagnostics = append(*diagnostics,
			fmt.Sprintf("transcode extract: %v: %s", err, lastLine(output)))
		return "", errors.New("transcode fallback failed")
	}
	return models.GeneratedThumbPrefix + filename + ".jpg", nil
}

// ProbeVideoInfo returns a metadata projection for a video file.
func (e *Engine) ProbeVideoInfo(videoPath string) (*models.VideoInfo, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, videoPath)
	}
	result, err := e.probe.Probe(videoPath)
	if err != nil {
		return nil, err
	}
	return &models.VideoInfo{
		DurationSeconds: result.GetDurationSeconds(),
		Width:           result.GetWidth(),
		Height:          result.GetHeight(),
		Codec:           result.GetVideoCodec(),
		FrameRate:       result.GetFrameRate(),
		Bitrate:         result.GetBitrate(),
		SizeBytes:       result.GetFileSize(),
	}, nil
}

// CleanupOlderThan deletes artifacts whose modification time exceeds
// the age threshold. Best-effort: per-file errors are logged, never
// surfaced. Returns the number of files deleted.
func (e *Engine) CleanupOlderThan(days int) int {
	entries, err := os.ReadDir(e.artifactDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Thumbnail: cleanup: cannot read artifact dir: %v", err)
		}
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(e.artifactDir, entry.Name())); err != nil {
				log.Printf("Thumbnail: cleanup: failed to delete %s: %v", entry.Name(), err)
				continue
			}
			deleted++
		}
	}
	if deleted > 0 {
		log.Printf("Thumbnail: cleanup deleted %d artifacts older than %d days", deleted, days)
	}
	return deleted
}

func secondsToClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func lastLine(output []byte) string {
	s := strings.TrimSpace(string(output))
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return s
}
