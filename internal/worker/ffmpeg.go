package worker

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/config"
	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
)

const (
	protocolWhitelist = "file,http,https,tcp,tls,crypto"
	// how long ffmpeg gets to exit after being killed before its pipes are closed
	processWaitDelay = 5 * time.Second
)

type ffmpegTranscoder struct {
	ffmpegPath string
	fetcher    *playlistFetcher
	logger     logger.Logger
}

func NewFFmpegTranscoder(cfg *config.Config, log logger.Logger) exports.Transcoder {
	return &ffmpegTranscoder{
		ffmpegPath: cfg.Export.FFmpegPath,
		fetcher:    &playlistFetcher{client: &http.Client{Timeout: cfg.Export.FetchTimeout}},
		logger:     log,
	}
}

// Convert remuxes the selected rendition into a single MP4 at req.OutputPath.
// The ffmpeg process is killed when ctx ends and Convert returns only after it
// has been reaped.
func (t *ffmpegTranscoder) Convert(ctx context.Context, req *models.ConvertRequest, onProgress exports.ProgressFunc) (*models.ConvertResult, error) {
	variant, total, err := t.fetcher.resolveVariant(ctx, req.SourceURL, req.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve playlist: %w", err)
	}
	t.logger.Infof("Job %s: converting %dx%d rendition (%.0fs)", req.JobID, variant.Width, variant.Height, total)

	if err := t.run(ctx, variant.URI, req.OutputPath, total, onProgress); err != nil {
		return nil, err
	}
	return &models.ConvertResult{Variant: *variant, Duration: total}, nil
}

func (t *ffmpegTranscoder) run(ctx context.Context, inputURL, outputPath string, total float64, onProgress exports.ProgressFunc) error {
	progress := &progressWriter{total: total, onProgress: onProgress}
	stderr := &tailWriter{}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, ffmpegArgs(inputURL, outputPath)...)
	cmd.Stdout = progress
	cmd.Stderr = stderr
	cmd.WaitDelay = processWaitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg stopped: %w", ctxErr)
		}
		if last := stderr.Last(); last != "" {
			return fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, last)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func ffmpegArgs(inputURL, outputPath string) []string {
	return []string{
		"-y",
		"-nostats",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-protocol_whitelist", protocolWhitelist,
		"-i", inputURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		"-f", "mp4",
		outputPath,
	}
}

// progressWriter parses ffmpeg's -progress key=value stream as it is written.
type progressWriter struct {
	total      float64
	onProgress exports.ProgressFunc
	buf        []byte
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.handle(string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *progressWriter) handle(line string) {
	processed, ok := parseProgressLine(line)
	if !ok || w.onProgress == nil || w.total <= 0 {
		return
	}
	percent := processed / w.total * 100
	if percent > 100 {
		percent = 100
	}
	w.onProgress(models.ConvertProgress{
		Percent:          percent,
		ProcessedSeconds: processed,
		TotalSeconds:     w.total,
	})
}

// parseProgressLine returns the processed media time in seconds. ffmpeg reports
// out_time_ms in microseconds.
func parseProgressLine(line string) (float64, bool) {
	value, found := strings.CutPrefix(strings.TrimSpace(line), "out_time_ms=")
	if !found {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return float64(us) / 1_000_000, true
}

// tailWriter keeps the last non-empty line written to it.
type tailWriter struct {
	mu   sync.Mutex
	buf  []byte
	last string
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(w.buf[:i])); line != "" {
			w.last = line
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *tailWriter) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if line := strings.TrimSpace(string(w.buf)); line != "" {
		return line
	}
	return w.last
}
