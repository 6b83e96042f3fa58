package worker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
	"github.com/pkg/errors"
)

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"out_time_ms=12500000", 12.5, true},
		{"out_time_ms=0\n", 0, true},
		{"out_time=00:00:12.500000", 0, false},
		{"out_time_ms=N/A", 0, false},
		{"out_time_ms=-5", 0, false},
		{"progress=continue", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseProgressLine(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseProgressLine(%q) = %v, %v; want %v, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProgressWriterSplitsChunks(t *testing.T) {
	var got []models.ConvertProgress
	w := &progressWriter{total: 20, onProgress: func(p models.ConvertProgress) {
		got = append(got, p)
	}}
	chunks := []string{"frame=10\nout_time_", "ms=5000000\nprogress=cont", "inue\nout_time_ms=30000000\n"}
	for _, c := range chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			t.Fatal(err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("reports = %+v", got)
	}
	if got[0].Percent != 25 || got[0].ProcessedSeconds != 5 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Percent != 100 {
		t.Errorf("second percent = %v, want clamp to 100", got[1].Percent)
	}
}

func TestTailWriterKeepsLastLine(t *testing.T) {
	w := &tailWriter{}
	_, _ = w.Write([]byte("first\n\nsecond\n"))
	if got := w.Last(); got != "second" {
		t.Errorf("Last() = %q", got)
	}
	_, _ = w.Write([]byte("partial"))
	if got := w.Last(); got != "partial" {
		t.Errorf("Last() = %q", got)
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := strings.Join(ffmpegArgs("https://x/a.m3u8", "/tmp/out.mp4"), " ")
	for _, want := range []string{"-progress pipe:1", "-i https://x/a.m3u8", "-c copy", "-movflags +faststart", "/tmp/out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newScriptTranscoder(path string) *ffmpegTranscoder {
	return &ffmpegTranscoder{ffmpegPath: path, fetcher: newTestFetcher(), logger: logger.NewNopLogger()}
}

func TestRunReportsProgressAndWritesOutput(t *testing.T) {
	script := fakeFFmpeg(t, `for last; do :; done
echo "out_time_ms=5000000"
echo "progress=continue"
echo "out_time_ms=10000000"
echo "progress=end"
printf mp4 > "$last"`)
	out := filepath.Join(t.TempDir(), "job.mp4")

	var (
		mu      sync.Mutex
		reports []models.ConvertProgress
	)
	err := newScriptTranscoder(script).run(context.Background(), "https://x/a.m3u8", out, 10, func(p models.ConvertProgress) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(reports) != 2 || reports[1].Percent != 100 {
		t.Errorf("reports = %+v", reports)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "mp4" {
		t.Errorf("output = %q, %v", data, err)
	}
}

func TestRunSurfacesStderr(t *testing.T) {
	script := fakeFFmpeg(t, `echo "Server returned 404 Not Found" >&2
exit 1`)
	err := newScriptTranscoder(script).run(context.Background(), "https://x/a.m3u8", filepath.Join(t.TempDir(), "o.mp4"), 10, nil)
	if err == nil || !strings.Contains(err.Error(), "404 Not Found") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunKillsProcessOnDeadline(t *testing.T) {
	script := fakeFFmpeg(t, "exec sleep 30")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := newScriptTranscoder(script).run(ctx, "https://x/a.m3u8", filepath.Join(t.TempDir(), "o.mp4"), 10, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("run returned after %s", elapsed)
	}
}
