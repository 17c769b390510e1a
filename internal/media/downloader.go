// Package media downloads video and audio from the web via yt-dlp,
// streaming progress back to the caller and recording finished
// downloads in the history store.
package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/glowos/glowd/internal/capability"
)

// Config holds downloader settings.
type Config struct {
	// YTDLPPath is the path to the yt-dlp binary. If empty, the binary
	// is located via exec.LookPath.
	YTDLPPath string

	// DownloadDir is where finished files land.
	DownloadDir string
}

// Downloader wraps yt-dlp.
type Downloader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a downloader. The yt-dlp binary path is resolved via
// Config.YTDLPPath or exec.LookPath.
func New(cfg Config, logger *slog.Logger) *Downloader {
	if cfg.YTDLPPath == "" {
		if p, err := exec.LookPath("yt-dlp"); err == nil {
			cfg.YTDLPPath = p
		}
	}
	return &Downloader{cfg: cfg, logger: logger}
}

// progressRe matches yt-dlp --newline progress lines:
//
//	[download]  45.2% of 10.00MiB at 1.00MiB/s ETA 00:05
var progressRe = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// destRe captures the destination filename from yt-dlp output.
var destRe = regexp.MustCompile(`\[download\] Destination: (.+)$|\[Merger\] Merging formats into "(.+)"$`)

// Download fetches a URL. With audioOnly set, the best audio stream is
// extracted to mp3; otherwise the best mp4-compatible video is taken.
// Returns the destination filename reported by yt-dlp.
func (d *Downloader) Download(ctx context.Context, rawURL string, audioOnly bool, sink capability.ProgressSink) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("download: url is required")
	}
	if d.cfg.YTDLPPath == "" {
		return "", fmt.Errorf("download: yt-dlp not found (install yt-dlp or set media.yt_dlp_path)")
	}

	args := []string{
		"--newline",
		"--no-warnings",
		"-o", filepath.Join(d.cfg.DownloadDir, "%(title)s.%(ext)s"),
	}
	if audioOnly {
		args = append(args, "-f", "bestaudio/best", "--extract-audio", "--audio-format", "mp3")
	} else {
		args = append(args, "-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best")
	}
	args = append(args, rawURL)

	d.logger.Info("running yt-dlp", "url", rawURL, "audio_only", audioOnly)

	cmd := exec.CommandContext(ctx, d.cfg.YTDLPPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("download: pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("download: start yt-dlp: %w", err)
	}

	var dest string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if m := destRe.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				dest = m[1]
			} else {
				dest = m[2]
			}
			continue
		}
		if m := progressRe.FindStringSubmatch(line); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			sink.Report(capability.Progress{
				Percent: pct,
				Status:  "downloading",
				Message: strings.TrimSpace(line),
			})
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := stderr.String()
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return "", fmt.Errorf("download: yt-dlp: %w: %s", err, detail)
	}
	if dest == "" {
		dest = d.cfg.DownloadDir
	}
	return dest, nil
}

// VideoInfo is the metadata subset read from yt-dlp -J output.
type VideoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Channel  string  `json:"channel"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
	Thumb    string  `json:"thumbnail"`
	WebURL   string  `json:"webpage_url"`
}

// Info fetches metadata for a URL without downloading anything.
func (d *Downloader) Info(ctx context.Context, rawURL string) (*VideoInfo, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("video info: url is required")
	}
	if d.cfg.YTDLPPath == "" {
		return nil, fmt.Errorf("video info: yt-dlp not found")
	}

	cmd := exec.CommandContext(ctx, d.cfg.YTDLPPath, "-J", "--no-warnings", rawURL)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := stderr.String()
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return nil, fmt.Errorf("video info: yt-dlp: %w: %s", err, detail)
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("video info: parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// parseProgressLine is split out for tests; it returns the percentage
// from a yt-dlp progress line, or -1 when the line is not one.
func parseProgressLine(line string) float64 {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return -1
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return -1
	}
	return pct
}
