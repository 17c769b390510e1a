// Package ripdisc rips optical media to MKV via makemkvcon, parsing
// its robot-mode output into progress reports.
package ripdisc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Config holds ripper settings.
type Config struct {
	// MakeMKVPath is the path to the makemkvcon binary. If empty, the
	// binary is located via exec.LookPath.
	MakeMKVPath string

	// OutputDir is the root under which per-disc folders are created.
	OutputDir string
}

// Ripper wraps makemkvcon. One rip runs at a time; a second Rip call
// while one is active returns an error instead of queueing.
type Ripper struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	ripping  bool
	lastDest string
}

// New creates a ripper. The makemkvcon binary path is resolved via
// Config.MakeMKVPath or exec.LookPath.
func New(cfg Config, logger *slog.Logger) *Ripper {
	if cfg.MakeMKVPath == "" {
		if p, err := exec.LookPath("makemkvcon"); err == nil {
			cfg.MakeMKVPath = p
		}
	}
	return &Ripper{cfg: cfg, logger: logger}
}

// Status reports whether a rip is in flight and where the last rip
// landed.
func (r *Ripper) Status() (ripping bool, lastDest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ripping, r.lastDest
}

// ProgressLine is one parsed robot-mode progress value.
type ProgressLine struct {
	Percent float64
	Message string
}

// Rip extracts all titles from the disc into OutputDir/<volume name>.
// discPath is the mount point of the disc; its base name becomes the
// destination folder. Progress flows to the sink as makemkvcon emits
// PRGV lines.
func (r *Ripper) Rip(ctx context.Context, discPath string, report func(ProgressLine)) (string, error) {
	if r.cfg.MakeMKVPath == "" {
		return "", fmt.Errorf("rip: makemkvcon not found (install MakeMKV or set ripdisc.makemkv_path)")
	}

	r.mu.Lock()
	if r.ripping {
		r.mu.Unlock()
		return "", fmt.Errorf("rip: a rip is already in progress")
	}
	r.ripping = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.ripping = false
		r.mu.Unlock()
	}()

	dest := r.cfg.OutputDir
	if vol := filepath.Base(discPath); vol != "" && vol != "." && vol != "/" {
		dest = filepath.Join(r.cfg.OutputDir, vol)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("rip: create destination: %w", err)
	}

	r.logger.Info("starting disc rip", "disc", discPath, "dest", dest)

	cmd := exec.CommandContext(ctx, r.cfg.MakeMKVPath,
		"--robot", "--progress=-same", "mkv", "disc:0", "all", dest)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("rip: pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("rip: start makemkvcon: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	var lastMessage string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "PRGV:"):
			if p, ok := parsePRGV(line); ok {
				report(ProgressLine{Percent: p, Message: lastMessage})
			}
		case strings.HasPrefix(line, "PRGC:"), strings.HasPrefix(line, "PRGT:"):
			if msg := parseTitledLine(line); msg != "" {
				lastMessage = msg
			}
		case strings.HasPrefix(line, "MSG:"):
			if msg := parseMessage(line); msg != "" {
				r.logger.Debug("makemkv", "message", msg)
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := stderr.String()
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return "", fmt.Errorf("rip: makemkvcon: %w: %s", err, detail)
	}

	r.mu.Lock()
	r.lastDest = dest
	r.mu.Unlock()

	r.logger.Info("disc rip finished", "dest", dest)
	return dest, nil
}

// Eject opens the drive tray. On Linux this shells out to eject(1).
func (r *Ripper) Eject(ctx context.Context, discPath string) error {
	args := []string{}
	if discPath != "" {
		args = append(args, discPath)
	}
	cmd := exec.CommandContext(ctx, "eject", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("eject: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Drive is one optical drive as reported by makemkvcon.
type Drive struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	DiscTitle string `json:"disc_title,omitempty"`
	HasDisc   bool   `json:"has_disc"`
}

// DetectDrives lists optical drives via makemkvcon robot info.
func (r *Ripper) DetectDrives(ctx context.Context) ([]Drive, error) {
	if r.cfg.MakeMKVPath == "" {
		return nil, fmt.Errorf("detect drives: makemkvcon not found")
	}

	cmd := exec.CommandContext(ctx, r.cfg.MakeMKVPath, "--robot", "info", "disc:9999")
	out, _ := cmd.Output() // exits nonzero for the bogus disc index; DRV lines still print

	var drives []Drive
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "DRV:") {
			continue
		}
		if d, ok := parseDrive(line); ok {
			drives = append(drives, d)
		}
	}
	return drives, nil
}

// parsePRGV parses `PRGV:current,total,max` into a total percentage.
func parsePRGV(line string) (float64, bool) {
	fields := strings.Split(strings.TrimPrefix(line, "PRGV:"), ",")
	if len(fields) != 3 {
		return 0, false
	}
	total, err1 := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	max, err2 := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err1 != nil || err2 != nil || max <= 0 {
		return 0, false
	}
	return total / max * 100, true
}

// parseTitledLine pulls the human title out of `PRGC:code,id,"name"`.
func parseTitledLine(line string) string {
	i := strings.Index(line, `,"`)
	if i < 0 {
		return ""
	}
	return strings.Trim(line[i+1:], `"`)
}

// parseMessage pulls the formatted text out of
// `MSG:code,flags,count,"message",...`.
func parseMessage(line string) string {
	parts := strings.SplitN(line, `,"`, 2)
	if len(parts) != 2 {
		return ""
	}
	msg := parts[1]
	if i := strings.Index(msg, `"`); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// parseDrive parses `DRV:index,visible,enabled,flags,"drive name","disc name","device"`.
func parseDrive(line string) (Drive, bool) {
	body := strings.TrimPrefix(line, "DRV:")
	fields := splitCSVQuoted(body)
	if len(fields) < 6 {
		return Drive{}, false
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return Drive{}, false
	}
	visible, _ := strconv.Atoi(fields[1])
	if visible == 0 {
		return Drive{}, false
	}
	d := Drive{
		Index:     index,
		Name:      fields[4],
		DiscTitle: fields[5],
		HasDisc:   fields[5] != "",
	}
	return d, true
}

// splitCSVQuoted splits a makemkv robot line on commas, honoring
// double-quoted fields and stripping the quotes.
func splitCSVQuoted(s string) []string {
	var out []string
	var field strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			out = append(out, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	out = append(out, field.String())
	return out
}
