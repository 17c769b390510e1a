package media

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/history"
)

// Capability exposes the downloader through the tool interface and
// records finished downloads in history.
type Capability struct {
	dl      *Downloader
	history *history.Store
	logger  *slog.Logger
}

// NewCapability wraps a downloader. The history store may be nil, in
// which case downloads are simply not recorded.
func NewCapability(dl *Downloader, hist *history.Store, logger *slog.Logger) *Capability {
	return &Capability{dl: dl, history: hist, logger: logger}
}

func (c *Capability) Name() string { return "media" }

func (c *Capability) Intents() map[string]string {
	return map[string]string{
		"download":         "Download media from a URL",
		"download_video":   "Download video from a URL",
		"download_audio":   "Extract audio from a URL as mp3",
		"get_video_info":   "Fetch title and metadata for a media URL",
		"download_history": "List recent downloads",
	}
}

func (c *Capability) Run(ctx context.Context, intent string, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	switch intent {
	case "download", "download_video":
		return c.download(ctx, args, false, sink)
	case "download_audio":
		return c.download(ctx, args, true, sink)
	case "get_video_info":
		return c.info(ctx, args)
	case "download_history":
		return c.recent(ctx)
	default:
		return capability.Errorf("unknown media intent %q", intent), nil
	}
}

func (c *Capability) download(ctx context.Context, args capability.Args, audioOnly bool, sink capability.ProgressSink) (capability.Result, error) {
	url := args.String("url")
	if url == "" {
		return capability.Errorf("no URL to download"), nil
	}

	dest, err := c.dl.Download(ctx, url, audioOnly, sink)
	c.record(ctx, url, dest, err)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.ChatText(fmt.Sprintf("Downloaded %s.", filepath.Base(dest))), nil
}

func (c *Capability) info(ctx context.Context, args capability.Args) (capability.Result, error) {
	url := args.String("url")
	if url == "" {
		return capability.Errorf("no URL to inspect"), nil
	}
	info, err := c.dl.Info(ctx, url)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("video_info", info), nil
}

func (c *Capability) recent(ctx context.Context) (capability.Result, error) {
	if c.history == nil {
		return capability.ChatText("Download history is not enabled."), nil
	}
	entries, err := c.history.Recent(ctx, "download", 20)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("download_history", entries), nil
}

// record writes the download outcome to history, best effort.
func (c *Capability) record(ctx context.Context, url, dest string, runErr error) {
	if c.history == nil {
		return
	}
	entry := history.Entry{Tool: "download", Subject: url, Outcome: "done", Detail: dest}
	if runErr != nil {
		entry.Outcome = "error"
		entry.Detail = runErr.Error()
	}
	if err := c.history.Record(ctx, entry); err != nil {
		c.logger.Warn("record download history", "error", err)
	}
}
