package plex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glowos/glowd/internal/capability"
)

// Capability exposes the Plex client through the tool interface.
type Capability struct {
	client *Client
	logger *slog.Logger
}

// NewCapability wraps a Plex client as a registrable capability.
func NewCapability(client *Client, logger *slog.Logger) *Capability {
	return &Capability{client: client, logger: logger}
}

func (c *Capability) Name() string { return "plex" }

func (c *Capability) Intents() map[string]string {
	return map[string]string{
		"scan_plex":           "Scan and refresh Plex libraries",
		"list_plex_libraries": "List all available Plex libraries",
		"list_plex_items":     "List items in a specific Plex library",
		"play_video":          "Play a video from the Plex library",
	}
}

func (c *Capability) Run(ctx context.Context, intent string, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	switch intent {
	case "scan_plex":
		return c.scan(ctx, args)
	case "list_plex_libraries":
		return c.listLibraries(ctx)
	case "list_plex_items":
		return c.listItems(ctx, args)
	case "play_video":
		return c.playVideo(ctx, args, sink)
	default:
		return capability.Errorf("unknown plex intent %q", intent), nil
	}
}

func (c *Capability) scan(ctx context.Context, args capability.Args) (capability.Result, error) {
	key := args.String("key")
	if err := c.client.Scan(ctx, key); err != nil {
		return capability.Result{}, err
	}
	if key != "" {
		return capability.ChatText(fmt.Sprintf("Scan triggered for library %s.", key)), nil
	}
	return capability.ChatText("Scan triggered for all libraries."), nil
}

func (c *Capability) listLibraries(ctx context.Context) (capability.Result, error) {
	libs, err := c.client.Libraries(ctx)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("plex_libraries", libs), nil
}

func (c *Capability) listItems(ctx context.Context, args capability.Args) (capability.Result, error) {
	key := args.String("key")
	if key == "" {
		return capability.Errorf("missing library key"), nil
	}
	items, err := c.client.Items(ctx, key)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("plex_items", items), nil
}

// playbackInfo is the structured payload the frontend renders as a
// video player.
type playbackInfo struct {
	Title      string `json:"title"`
	VideoSrc   string `json:"videoSrc"`
	Thumb      string `json:"thumbnailSrc,omitempty"`
	PlexWebURL string `json:"plexWebUrl"`
	Duration   string `json:"duration,omitempty"`
	Library    string `json:"library,omitempty"`
}

// playVideo searches every library for a title match and returns the
// stream info for the first hit.
func (c *Capability) playVideo(ctx context.Context, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	title := args.String("title")
	if title == "" {
		title = args.String("query")
	}
	if title == "" {
		return capability.Errorf("please provide a video title to play"), nil
	}

	libs, err := c.client.Libraries(ctx)
	if err != nil {
		return capability.Result{}, err
	}

	lowered := strings.ToLower(title)
	for i, lib := range libs {
		sink.Report(capability.Progress{
			Percent: float64(i) / float64(len(libs)) * 100,
			Status:  "searching",
			Message: "searching " + lib.Title,
		})

		items, err := c.client.Items(ctx, lib.Key)
		if err != nil {
			c.logger.Warn("plex library search failed", "library", lib.Title, "error", err)
			continue
		}
		for _, item := range items {
			if item.Type != "video" || !strings.Contains(strings.ToLower(item.Title), lowered) {
				continue
			}
			return capability.StructuredMedia("plex_video", playbackInfo{
				Title:      item.Title,
				VideoSrc:   c.client.StreamURL(item.RatingKey),
				Thumb:      item.Thumb,
				PlexWebURL: WebURL(item.RatingKey),
				Duration:   item.Duration,
				Library:    lib.Title,
			}), nil
		}
	}
	return capability.Errorf("video %q not found in any Plex library", title), nil
}
