package ripdisc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/history"
	"github.com/glowos/glowd/internal/state"
)

// Capability exposes the ripper through the tool interface. It reads
// the disc mount point from the state snapshot the watchers maintain.
type Capability struct {
	ripper  *Ripper
	store   *state.Store
	history *history.Store
	logger  *slog.Logger
}

// NewCapability wraps a ripper. The history store may be nil.
func NewCapability(ripper *Ripper, store *state.Store, hist *history.Store, logger *slog.Logger) *Capability {
	return &Capability{ripper: ripper, store: store, history: hist, logger: logger}
}

func (c *Capability) Name() string { return "ripdisc" }

func (c *Capability) Intents() map[string]string {
	return map[string]string{
		"rip_disc":       "Rip the inserted disc to MKV",
		"get_rip_status": "Check whether a rip is in progress",
		"detect_drives":  "Detect optical drives and their status",
		"eject_disc":     "Eject the disc from the drive",
	}
}

func (c *Capability) Run(ctx context.Context, intent string, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	switch intent {
	case "rip_disc":
		return c.rip(ctx, sink)
	case "get_rip_status":
		return c.status(), nil
	case "detect_drives":
		return c.drives(ctx)
	case "eject_disc":
		return c.eject(ctx)
	default:
		return capability.Errorf("unknown ripdisc intent %q", intent), nil
	}
}

func (c *Capability) rip(ctx context.Context, sink capability.ProgressSink) (capability.Result, error) {
	device := c.store.Get().Device
	if !device.DiscMounted {
		return capability.Errorf("no disc mounted"), nil
	}

	dest, err := c.ripper.Rip(ctx, device.DiscPath, func(p ProgressLine) {
		sink.Report(capability.Progress{
			Percent: p.Percent,
			Status:  "ripping",
			Message: p.Message,
		})
	})
	c.record(ctx, device.DiscPath, dest, err)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.ChatText(fmt.Sprintf("Disc ripped to %s.", dest)), nil
}

func (c *Capability) status() capability.Result {
	ripping, lastDest := c.ripper.Status()
	if ripping {
		return capability.ChatText("A rip is in progress right now.")
	}
	if lastDest != "" {
		return capability.ChatText(fmt.Sprintf("No rip running. Last rip landed in %s.", filepath.Base(lastDest)))
	}
	return capability.ChatText("No rip running.")
}

func (c *Capability) drives(ctx context.Context) (capability.Result, error) {
	drives, err := c.ripper.DetectDrives(ctx)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.StructuredMedia("drives", drives), nil
}

func (c *Capability) eject(ctx context.Context) (capability.Result, error) {
	device := c.store.Get().Device
	if err := c.ripper.Eject(ctx, device.DiscPath); err != nil {
		return capability.Result{}, err
	}
	return capability.ChatText("Disc ejected."), nil
}

func (c *Capability) record(ctx context.Context, disc, dest string, runErr error) {
	if c.history == nil {
		return
	}
	entry := history.Entry{Tool: "rip_disc", Subject: filepath.Base(disc), Outcome: "done", Detail: dest}
	if runErr != nil {
		entry.Outcome = "error"
		entry.Detail = runErr.Error()
	}
	if err := c.history.Record(ctx, entry); err != nil {
		c.logger.Warn("record rip history", "error", err)
	}
}
