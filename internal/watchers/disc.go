package watchers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

// discStructures are the directory names that mark a mounted video
// disc: BDMV for Blu-ray, VIDEO_TS for DVD. A volume without either is
// a data disc or an external drive and is ignored.
var discStructures = []string{"BDMV", "VIDEO_TS"}

func (r *Runner) discLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.DiscInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleDisc()
		}
	}
}

// sampleDisc checks the mount root for a video disc and records
// transitions: a newly mounted disc raises a notification and a bus
// event, an eject clears the mount bits.
func (r *Runner) sampleDisc() {
	mounted, path := DetectDisc(r.cfg.DiscMountRoot)
	prev := r.store.Get().Device

	if mounted == prev.DiscMounted && path == prev.DiscPath {
		return
	}

	r.store.Update(state.Partial{Device: &state.DevicePatch{
		DiscMounted: state.Bool(mounted),
		DiscPath:    state.Str(path),
	}})

	switch {
	case mounted && !prev.DiscMounted:
		r.logger.Info("disc inserted", "path", path)
		r.store.Update(state.Partial{Notifications: &state.NotificationsPatch{
			DiscInserted: state.Bool(true),
			DiscPath:     state.Str(path),
			Timestamp:    state.Str(time.Now().UTC().Format(time.RFC3339)),
		}})
		r.bus.Publish(events.Event{
			Source: events.SourceWatcher,
			Kind:   events.KindDiscInserted,
			Data:   map[string]any{"path": path},
		})
	case !mounted && prev.DiscMounted:
		r.logger.Info("disc ejected", "path", prev.DiscPath)
		r.bus.Publish(events.Event{
			Source: events.SourceWatcher,
			Kind:   events.KindDiscEjected,
			Data:   map[string]any{"path": prev.DiscPath},
		})
	}
}

// DetectDisc scans the volumes under mountRoot for one carrying a
// video disc structure. Returns the first hit in directory order.
func DetectDisc(mountRoot string) (bool, string) {
	entries, err := os.ReadDir(mountRoot)
	if err != nil {
		return false, ""
	}

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		volume := filepath.Join(mountRoot, entry.Name())
		for _, marker := range discStructures {
			if info, err := os.Stat(filepath.Join(volume, marker)); err == nil && info.IsDir() {
				return true, volume
			}
		}
	}
	return false, ""
}
