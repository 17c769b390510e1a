package watchers

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

func TestDetectDisc(t *testing.T) {
	t.Run("blu-ray volume", func(t *testing.T) {
		root := t.TempDir()
		vol := filepath.Join(root, "INCEPTION")
		if err := os.MkdirAll(filepath.Join(vol, "BDMV"), 0o755); err != nil {
			t.Fatal(err)
		}

		mounted, path := DetectDisc(root)
		if !mounted || path != vol {
			t.Errorf("DetectDisc = (%v, %q), want (true, %q)", mounted, path, vol)
		}
	})

	t.Run("dvd volume", func(t *testing.T) {
		root := t.TempDir()
		vol := filepath.Join(root, "HOME_MOVIES")
		if err := os.MkdirAll(filepath.Join(vol, "VIDEO_TS"), 0o755); err != nil {
			t.Fatal(err)
		}

		mounted, _ := DetectDisc(root)
		if !mounted {
			t.Error("DVD structure not detected")
		}
	})

	t.Run("data volume ignored", func(t *testing.T) {
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "BACKUP_DRIVE", "photos"), 0o755); err != nil {
			t.Fatal(err)
		}

		mounted, path := DetectDisc(root)
		if mounted || path != "" {
			t.Errorf("DetectDisc = (%v, %q), want no disc", mounted, path)
		}
	})

	t.Run("hidden volumes skipped", func(t *testing.T) {
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, ".hidden", "BDMV"), 0o755); err != nil {
			t.Fatal(err)
		}

		if mounted, _ := DetectDisc(root); mounted {
			t.Error("hidden volume treated as disc")
		}
	})

	t.Run("missing root", func(t *testing.T) {
		if mounted, _ := DetectDisc("/does/not/exist"); mounted {
			t.Error("missing mount root reported a disc")
		}
	})

	t.Run("marker must be a directory", func(t *testing.T) {
		root := t.TempDir()
		vol := filepath.Join(root, "WEIRD")
		if err := os.MkdirAll(vol, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(vol, "BDMV"), []byte("not a dir"), 0o644); err != nil {
			t.Fatal(err)
		}

		if mounted, _ := DetectDisc(root); mounted {
			t.Error("BDMV file mistaken for disc structure")
		}
	})
}

func TestSampleDiscTransitions(t *testing.T) {
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.NewStore(logger)
	bus := events.New()
	sub := bus.Subscribe(4)
	defer bus.Unsubscribe(sub)

	r := New(Config{DiscMountRoot: root}, store, bus, logger)

	// No disc yet: nothing changes, nothing published.
	r.sampleDisc()
	if snap := store.Get(); snap.Device.DiscMounted {
		t.Fatal("disc reported mounted on empty root")
	}

	// Insert.
	vol := filepath.Join(root, "MOVIE")
	if err := os.MkdirAll(filepath.Join(vol, "BDMV"), 0o755); err != nil {
		t.Fatal(err)
	}
	r.sampleDisc()

	snap := store.Get()
	if !snap.Device.DiscMounted || snap.Device.DiscPath != vol {
		t.Fatalf("device = %+v, want mounted at %q", snap.Device, vol)
	}
	if !snap.Notifications.DiscInserted || snap.Notifications.DiscPath != vol {
		t.Errorf("notifications = %+v, want disc insertion recorded", snap.Notifications)
	}

	select {
	case e := <-sub:
		if e.Kind != events.KindDiscInserted {
			t.Errorf("event kind = %q, want disc inserted", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no disc-inserted event published")
	}

	// Steady state: no duplicate notification events.
	r.sampleDisc()
	select {
	case e := <-sub:
		t.Fatalf("unexpected event %+v on unchanged state", e)
	default:
	}

	// Eject.
	if err := os.RemoveAll(vol); err != nil {
		t.Fatal(err)
	}
	r.sampleDisc()

	snap = store.Get()
	if snap.Device.DiscMounted {
		t.Errorf("device = %+v, want unmounted after eject", snap.Device)
	}
	select {
	case e := <-sub:
		if e.Kind != events.KindDiscEjected {
			t.Errorf("event kind = %q, want disc ejected", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no disc-ejected event published")
	}
}
