package capability

import (
	"context"
	"log/slog"
	"testing"
)

// fakeCap is a minimal capability for registry tests.
type fakeCap struct {
	name    string
	intents map[string]string
}

func (f *fakeCap) Name() string               { return f.name }
func (f *fakeCap) Intents() map[string]string { return f.intents }
func (f *fakeCap) Run(ctx context.Context, intent string, args Args, sink ProgressSink) (Result, error) {
	return ChatText("ok"), nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry(slog.Default())
	err := r.Register(&fakeCap{name: "plex", intents: map[string]string{
		"scan_plex":  "Scan and refresh Plex libraries",
		"play_video": "Play a video from the Plex library",
	}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	capName, ok := r.Resolve("scan_plex")
	if !ok || capName != "plex" {
		t.Errorf("Resolve(scan_plex) = %q, %v; want plex, true", capName, ok)
	}
	if r.HasIntent("rip_disc") {
		t.Error("HasIntent(rip_disc) = true for unregistered intent")
	}
}

func TestDuplicateIntentIsStartupError(t *testing.T) {
	r := NewRegistry(slog.Default())
	if err := r.Register(&fakeCap{name: "media", intents: map[string]string{"download": "Download a video"}}); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	err := r.Register(&fakeCap{name: "other", intents: map[string]string{"download": "Also download"}})
	if err == nil {
		t.Fatal("duplicate intent registration did not fail")
	}

	// The original owner must be untouched.
	if capName, _ := r.Resolve("download"); capName != "media" {
		t.Errorf("Resolve(download) = %q after failed registration, want media", capName)
	}
}

func TestDuplicateCapabilityName(t *testing.T) {
	r := NewRegistry(slog.Default())
	if err := r.Register(&fakeCap{name: "plex", intents: map[string]string{"scan_plex": "scan"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakeCap{name: "plex", intents: map[string]string{"other": "x"}}); err == nil {
		t.Fatal("duplicate capability name did not fail")
	}
}

func TestIntentMenuPreservesOrderAndSkipsUnknown(t *testing.T) {
	r := NewRegistry(slog.Default())
	r.Register(&fakeCap{name: "ripdisc", intents: map[string]string{"rip_disc": "Rip a disc"}})
	r.Register(&fakeCap{name: "media", intents: map[string]string{"download": "Download a video"}})

	menu := r.IntentMenu([]string{"rip_disc", "nope", "download"})
	if len(menu) != 2 {
		t.Fatalf("menu has %d entries, want 2", len(menu))
	}
	if menu[0].Name != "rip_disc" || menu[1].Name != "download" {
		t.Errorf("menu order = %q, %q", menu[0].Name, menu[1].Name)
	}
	if menu[1].Capability != "media" {
		t.Errorf("menu capability = %q, want media", menu[1].Capability)
	}
}
