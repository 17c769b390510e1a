package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glowos/glowd/internal/events"
	"github.com/glowos/glowd/internal/state"
)

func newTestNotifier(cfg Config) *Notifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, state.NewStore(logger), events.New(), logger)
}

func TestTopicPrefix(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		suffix string
		want   string
	}{
		{
			name:   "default prefix",
			cfg:    Config{},
			suffix: "availability",
			want:   "glowd/availability",
		},
		{
			name:   "custom prefix",
			cfg:    Config{TopicPrefix: "home/office/assistant"},
			suffix: "events/task_done",
			want:   "home/office/assistant/events/task_done",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNotifier(tt.cfg)
			if got := n.topic(tt.suffix); got != tt.want {
				t.Errorf("topic(%q) = %q, want %q", tt.suffix, got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	n := newTestNotifier(Config{})
	if n.cfg.ClientID != "glowd" {
		t.Errorf("ClientID = %q, want default", n.cfg.ClientID)
	}
	if n.cfg.TopicPrefix != "glowd" {
		t.Errorf("TopicPrefix = %q, want default", n.cfg.TopicPrefix)
	}
}

func TestStartReturnsWhileBrokerUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nothing listens on this port; autopaho retries in the background
	// and Start must still hand control back so the caller can bring
	// up the rest of the process.
	n := newTestNotifier(Config{Broker: "mqtt://127.0.0.1:1"})

	started := make(chan error, 1)
	go func() { started <- n.Start(ctx) }()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return while the broker was unreachable")
	}

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	n.Stop(stopCtx) // never connected, disconnect errors are fine
}

func TestStartRejectsBadBrokerURL(t *testing.T) {
	n := newTestNotifier(Config{Broker: ":not a url"})
	if err := n.Start(context.Background()); err == nil {
		t.Error("Start accepted an unparsable broker URL")
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	n := newTestNotifier(Config{})
	if err := n.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start = %v, want nil", err)
	}
}
