package ripdisc

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/state"
)

func TestParsePRGV(t *testing.T) {
	tests := []struct {
		line   string
		want   float64
		wantOK bool
	}{
		{"PRGV:0,0,65536", 0, true},
		{"PRGV:100,32768,65536", 50, true},
		{"PRGV:65536,65536,65536", 100, true},
		{"PRGV:1,2", 0, false},
		{"PRGV:a,b,c", 0, false},
		{"PRGV:1,1,0", 0, false},
	}

	for _, tt := range tests {
		got, ok := parsePRGV(tt.line)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parsePRGV(%q) = (%v, %v), want (%v, %v)", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseTitledLine(t *testing.T) {
	if got := parseTitledLine(`PRGC:5057,0,"Analyzing seamless segments"`); got != "Analyzing seamless segments" {
		t.Errorf("parseTitledLine = %q", got)
	}
	if got := parseTitledLine("PRGC:5057,0"); got != "" {
		t.Errorf("parseTitledLine on untitled line = %q, want empty", got)
	}
}

func TestParseMessage(t *testing.T) {
	line := `MSG:1005,0,1,"MakeMKV v1.17 started","%1 started","MakeMKV v1.17"`
	if got := parseMessage(line); got != "MakeMKV v1.17 started" {
		t.Errorf("parseMessage = %q", got)
	}
}

func TestParseDrive(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Drive
		ok   bool
	}{
		{
			name: "drive with disc",
			line: `DRV:0,2,999,12,"BD-RE PIONEER BDR-XD07","INCEPTION","/dev/sr0"`,
			want: Drive{Index: 0, Name: "BD-RE PIONEER BDR-XD07", DiscTitle: "INCEPTION", HasDisc: true},
			ok:   true,
		},
		{
			name: "empty drive",
			line: `DRV:1,1,999,0,"DVD drive","","/dev/sr1"`,
			want: Drive{Index: 1, Name: "DVD drive", HasDisc: false},
			ok:   true,
		},
		{
			name: "invisible placeholder slot",
			line: `DRV:2,0,999,0,"","",""`,
			ok:   false,
		},
		{
			name: "malformed",
			line: "DRV:x",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDrive(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseDrive(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseDrive(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestSplitCSVQuoted(t *testing.T) {
	got := splitCSVQuoted(`0,2,999,12,"Drive, with comma","DISC","/dev/sr0"`)
	want := []string{"0", "2", "999", "12", "Drive, with comma", "DISC", "/dev/sr0"}
	if len(got) != len(want) {
		t.Fatalf("got %d fields, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRipRequiresBinary(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &Ripper{cfg: Config{}, logger: logger}

	if _, err := r.Rip(context.Background(), "/media/DISC", func(ProgressLine) {}); err == nil {
		t.Error("Rip without makemkvcon succeeded")
	}
}

func TestRipRejectsConcurrentRuns(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &Ripper{cfg: Config{MakeMKVPath: "/usr/bin/true", OutputDir: t.TempDir()}, logger: logger}

	r.mu.Lock()
	r.ripping = true
	r.mu.Unlock()

	if _, err := r.Rip(context.Background(), "/media/DISC", func(ProgressLine) {}); err == nil {
		t.Error("second concurrent Rip succeeded")
	}
}

func TestRipCapabilityRequiresDisc(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.NewStore(logger)
	cap := NewCapability(New(Config{MakeMKVPath: "/usr/bin/true", OutputDir: t.TempDir()}, logger), store, nil, logger)

	res, err := cap.Run(context.Background(), "rip_disc", capability.Args{}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != capability.KindError {
		t.Errorf("result = %+v, want error without mounted disc", res)
	}
}

func TestStatusIdle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.NewStore(logger)
	cap := NewCapability(New(Config{MakeMKVPath: "/usr/bin/true"}, logger), store, nil, logger)

	res, err := cap.Run(context.Background(), "get_rip_status", capability.Args{}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != capability.KindChatText || res.Text != "No rip running." {
		t.Errorf("result = %+v, want idle status text", res)
	}
}
