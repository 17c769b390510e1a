package router

import (
	"strings"
	"testing"
)

func TestMatchPatterns(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantTool string // "" means no pattern match
		wantArgs map[string]string
	}{
		{
			name:     "scan plex",
			message:  "scan plex please",
			wantTool: "scan_plex",
		},
		{
			name:     "plex refresh phrasing",
			message:  "can you refresh plex",
			wantTool: "scan_plex",
		},
		{
			name:     "rip the disc",
			message:  "rip the disc",
			wantTool: "rip_disc",
		},
		{
			name:     "download with url",
			message:  "download https://youtube.com/watch?v=abc123",
			wantTool: "download",
			wantArgs: map[string]string{"url": "https://youtube.com/watch?v=abc123"},
		},
		{
			name:    "download without url falls through",
			message: "download that thing we talked about",
		},
		{
			name:     "web search",
			message:  "search web for rust tutorials",
			wantTool: "search",
		},
		{
			name:     "file search with location",
			message:  "look for the tax documents on my desktop",
			wantTool: "search_files",
			wantArgs: map[string]string{"query": "tax documents", "location_hint": "desktop"},
		},
		{
			name:     "file search strips folder suffix",
			message:  "find my screenshots folder",
			wantTool: "search_files",
			wantArgs: map[string]string{"query": "screenshots"},
		},
		{
			name:     "calculate",
			message:  "what is 15% of 2400",
			wantTool: "calculate",
		},
		{
			name:     "bulk rename",
			message:  "rename vacation*.jpg to hawaii_2025",
			wantTool: "bulk_rename",
			wantArgs: map[string]string{"pattern": "vacation*.jpg", "replacement": "hawaii_2025"},
		},
		{
			name:     "play video",
			message:  "play the latest episode",
			wantTool: "play_video",
		},
		{
			name:    "plain conversation",
			message: "how was your day?",
		},
		{
			name:    "empty message",
			message: "   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := matchPatterns(tt.message)

			if tt.wantTool == "" {
				if d != nil {
					t.Fatalf("matchPatterns(%q) = %+v, want nil", tt.message, d)
				}
				return
			}

			if d == nil {
				t.Fatalf("matchPatterns(%q) = nil, want tool %q", tt.message, tt.wantTool)
			}
			if d.Mode != ModeTool {
				t.Errorf("Mode = %q, want %q", d.Mode, ModeTool)
			}
			if d.Tool != tt.wantTool {
				t.Errorf("Tool = %q, want %q", d.Tool, tt.wantTool)
			}
			if d.MatchedBy != "pattern" {
				t.Errorf("MatchedBy = %q, want \"pattern\"", d.MatchedBy)
			}
			for k, want := range tt.wantArgs {
				if got := d.Arguments.String(k); got != want {
					t.Errorf("Arguments[%q] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestMatchPatternsSpecificBeforeBroad(t *testing.T) {
	// "search for" appears in both the web-search and file-search
	// vocabularies; web search is listed first and must win.
	d := matchPatterns("search web for the weather")
	if d == nil || d.Tool != "search" {
		t.Fatalf("got %+v, want search decision", d)
	}
}

func TestTruncateMessage(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "word "
	}

	got := truncateMessage(long, 40)
	if words := len(strings.Fields(got)); words != 40 {
		t.Errorf("truncated to %d words, want 40", words)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated message %q lacks ellipsis", got)
	}

	short := "keep me intact"
	if got := truncateMessage(short, 40); got != short {
		t.Errorf("truncateMessage(short) = %q, want unchanged", got)
	}
}
