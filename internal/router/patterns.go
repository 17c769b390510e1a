package router

import (
	"regexp"
	"strings"

	"github.com/glowos/glowd/internal/capability"
)

// patternEntry binds one tool to the phrases that trigger it. Entries
// are tested in table order and the first phrase hit wins, a deliberate
// simplicity/speed tradeoff over scoring.
type patternEntry struct {
	tool    string
	phrases []string
}

// patternTable is the fast-path vocabulary. Broad triggers ("download",
// "find") sit after the specific ones that would otherwise shadow them.
// Matching is substring-on-lowercase, so phrase choice matters more
// than it looks; keep phrases that can only mean one tool.
var patternTable = []patternEntry{
	{tool: "scan_plex", phrases: []string{"scan plex", "scanning plex", "refresh plex", "update plex", "plex scan", "plex refresh"}},
	{tool: "rip_disc", phrases: []string{"rip disc", "rip the disc", "rip dvd", "rip bluray", "rip blu-ray", "extract disc", "rip this"}},
	{tool: "download", phrases: []string{"download", "youtube", "youtu.be", "youtube.com", "get video", "save video"}},
	{tool: "download_video", phrases: []string{"download video", "get video", "save video"}},
	{tool: "download_audio", phrases: []string{"download audio", "get audio", "save audio", "extract audio"}},
	{tool: "search", phrases: []string{"search web", "web search", "google", "search for", "look up"}},
	{tool: "search_files", phrases: []string{"look for", "find", "search for", "show me", "where is"}},
	{tool: "calculate", phrases: []string{"calculate", "compute", "solve", "math", "what is", "how much"}},
	{tool: "bulk_rename", phrases: []string{"rename", "move file", "organize files", "bulk rename", "rename files"}},
	{tool: "play_video", phrases: []string{"play", "watch", "stream", "show me"}},
}

var (
	urlRe = regexp.MustCompile(`https?://[^\s]+`)

	// "look for X on (my) desktop (folder)": query plus location hint.
	searchWithLocationRe = regexp.MustCompile(`(?:look for|find|search for|show me|where is)\s+(.+?)\s+on\s+(?:my\s+)?(\w+)(?:\s+folder)?\s*$`)
	// "find X (folder)": query only.
	searchQueryRe = regexp.MustCompile(`(?:look for|find|search for|show me|where is)\s+(.+?)(?:\s+folder)?\s*$`)
	// leading articles that add nothing to a file search.
	leadingArticleRe = regexp.MustCompile(`^(?:the|my|a|an)\s+`)
	trailingFolderRe = regexp.MustCompile(`\s+folder\s*$`)

	// "rename <glob or name> to <replacement>".
	renameRe = regexp.MustCompile(`rename\s+(.+?)\s+to\s+(.+?)\s*$`)
)

// downloadTools require a URL argument from the fast path.
var downloadTools = map[string]bool{
	"download":       true,
	"download_video": true,
	"download_audio": true,
}

// matchPatterns runs the deterministic fast path. It returns a tool
// decision when a phrase matches and any required arguments were
// extracted, or nil to signal the caller to try the model fallback.
// Tools whose required argument cannot be extracted (a download with no
// URL in sight) fall through rather than dispatching with empty
// arguments.
func matchPatterns(message string) *Decision {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, entry := range patternTable {
		if !anyPhrase(lower, entry.phrases) {
			continue
		}

		switch {
		case downloadTools[entry.tool]:
			if url := urlRe.FindString(message); url != "" {
				return &Decision{
					Mode:      ModeTool,
					Tool:      entry.tool,
					Arguments: capability.Args{"url": url},
					MatchedBy: "pattern",
				}
			}
			// No URL to download; let the model take a look.

		case entry.tool == "search_files":
			if args, ok := extractFileSearch(lower); ok {
				return &Decision{Mode: ModeTool, Tool: entry.tool, Arguments: args, MatchedBy: "pattern"}
			}

		case entry.tool == "bulk_rename":
			if args, ok := extractRename(lower); ok {
				return &Decision{Mode: ModeTool, Tool: entry.tool, Arguments: args, MatchedBy: "pattern"}
			}

		default:
			return &Decision{
				Mode:      ModeTool,
				Tool:      entry.tool,
				Arguments: capability.Args{},
				MatchedBy: "pattern",
			}
		}
	}

	return nil
}

func anyPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// extractFileSearch pulls a search query and optional location hint
// ("on my desktop") out of the message. Returns ok=false when no usable
// query remains after cleanup.
func extractFileSearch(lower string) (capability.Args, bool) {
	var query, location string

	if m := searchWithLocationRe.FindStringSubmatch(lower); m != nil {
		query, location = m[1], m[2]
	} else if m := searchQueryRe.FindStringSubmatch(lower); m != nil {
		query = m[1]
	} else {
		return nil, false
	}

	query = trailingFolderRe.ReplaceAllString(query, "")
	query = leadingArticleRe.ReplaceAllString(strings.TrimSpace(query), "")
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}

	args := capability.Args{"query": query}
	if location != "" {
		args["location_hint"] = location
	}
	return args, true
}

// extractRename pulls "rename X to Y" pattern/replacement arguments.
func extractRename(lower string) (capability.Args, bool) {
	m := renameRe.FindStringSubmatch(lower)
	if m == nil {
		return nil, false
	}
	pattern := strings.TrimSpace(m[1])
	replacement := strings.TrimSpace(m[2])
	if pattern == "" || replacement == "" {
		return nil, false
	}
	return capability.Args{"pattern": pattern, "replacement": replacement}, true
}
