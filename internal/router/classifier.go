package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonrepair"

	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/llm"
)

// truncateWords is the token budget for the message sent to the model.
// The classifier only needs intent signal, not full context, and a
// short prompt keeps latency flat.
const truncateWords = 40

// maxMenuTools bounds the tool menu shown to the model. More entries
// cost prompt tokens and decision latency without improving accuracy
// on the core vocabulary.
const maxMenuTools = 7

// classifierMaxTokens bounds the model's reply; the JSON decision fits
// comfortably.
const classifierMaxTokens = 100

// StateSummary is the tiny state digest included in the classifier
// prompt. Anything bigger belongs in the chat path, not here.
type StateSummary struct {
	DiscMounted bool
	TaskRunning bool
}

// Classifier asks a low-latency model to route messages the pattern
// matcher could not. It never fails upward: any error, timeout, or
// unparsable reply degrades to a chat decision.
type Classifier struct {
	client  llm.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
	cache   *lru.Cache[string, Decision]
	warmed  atomic.Bool
}

// NewClassifier creates a classifier backed by the given model client.
func NewClassifier(client llm.Client, model string, timeout time.Duration, cacheSize int, logger *slog.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	// lru.New only errors on a non-positive size.
	cache, _ := lru.New[string, Decision](cacheSize)
	return &Classifier{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
		cache:   cache,
	}
}

// Warm exercises the model connection once so the first real request
// does not pay a cold-start penalty. Best effort: failures are logged
// and swallowed, and repeat calls are no-ops.
func (c *Classifier) Warm(ctx context.Context) {
	if c.warmed.Swap(true) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Ping(ctx); err != nil {
		c.logger.Debug("classifier warm-up failed", "error", err)
		c.warmed.Store(false)
	}
}

// Classify routes a message using the model. The message is truncated
// to the word budget first; identical truncated messages hit the
// decision cache without a network call.
func (c *Classifier) Classify(ctx context.Context, message string, menu []capability.IntentInfo, summary StateSummary) Decision {
	truncated := truncateMessage(message, truncateWords)

	if d, ok := c.cache.Get(truncated); ok {
		return d
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat(ctx, c.model, []llm.Message{
		{Role: "user", Content: buildPrompt(truncated, menu, summary)},
	}, llm.Options{
		MaxTokens:   classifierMaxTokens,
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		c.logger.Warn("classifier call failed, defaulting to chat", "error", err)
		return chatDecision()
	}

	d, err := parseDecision(resp.Text())
	if err != nil {
		c.logger.Warn("classifier reply unparsable, defaulting to chat",
			"error", err, "reply_len", len(resp.Text()))
		return chatDecision()
	}

	// A download decision without a URL is useless; recover the URL
	// from the raw message if the model dropped it.
	if d.Mode == ModeTool && downloadTools[d.Tool] && d.Arguments.String("url") == "" {
		if url := urlRe.FindString(message); url != "" {
			d.Arguments["url"] = url
		}
	}

	c.cache.Add(truncated, d)
	return d
}

// truncateMessage keeps the first n whitespace-separated words.
func truncateMessage(message string, n int) string {
	words := strings.Fields(message)
	if len(words) <= n {
		return strings.TrimSpace(message)
	}
	return strings.Join(words[:n], " ") + "..."
}

// buildPrompt assembles the routing prompt: tool menu, state digest,
// format examples, then the message. Menu entries past the bound are
// dropped.
func buildPrompt(message string, menu []capability.IntentInfo, summary StateSummary) string {
	if len(menu) > maxMenuTools {
		menu = menu[:maxMenuTools]
	}

	var tools strings.Builder
	for _, t := range menu {
		desc := t.Description
		if len(desc) > 60 {
			desc = desc[:60]
		}
		fmt.Fprintf(&tools, "%s: %s\n", t.Name, desc)
	}

	return fmt.Sprintf(`Route user message to tool or chat.

State: disc=%t, tasks=%t
Tools: %s
Return JSON: {"mode":"tool"|"chat","tool_name":"intent"|null,"arguments":{}|null}

Examples:
"How are you?" → {"mode":"chat","tool_name":null,"arguments":null}
"rip the disc" → {"mode":"tool","tool_name":"rip_disc","arguments":{}}
"scan plex" → {"mode":"tool","tool_name":"scan_plex","arguments":{}}
"download https://youtube.com/xyz" → {"mode":"tool","tool_name":"download","arguments":{"url":"https://youtube.com/xyz"}}
"what is 2+2" → {"mode":"tool","tool_name":"calculate","arguments":{"query":"2+2"}}

Message: %s`, summary.DiscMounted, summary.TaskRunning, tools.String(), message)
}

// parseDecision recovers a routing decision from the model's reply.
// Code fences are stripped, the first balanced object containing the
// "mode" key is extracted, and as a last resort the text is run
// through a JSON repairer before parsing.
func parseDecision(text string) (Decision, error) {
	cleaned := stripFences(strings.TrimSpace(text))
	if obj := extractModeObject(cleaned); obj != "" {
		cleaned = obj
	}

	var raw struct {
		Mode      string         `json:"mode"`
		ToolName  string         `json:"tool_name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		repaired, repErr := jsonrepair.JSONRepair(cleaned)
		if repErr != nil {
			return Decision{}, fmt.Errorf("parse decision: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return Decision{}, fmt.Errorf("parse repaired decision: %w", err)
		}
	}

	if raw.Mode != string(ModeTool) || raw.ToolName == "" {
		return chatDecision(), nil
	}

	args := capability.Args(raw.Arguments)
	if args == nil {
		args = capability.Args{}
	}
	return Decision{
		Mode:      ModeTool,
		Tool:      raw.ToolName,
		Arguments: args,
		MatchedBy: "model",
	}, nil
}

// stripFences removes ``` and ```json markers around a reply.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// extractModeObject returns the first balanced {...} substring that
// contains the key "mode", or "" when none exists.
func extractModeObject(s string) string {
	for start := 0; ; {
		open := strings.Index(s[start:], "{")
		if open < 0 {
			return ""
		}
		open += start

		depth := 0
		inString := false
		escaped := false
		for i := open; i < len(s); i++ {
			ch := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[open : i+1]
					if strings.Contains(candidate, `"mode"`) {
						return candidate
					}
					start = i + 1
					goto next
				}
			}
		}
		return "" // unbalanced to end of string
	next:
	}
}
