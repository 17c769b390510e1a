// Package calc answers math, conversion, and factual queries through
// the Wolfram Alpha LLM API, which returns plain text sized for
// conversational replies.
package calc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glowos/glowd/internal/buildinfo"
	"github.com/glowos/glowd/internal/capability"
	"github.com/glowos/glowd/internal/httpkit"
)

const defaultBaseURL = "https://www.wolframalpha.com/api/v1/llm-api"

// maxAnswerChars truncates runaway answers; the API normally stays
// well under this.
const maxAnswerChars = 2000

// Client queries the Wolfram Alpha LLM API.
type Client struct {
	baseURL    string
	appID      string
	httpClient *http.Client
}

// NewClient creates a Wolfram client.
func NewClient(appID string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		appID:   appID,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
		),
	}
}

// Query sends one input and returns the plain-text answer.
func (c *Client) Query(ctx context.Context, input string) (string, error) {
	if c.appID == "" {
		return "", fmt.Errorf("wolfram: app id not configured")
	}

	u := c.baseURL + "?" + url.Values{
		"appid": {c.appID},
		"input": {input},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("wolfram: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wolfram: request: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wolfram: %s", httpkit.StatusError(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerChars*4))
	if err != nil {
		return "", fmt.Errorf("wolfram: read response: %w", err)
	}

	answer := cleanAnswer(string(body))
	if answer == "" {
		return "", fmt.Errorf("wolfram: empty answer for %q", input)
	}
	return answer, nil
}

// cleanAnswer strips image URLs and boilerplate link lines the LLM API
// appends, then bounds the length.
func cleanAnswer(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "http") || strings.Contains(trimmed, "wolframalpha.com/input") {
			continue
		}
		lines = append(lines, trimmed)
	}
	answer := strings.Join(lines, "\n")
	if len(answer) > maxAnswerChars {
		answer = answer[:maxAnswerChars]
	}
	return answer
}

// Capability exposes the client through the tool interface.
type Capability struct {
	client *Client
}

// NewCapability wraps a Wolfram client as a registrable capability.
func NewCapability(client *Client) *Capability {
	return &Capability{client: client}
}

func (c *Capability) Name() string { return "calc" }

func (c *Capability) Intents() map[string]string {
	return map[string]string{
		"calculate": "Solve mathematical equations and calculations",
		"compute":   "Perform math, science, or factual computation",
		"solve":     "Solve problems in math, science, or engineering",
		"convert":   "Convert between units, currencies, or formats",
	}
}

func (c *Capability) Run(ctx context.Context, intent string, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	query := args.String("query")
	if query == "" {
		query = args.String("input")
	}
	if query == "" {
		return capability.Errorf("what should I calculate?"), nil
	}

	answer, err := c.client.Query(ctx, query)
	if err != nil {
		return capability.Result{}, err
	}
	return capability.ChatText(answer), nil
}
