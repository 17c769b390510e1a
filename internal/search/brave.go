// Package search answers web search intents through the Brave Search
// API and can pull readable text out of a result page for follow-up
// questions.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/glowos/glowd/internal/buildinfo"
	"github.com/glowos/glowd/internal/httpkit"
)

const defaultBraveURL = "https://api.search.brave.com/res/v1/web/search"

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for one query.
type Options struct {
	// Count is the maximum number of results. Zero means the
	// provider default.
	Count int

	// Freshness restricts result age using Brave's codes
	// ("pd" past day, "pw" past week). Empty means no restriction.
	Freshness string

	// Language is an ISO 639-1 code ("en", "de").
	Language string
}

// Brave is a Brave Search API client.
type Brave struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBrave creates a Brave Search client.
func NewBrave(apiKey string) *Brave {
	return &Brave{
		baseURL: defaultBraveURL,
		apiKey:  apiKey,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15*time.Second),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
		),
	}
}

// Configured reports whether an API key is set.
func (b *Brave) Configured() bool { return b.apiKey != "" }

type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Search executes one query and returns results in the API's order.
func (b *Brave) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("brave: api key not configured")
	}

	count := opts.Count
	if count == 0 {
		count = 8
	}

	params := url.Values{
		"q":                {query},
		"count":            {strconv.Itoa(count)},
		"text_decorations": {"false"},
	}
	if opts.Freshness != "" {
		params.Set("freshness", opts.Freshness)
	}
	if opts.Language != "" {
		params.Set("search_lang", opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: request: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: %s", httpkit.StatusError(resp))
	}

	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]Result, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
	}
	return results, nil
}
