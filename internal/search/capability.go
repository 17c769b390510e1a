package search

import (
	"context"
	"fmt"

	"github.com/glowos/glowd/internal/capability"
)

// maxSources caps how many hits go back to the caller.
const maxSources = 6

// reliableSites narrows fact-check queries to primary sources.
const reliableSites = "(site:.edu OR site:.gov OR site:reuters.com OR site:apnews.com OR site:bbc.com)"

// Capability exposes web search through the tool interface.
type Capability struct {
	client *Brave
}

// NewCapability wraps a Brave client as a registrable capability.
func NewCapability(client *Brave) *Capability {
	return &Capability{client: client}
}

func (c *Capability) Name() string { return "search" }

func (c *Capability) Intents() map[string]string {
	return map[string]string{
		"search":     "Search the web for information",
		"news":       "Search for recent news articles",
		"research":   "Deep research on a topic with multiple sources",
		"fact_check": "Verify facts against reliable sources",
		"read_page":  "Fetch a web page and return its readable text",
	}
}

// resultsPayload is the structured body for web search results.
type resultsPayload struct {
	Query   string   `json:"query"`
	Heading string   `json:"heading"`
	Results []Result `json:"results"`
}

func (c *Capability) Run(ctx context.Context, intent string, args capability.Args, sink capability.ProgressSink) (capability.Result, error) {
	if !c.client.Configured() {
		return capability.Errorf("Web search isn't set up. Add a Brave Search API key to the config."), nil
	}

	if intent == "read_page" {
		pageURL := args.String("url")
		if pageURL == "" {
			return capability.Errorf("which page should I read?"), nil
		}
		page, err := c.client.ReadPage(ctx, pageURL)
		if err != nil {
			return capability.Result{}, err
		}
		return capability.StructuredMedia("web_page", page), nil
	}

	query := args.String("query")
	if query == "" {
		return capability.Errorf("what should I search for?"), nil
	}

	heading := "Search Results"
	opts := Options{}
	switch intent {
	case "news":
		heading = "Latest News"
		opts.Freshness = "pd"
	case "research":
		heading = "Research Summary"
	case "fact_check":
		heading = "Fact Check Results"
		query = fmt.Sprintf("%s %s", query, reliableSites)
	}

	results, err := c.client.Search(ctx, query, opts)
	if err != nil {
		return capability.Result{}, err
	}
	if len(results) == 0 {
		return capability.ChatText("I couldn't find any results for that query."), nil
	}
	if len(results) > maxSources {
		results = results[:maxSources]
	}

	return capability.StructuredMedia("web_search", resultsPayload{
		Query:   args.String("query"),
		Heading: heading,
		Results: results,
	}), nil
}
