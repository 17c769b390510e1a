package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glowos/glowd/internal/capability"
)

const braveJSON = `{
  "web": {
    "results": [
      {"title": "Go Blog", "url": "https://go.dev/blog", "description": "News from the Go project"},
      {"title": "Go Spec", "url": "https://go.dev/ref/spec", "description": "The Go language specification"}
    ]
  }
}`

func newTestBrave(t *testing.T, handler http.HandlerFunc) *Brave {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	b := NewBrave("test-key")
	b.baseURL = srv.URL
	return b
}

func TestSearch(t *testing.T) {
	var gotToken, gotQuery, gotCount string
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Subscription-Token")
		gotQuery = r.URL.Query().Get("q")
		gotCount = r.URL.Query().Get("count")
		io.WriteString(w, braveJSON)
	})

	results, err := b.Search(context.Background(), "golang", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotToken != "test-key" {
		t.Errorf("token header = %q", gotToken)
	}
	if gotQuery != "golang" || gotCount != "8" {
		t.Errorf("query params = (%q, %q)", gotQuery, gotCount)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Title != "Go Blog" || results[0].Snippet != "News from the Go project" {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestSearchFreshness(t *testing.T) {
	var gotFreshness string
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		gotFreshness = r.URL.Query().Get("freshness")
		io.WriteString(w, braveJSON)
	})

	if _, err := b.Search(context.Background(), "news", Options{Freshness: "pd"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotFreshness != "pd" {
		t.Errorf("freshness = %q, want pd", gotFreshness)
	}
}

func TestSearchHTTPError(t *testing.T) {
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := b.Search(context.Background(), "golang", Options{}); err == nil {
		t.Error("Search against 429 server succeeded")
	}
}

func TestSearchRequiresKey(t *testing.T) {
	b := NewBrave("")
	if _, err := b.Search(context.Background(), "golang", Options{}); err == nil {
		t.Error("Search without api key succeeded")
	}
}

func TestCapabilitySearch(t *testing.T) {
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, braveJSON)
	})
	cap := NewCapability(b)

	res, err := cap.Run(context.Background(), "search",
		capability.Args{"query": "golang"}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != capability.KindStructuredMedia || res.Media != "web_search" {
		t.Fatalf("result = %+v, want web_search media", res)
	}
	payload := res.Payload.(resultsPayload)
	if payload.Heading != "Search Results" || len(payload.Results) != 2 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCapabilityNewsHeading(t *testing.T) {
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, braveJSON)
	})

	res, err := NewCapability(b).Run(context.Background(), "news",
		capability.Args{"query": "space"}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Payload.(resultsPayload).Heading != "Latest News" {
		t.Errorf("heading = %q", res.Payload.(resultsPayload).Heading)
	}
}

func TestCapabilityFactCheckNarrowsQuery(t *testing.T) {
	var gotQuery string
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		io.WriteString(w, braveJSON)
	})

	if _, err := NewCapability(b).Run(context.Background(), "fact_check",
		capability.Args{"query": "moon landing"}, capability.DiscardProgress); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(gotQuery, "moon landing") || !strings.Contains(gotQuery, "site:.gov") {
		t.Errorf("query = %q, want site restrictions appended", gotQuery)
	}
}

func TestCapabilityEmptyResults(t *testing.T) {
	b := newTestBrave(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"web":{"results":[]}}`)
	})

	res, err := NewCapability(b).Run(context.Background(), "search",
		capability.Args{"query": "xyzzy"}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != capability.KindChatText {
		t.Errorf("result = %+v, want chat text for zero results", res)
	}
}

func TestCapabilityUnconfigured(t *testing.T) {
	res, err := NewCapability(NewBrave("")).Run(context.Background(), "search",
		capability.Args{"query": "golang"}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != capability.KindError {
		t.Errorf("result = %+v, want error when unconfigured", res)
	}
}
