package calc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glowos/glowd/internal/capability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-appid")
	c.baseURL = srv.URL
	return c
}

func TestQuery(t *testing.T) {
	var gotAppID, gotInput string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAppID = r.URL.Query().Get("appid")
		gotInput = r.URL.Query().Get("input")
		io.WriteString(w, "2 + 2 = 4")
	})

	answer, err := c.Query(context.Background(), "2+2")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "2 + 2 = 4" {
		t.Errorf("answer = %q", answer)
	}
	if gotAppID != "test-appid" || gotInput != "2+2" {
		t.Errorf("params = (%q, %q), want appid and input", gotAppID, gotInput)
	}
}

func TestQueryStripsLinkLines(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Result: 42\n\nhttps://public.wolframcloud.com/img.png\nWolfram|Alpha website result for \"x\":\nhttps://www.wolframalpha.com/input?i=x\n")
	})

	answer, err := c.Query(context.Background(), "x")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "Result: 42\nWolfram|Alpha website result for \"x\":" {
		t.Errorf("answer = %q, want link lines stripped", answer)
	}
}

func TestQueryServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid appid", http.StatusForbidden)
	})

	if _, err := c.Query(context.Background(), "2+2"); err == nil {
		t.Error("Query against 403 server succeeded")
	}
}

func TestQueryRequiresAppID(t *testing.T) {
	c := NewClient("")
	if _, err := c.Query(context.Background(), "2+2"); err == nil {
		t.Error("Query without app id succeeded")
	}
}

func TestCapabilityRun(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "373.15 kelvins")
	})
	cap := NewCapability(c)

	res, err := cap.Run(context.Background(), "convert",
		capability.Args{"query": "100 C in K"}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != capability.KindChatText || res.Text != "373.15 kelvins" {
		t.Errorf("result = %+v, want chat text answer", res)
	}

	res, err = cap.Run(context.Background(), "calculate", capability.Args{}, capability.DiscardProgress)
	if err != nil {
		t.Fatalf("Run empty: %v", err)
	}
	if res.Kind != capability.KindError {
		t.Errorf("result = %+v, want error for empty query", res)
	}
}
