package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Widget Review</title><style>body { color: red }</style></head>
<body>
<nav>Home | About | Contact</nav>
<script>trackVisit();</script>
<article>
<h1>The Best Widgets of 2026</h1>
<p>We tested   twelve widgets over three months.</p>
<p>The clear winner was the Acme Mark IV.</p>
</article>
<footer>Copyright 2026</footer>
</body>
</html>`

func TestExtractReadable(t *testing.T) {
	title, text := extractReadable(samplePage)

	if title != "Widget Review" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		"The Best Widgets of 2026",
		"We tested twelve widgets over three months.",
		"Acme Mark IV",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	for _, reject := range []string{"trackVisit", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(text, reject) {
			t.Errorf("text contains chrome %q:\n%s", reject, text)
		}
	}
}

func TestExtractReadableCollapsesBlankLines(t *testing.T) {
	_, text := extractReadable("<div><p>one</p><div></div><div></div><p>two</p></div>")
	if strings.Contains(text, "\n\n\n") {
		t.Errorf("text has runs of blank lines:\n%q", text)
	}
}

func TestReadPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, samplePage)
	}))
	defer srv.Close()

	b := NewBrave("key")
	page, err := b.ReadPage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if page.Title != "Widget Review" {
		t.Errorf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "Acme Mark IV") {
		t.Errorf("text = %q", page.Text)
	}
	if page.URL != srv.URL {
		t.Errorf("url = %q", page.URL)
	}
}

func TestReadPageTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body><p>")
		io.WriteString(w, strings.Repeat("word ", maxPageChars))
		io.WriteString(w, "</p></body></html>")
	}))
	defer srv.Close()

	b := NewBrave("key")
	page, err := b.ReadPage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if len(page.Text) > maxPageChars {
		t.Errorf("text length = %d, want <= %d", len(page.Text), maxPageChars)
	}
}

func TestReadPageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := NewBrave("key")
	if _, err := b.ReadPage(context.Background(), srv.URL); err == nil {
		t.Error("ReadPage against 404 succeeded")
	}
}
