package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/glowos/glowd/internal/httpkit"
)

// maxPageBytes bounds how much of a result page gets downloaded.
const maxPageBytes = 2 << 20

// maxPageChars bounds the extracted text handed back to the caller.
const maxPageChars = 8000

// Page is the readable content of one fetched web page.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// ReadPage downloads a result page and extracts its readable text.
func (b *Brave) ReadPage(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("read page: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("read page: request: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("read page: %s", httpkit.StatusError(resp))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read page: read body: %w", err)
	}

	title, text := extractReadable(string(raw))
	if len(text) > maxPageChars {
		text = text[:maxPageChars]
	}
	return Page{URL: pageURL, Title: title, Text: text}, nil
}

// chrome elements carry navigation and scripting, not article text.
var chromeElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Aside:    true,
}

// extractReadable parses HTML and returns the page title and its
// visible text with chrome stripped and whitespace normalized.
func extractReadable(raw string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", collapseWhitespace(stripAllTags(raw))
	}

	var b strings.Builder
	collectText(doc, &b)
	return pageTitle(doc), collapseWhitespace(b.String())
}

func pageTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := pageTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		if chromeElements[n.DataAtom] {
			return
		}
		if blockElement(n.DataAtom) && b.Len() > 0 {
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li) {
		b.WriteString("\n")
	}
}

func blockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table,
		atom.Tr, atom.Dl, atom.Figure, atom.Hr:
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	var cleaned []string
	prevEmpty := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// stripAllTags is the fallback for pages the parser rejects.
func stripAllTags(s string) string {
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		if tt == html.TextToken {
			b.WriteString(tok.Token().Data)
			b.WriteString(" ")
		}
	}
}
