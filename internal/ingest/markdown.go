// Package ingest splits markdown knowledge files into keyed chunks for
// the knowledge-base pipeline. Each heading opens a new chunk whose key
// is the slash-joined slug path of the headings above it.
package ingest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chunk is one semantic unit of a knowledge file.
type Chunk struct {
	Key     string `json:"key"`
	Section string `json:"section,omitempty"`
	Content string `json:"content"`
}

// ParseFile reads a markdown file and splits it into chunks.
func ParseFile(path string) ([]Chunk, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	return Parse(src), nil
}

// Parse splits markdown source into heading-keyed chunks. Content
// before the first heading is dropped.
func Parse(src []byte) []Chunk {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var chunks []Chunk
	var headings [6]string
	var key, section string
	var content strings.Builder

	flush := func() {
		body := strings.TrimSpace(content.String())
		if key != "" && body != "" {
			chunks = append(chunks, Chunk{Key: key, Section: section, Content: body})
		}
		content.Reset()
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			level := h.Level
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			headings[level-1] = headingText(h, src)
			for i := level; i < len(headings); i++ {
				headings[i] = ""
			}
			key = headingKey(headings[:level])
			section = headings[0]
			continue
		}
		if t := nodeText(n, src); t != "" {
			if content.Len() > 0 {
				content.WriteString("\n\n")
			}
			content.WriteString(t)
		}
	}
	flush()

	return chunks
}

func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		} else {
			b.WriteString(nodeText(c, src))
		}
	}
	return strings.TrimSpace(b.String())
}

// nodeText reconstructs the raw source lines under a block node,
// descending into containers like lists and blockquotes.
func nodeText(n ast.Node, src []byte) string {
	if lines := n.Lines(); lines != nil && lines.Len() > 0 {
		var b strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := nodeText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// headingKey joins heading slugs into a path like "setup/plex/token".
func headingKey(headings []string) string {
	var parts []string
	for _, h := range headings {
		if s := slugify(h); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
