// Package fileops searches, lists, renames, and moves files within a
// configured set of root directories. Every operation resolves its
// target against the roots first; paths that escape them are rejected
// before any filesystem call.
package fileops

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// maxSearchDepth bounds recursion below each root so a search never
// crawls an entire mounted volume.
const maxSearchDepth = 10

// maxMatches caps how many hits a search collects before stopping.
const maxMatches = 50

// maxResults is how many hits are returned after ranking.
const maxResults = 20

// Ops performs filesystem operations scoped to its roots.
type Ops struct {
	roots []string
}

// New creates an Ops over the given root directories. Roots that do
// not exist are kept; they simply yield no results until they appear
// (a mounted volume coming and going should not require a restart).
func New(roots []string) *Ops {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}
	return &Ops{roots: cleaned}
}

// Roots returns the configured root directories.
func (o *Ops) Roots() []string {
	out := make([]string, len(o.roots))
	copy(out, o.roots)
	return out
}

// Match is one search hit.
type Match struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Type     string    `json:"type"` // "file" or "directory"
	Size     int64     `json:"size,omitempty"`
	Modified time.Time `json:"modified"`
}

// noiseWordRe strips filler words that leak into search queries from
// natural phrasing ("the tax folder").
var noiseWordRe = regexp.MustCompile(`(?i)\b(folder|file|on|the|my|a|an)\b`)

// Search finds files and directories whose name contains the query,
// case-insensitive. locationHint narrows the search to roots (or
// first-level subdirectories of roots) whose name contains the hint.
// Results are ranked: exact name match, then prefix, then substring.
func (o *Ops) Search(query, locationHint string) ([]Match, error) {
	normalized := strings.TrimSpace(noiseWordRe.ReplaceAllString(query, ""))
	normalized = strings.Join(strings.Fields(normalized), " ")
	if normalized == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	lowered := strings.ToLower(normalized)

	dirs := o.searchDirs(locationHint)
	if len(dirs) == 0 {
		return nil, fmt.Errorf("search: no matching location for hint %q", locationHint)
	}

	var matches []Match
	for _, dir := range dirs {
		walkLimited(dir, maxSearchDepth, func(path string, d fs.DirEntry) bool {
			if !strings.Contains(strings.ToLower(d.Name()), lowered) {
				return len(matches) < maxMatches
			}
			m := Match{Name: d.Name(), Path: path, Type: "file"}
			if d.IsDir() {
				m.Type = "directory"
			}
			if info, err := d.Info(); err == nil {
				m.Modified = info.ModTime()
				if !d.IsDir() {
					m.Size = info.Size()
				}
			}
			matches = append(matches, m)
			return len(matches) < maxMatches
		})
		if len(matches) >= maxMatches {
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return relevance(matches[i].Name, lowered) > relevance(matches[j].Name, lowered)
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// searchDirs picks the directories to search for a location hint. An
// empty hint searches every root; an absolute hint must resolve inside
// a root; otherwise the hint matches root names and their first-level
// subdirectories.
func (o *Ops) searchDirs(hint string) []string {
	if hint == "" {
		return o.existingRoots()
	}

	if filepath.IsAbs(hint) {
		if p, err := o.Resolve(hint); err == nil {
			if info, statErr := os.Stat(p); statErr == nil && info.IsDir() {
				return []string{p}
			}
		}
		return nil
	}

	lowered := strings.ToLower(hint)
	var dirs []string
	for _, root := range o.existingRoots() {
		if strings.Contains(strings.ToLower(filepath.Base(root)), lowered) {
			dirs = append(dirs, root)
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && strings.Contains(strings.ToLower(e.Name()), lowered) {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}
	return dirs
}

func (o *Ops) existingRoots() []string {
	var out []string
	for _, r := range o.roots {
		if info, err := os.Stat(r); err == nil && info.IsDir() {
			out = append(out, r)
		}
	}
	return out
}

// Resolve cleans a path and verifies it lies inside one of the roots.
func (o *Ops) Resolve(path string) (string, error) {
	cleaned := filepath.Clean(path)
	for _, root := range o.roots {
		if cleaned == root || strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
			return cleaned, nil
		}
	}
	return "", fmt.Errorf("path %q is outside the allowed directories", path)
}

// List returns the entries of a directory inside the roots. Hidden
// entries are skipped.
func (o *Ops) List(dir string) ([]Match, error) {
	resolved, err := o.Resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var out []Match
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		m := Match{Name: e.Name(), Path: filepath.Join(resolved, e.Name()), Type: "file"}
		if e.IsDir() {
			m.Type = "directory"
		}
		if info, err := e.Info(); err == nil {
			m.Modified = info.ModTime()
			if !e.IsDir() {
				m.Size = info.Size()
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// Move relocates a file or directory; both ends must be inside the
// roots and the destination must not already exist.
func (o *Ops) Move(src, dst string) error {
	srcPath, err := o.Resolve(src)
	if err != nil {
		return err
	}
	dstPath, err := o.Resolve(dst)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dstPath); err == nil {
		return fmt.Errorf("move: %s already exists", dst)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// Info stats a path inside the roots.
func (o *Ops) Info(path string) (Match, error) {
	resolved, err := o.Resolve(path)
	if err != nil {
		return Match{}, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Match{}, fmt.Errorf("stat %s: %w", path, err)
	}
	m := Match{Name: info.Name(), Path: resolved, Type: "file", Modified: info.ModTime()}
	if info.IsDir() {
		m.Type = "directory"
	} else {
		m.Size = info.Size()
	}
	return m, nil
}

// RenameResult reports one rename performed by BulkRename.
type RenameResult struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BulkRename renames every file matching pattern (a glob over file
// names, searched across the roots) to replacement plus a sequence
// number, keeping each file's extension. "vacation*.jpg" renamed to
// "hawaii" yields hawaii_01.jpg, hawaii_02.jpg, ... in name order.
func (o *Ops) BulkRename(pattern, replacement string) ([]RenameResult, error) {
	if pattern == "" || replacement == "" {
		return nil, fmt.Errorf("bulk rename: pattern and replacement are required")
	}

	var paths []string
	for _, root := range o.existingRoots() {
		walkLimited(root, maxSearchDepth, func(path string, d fs.DirEntry) bool {
			if d.IsDir() {
				return true
			}
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				paths = append(paths, path)
			}
			return true
		})
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("bulk rename: no files match %q", pattern)
	}
	sort.Strings(paths)

	results := make([]RenameResult, 0, len(paths))
	for i, path := range paths {
		ext := filepath.Ext(path)
		newName := fmt.Sprintf("%s_%02d%s", replacement, i+1, ext)
		newPath := filepath.Join(filepath.Dir(path), newName)
		if err := os.Rename(path, newPath); err != nil {
			return results, fmt.Errorf("bulk rename %s: %w", filepath.Base(path), err)
		}
		results = append(results, RenameResult{From: path, To: newPath})
	}
	return results, nil
}

// walkLimited walks dir to a bounded depth, skipping hidden
// directories and swallowing permission errors. fn returns false to
// stop the walk.
func walkLimited(dir string, maxDepth int, fn func(path string, d fs.DirEntry) bool) {
	base := strings.Count(dir, string(filepath.Separator))
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && strings.Count(path, string(filepath.Separator))-base >= maxDepth {
			return filepath.SkipDir
		}
		if !fn(path, d) {
			return filepath.SkipAll
		}
		return nil
	})
}

// relevance scores a name against a lowered query: exact match beats
// prefix beats substring.
func relevance(name, lowered string) int {
	n := strings.ToLower(name)
	switch {
	case n == lowered:
		return 200
	case strings.HasPrefix(n, lowered):
		return 100
	case strings.Contains(n, lowered):
		return 50
	default:
		return 0
	}
}
