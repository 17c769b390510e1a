package fileops

import (
	"os"
	"path/filepath"
	"testing"
)

func seedTree(t *testing.T) (string, *Ops) {
	t.Helper()
	root := t.TempDir()

	dirs := []string{
		"Desktop",
		"Desktop/Tax Documents",
		"Documents/projects",
		".cache/deep",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := []string{
		"Desktop/Tax Documents/return_2025.pdf",
		"Desktop/screenshot.png",
		"Documents/projects/taxonomy.md",
		"Documents/vacation_beach.jpg",
		"Documents/vacation_sunset.jpg",
		".cache/deep/tax_hidden.txt",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(root, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root, New([]string{root})
}

func TestSearchRanksExactAndPrefixFirst(t *testing.T) {
	_, ops := seedTree(t)

	matches, err := ops.Search("tax", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) < 2 {
		t.Fatalf("got %d matches, want several: %+v", len(matches), matches)
	}
	// "Tax Documents" (prefix) should outrank "taxonomy.md" is also a
	// prefix; both must appear before nothing. The hidden file must not.
	for _, m := range matches {
		if m.Name == "tax_hidden.txt" {
			t.Error("hidden directory contents leaked into results")
		}
	}
	if matches[0].Name != "Tax Documents" && matches[0].Name != "taxonomy.md" && matches[0].Name != "tax_hidden.txt" {
		t.Errorf("matches[0] = %q, want a prefix match first", matches[0].Name)
	}
}

func TestSearchStripsNoiseWords(t *testing.T) {
	_, ops := seedTree(t)

	matches, err := ops.Search("the tax folder", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("noise words prevented the match")
	}
}

func TestSearchLocationHint(t *testing.T) {
	_, ops := seedTree(t)

	matches, err := ops.Search("tax", "desktop")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, m := range matches {
		if filepath.Base(filepath.Dir(m.Path)) == "projects" {
			t.Errorf("hint ignored: %q found outside Desktop", m.Path)
		}
	}
	if len(matches) == 0 {
		t.Fatal("no matches under Desktop hint")
	}
}

func TestSearchEmptyAfterNormalization(t *testing.T) {
	_, ops := seedTree(t)
	if _, err := ops.Search("the my a an", ""); err == nil {
		t.Error("all-noise query succeeded")
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	root, ops := seedTree(t)

	if _, err := ops.Resolve("/etc/passwd"); err == nil {
		t.Error("absolute path outside roots resolved")
	}
	if _, err := ops.Resolve(filepath.Join(root, "..", "other")); err == nil {
		t.Error("dot-dot escape resolved")
	}
	if _, err := ops.Resolve(filepath.Join(root, "Desktop")); err != nil {
		t.Errorf("in-root path rejected: %v", err)
	}
}

func TestListSkipsHidden(t *testing.T) {
	root, ops := seedTree(t)

	entries, err := ops.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, e := range entries {
		if e.Name == ".cache" {
			t.Error("hidden entry listed")
		}
	}
	if len(entries) != 2 { // Desktop, Documents
		t.Errorf("got %d entries, want 2: %+v", len(entries), entries)
	}
}

func TestMove(t *testing.T) {
	root, ops := seedTree(t)

	src := filepath.Join(root, "Desktop", "screenshot.png")
	dst := filepath.Join(root, "Documents", "screenshot.png")
	if err := ops.Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("destination missing after move: %v", err)
	}

	// Destination now exists; a second move there must fail.
	other := filepath.Join(root, "Documents", "vacation_beach.jpg")
	if err := ops.Move(other, dst); err == nil {
		t.Error("move over existing file succeeded")
	}

	// Outside the roots.
	if err := ops.Move(dst, "/tmp/escaped.png"); err == nil {
		t.Error("move outside roots succeeded")
	}
}

func TestBulkRename(t *testing.T) {
	root, ops := seedTree(t)

	results, err := ops.BulkRename("vacation_*.jpg", "hawaii")
	if err != nil {
		t.Fatalf("BulkRename: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("renamed %d files, want 2", len(results))
	}

	want := []string{"hawaii_01.jpg", "hawaii_02.jpg"}
	for i, name := range want {
		path := filepath.Join(root, "Documents", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s after rename: %v", name, err)
		}
		if filepath.Base(results[i].To) != name {
			t.Errorf("results[%d].To = %q, want %q", i, results[i].To, name)
		}
	}
}

func TestBulkRenameNoMatches(t *testing.T) {
	_, ops := seedTree(t)
	if _, err := ops.BulkRename("*.nothing", "x"); err == nil {
		t.Error("rename with no matches succeeded")
	}
}

func TestInfo(t *testing.T) {
	root, ops := seedTree(t)

	m, err := ops.Info(filepath.Join(root, "Desktop", "screenshot.png"))
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if m.Type != "file" || m.Size != 1 {
		t.Errorf("info = %+v, want 1-byte file", m)
	}

	d, err := ops.Info(filepath.Join(root, "Desktop"))
	if err != nil {
		t.Fatalf("Info dir: %v", err)
	}
	if d.Type != "directory" {
		t.Errorf("info = %+v, want directory", d)
	}
}
