package tarchive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

// writeFixtureArchive lays down the archive
// ["a/", "a/x.txt", "a/b/", "a/b/y.txt", "c.txt"] used by the lookup tests.
func writeFixtureArchive(t *testing.T) string {
	t.Helper()
	mtime := time.Unix(1700000000, 0)
	buf := new(bytes.Buffer)
	tw := NewWriter(buf)
	steps := []func() error{
		func() error { return tw.AddDirectory("a", 0o755, mtime) },
		func() error { return tw.AddFile("a/x.txt", 0o644, mtime, 5, strings.NewReader("xdata")) },
		func() error { return tw.AddDirectory("a/b", 0o755, mtime) },
		func() error { return tw.AddFile("a/b/y.txt", 0o644, mtime, 5, strings.NewReader("ydata")) },
		func() error { return tw.AddFile("c.txt", 0o644, mtime, 5, strings.NewReader("cdata")) },
		tw.Close,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("fixture: %s", err)
		}
	}
	name := filepath.Join(t.TempDir(), "fixture.tar")
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("fixture write: %s", err)
	}
	return name
}

func subpaths(entries []*Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Subpath)
	}
	return out
}

func TestLoadAllEntries(t *testing.T) {
	archive := writeFixtureArchive(t)
	roots, err := LoadAllEntries(archive)
	if err != nil {
		t.Fatalf("LoadAllEntries: %s", err)
	}
	if got := subpaths(roots); len(got) != 2 || got[0] != "a" || got[1] != "c.txt" {
		t.Fatalf("roots: %v", got)
	}
	a := roots[0]
	if !a.IsDir() {
		t.Fatal("a is not a directory")
	}
	got := subpaths(a.Descendants())
	want := []string{"a/x.txt", "a/b", "a/b/y.txt"}
	if len(got) != len(want) {
		t.Fatalf("descendants: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("descendant %d: got %q, want %q", i, got[i], want[i])
		}
	}
	y := a.Descendant("b/y.txt")
	if y == nil {
		t.Fatal("Descendant(b/y.txt): absent")
	}
	data, err := y.Content()
	if err != nil {
		t.Fatalf("Content: %s", err)
	}
	if string(data) != "ydata" {
		t.Errorf("lazy content: %q", data)
	}
}

func TestLoadAllEntriesResident(t *testing.T) {
	archive := writeFixtureArchive(t)
	roots, err := LoadAllEntries(archive, WithResidentContent)
	if err != nil {
		t.Fatalf("LoadAllEntries: %s", err)
	}
	// The archive may disappear once resident content is loaded.
	if err := os.Remove(archive); err != nil {
		t.Fatal(err)
	}
	c := roots[1]
	data, err := c.Content()
	if err != nil {
		t.Fatalf("Content: %s", err)
	}
	if string(data) != "cdata" {
		t.Errorf("resident content: %q", data)
	}
}

func TestLazyContentCached(t *testing.T) {
	archive := writeFixtureArchive(t)
	roots, err := LoadAllEntries(archive)
	if err != nil {
		t.Fatalf("LoadAllEntries: %s", err)
	}
	c := roots[1]
	if _, err := c.Content(); err != nil {
		t.Fatalf("first Content: %s", err)
	}
	// A second access must come from the cache, not the archive.
	if err := os.Remove(archive); err != nil {
		t.Fatal(err)
	}
	data, err := c.Content()
	if err != nil {
		t.Fatalf("cached Content: %s", err)
	}
	if string(data) != "cdata" {
		t.Errorf("cached content: %q", data)
	}
}

func TestEntryAtSubpathDirectory(t *testing.T) {
	archive := writeFixtureArchive(t)
	a, err := EntryAtSubpath(archive, "a")
	if err != nil {
		t.Fatalf("EntryAtSubpath: %s", err)
	}
	if a == nil || !a.IsDir() {
		t.Fatalf("match: %+v", a)
	}
	got := subpaths(a.Descendants())
	want := []string{"x.txt", "b", "b/y.txt"}
	if len(got) != len(want) {
		t.Fatalf("descendants: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("descendant %d: got %q, want %q", i, got[i], want[i])
		}
	}
	x := a.Child("X.TXT") // lookups are case-insensitive
	if x == nil {
		t.Fatal("Child(X.TXT): absent")
	}
	data, err := x.Content()
	if err != nil || string(data) != "xdata" {
		t.Errorf("content: %q, %v", data, err)
	}
}

func TestEntryAtSubpathFile(t *testing.T) {
	archive := writeFixtureArchive(t)
	c, err := EntryAtSubpath(archive, "c.txt")
	if err != nil {
		t.Fatalf("EntryAtSubpath: %s", err)
	}
	if c == nil || c.Type != tarfmt.TypeNormalFile {
		t.Fatalf("match: %+v", c)
	}
	if len(c.Descendants()) != 0 {
		t.Error("file entry must have no descendants")
	}
}

func TestEntryAtSubpathMissing(t *testing.T) {
	archive := writeFixtureArchive(t)
	e, err := EntryAtSubpath(archive, "missing")
	if err != nil {
		t.Fatalf("EntryAtSubpath: %s", err)
	}
	if e != nil {
		t.Errorf("expected absent, got %+v", e)
	}
}

func TestOpenScannerMissing(t *testing.T) {
	_, err := OpenScanner(filepath.Join(t.TempDir(), "nope.tar"))
	if !errors.Is(err, ErrArchiveSourceMissing) {
		t.Errorf("missing archive: got %v", err)
	}
}
