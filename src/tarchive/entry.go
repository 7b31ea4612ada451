package tarchive

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

// Entry is one node of an indexed archive tree. Directory entries own their
// children in insertion order; file entries carry either resident content or
// a lazy descriptor pointing back into the archive. Entries are not safe for
// concurrent use.
type Entry struct {
	Name       string // last path component
	Subpath    string // slash-normalized, relative to the indexed root
	Type       tarfmt.EntryType
	ModTime    time.Time
	Size       int64
	LinkTarget string
	Mode       int64

	children   []*Entry
	childIndex map[string]*Entry

	content entryContent
}

// entryContent is the Resident-or-Lazy variant. A lazy descriptor holds the
// archive path and byte offset needed to re-open the archive on first
// access; the resolved bytes are then cached for the entry's lifetime.
type entryContent struct {
	resident    []byte
	loaded      bool
	archivePath string
	offset      int64
	size        int64
}

// IsDir reports whether e is a directory entry.
func (e *Entry) IsDir() bool {
	return e.Type == tarfmt.TypeDirectory
}

// Children returns e's direct children in insertion order.
func (e *Entry) Children() []*Entry {
	return e.children
}

func (e *Entry) addChild(c *Entry) {
	if e.childIndex == nil {
		e.childIndex = make(map[string]*Entry)
	}
	e.children = append(e.children, c)
	e.childIndex[strings.ToLower(c.Name)] = c
}

// Child looks up a direct child by name, case-insensitively. It returns nil
// when no child matches.
func (e *Entry) Child(name string) *Entry {
	if e.childIndex == nil {
		return nil
	}
	return e.childIndex[strings.ToLower(name)]
}

// Descendant walks subpath one component at a time through Child, returning
// nil the moment any component is unmatched.
func (e *Entry) Descendant(subpath string) *Entry {
	cur := e
	for _, part := range strings.Split(subpath, "/") {
		if part == "" {
			continue
		}
		if cur = cur.Child(part); cur == nil {
			return nil
		}
	}
	return cur
}

// Descendants returns the subtree below e flattened in pre-order: each child
// followed immediately by its own descendants, siblings in insertion order.
func (e *Entry) Descendants() []*Entry {
	var out []*Entry
	for _, c := range e.children {
		out = append(out, c)
		out = append(out, c.Descendants()...)
	}
	return out
}

func (e *Entry) setResident(data []byte) {
	e.content.resident = data
	e.content.loaded = true
}

func (e *Entry) setLazy(archivePath string, offset, size int64) {
	e.content.archivePath = archivePath
	e.content.offset = offset
	e.content.size = size
}

// Content returns the entry's file bytes. Lazy entries re-open the archive,
// seek to the recorded offset and read exactly the recorded length; the
// result is cached so the archive is touched at most once per entry.
func (e *Entry) Content() ([]byte, error) {
	if e.content.loaded {
		return e.content.resident, nil
	}
	if e.content.archivePath == "" {
		return nil, nil
	}
	f, err := os.Open(e.content.archivePath)
	if err != nil {
		return nil, errors.Wrap(ErrArchiveSourceMissing, e.content.archivePath)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(e.content.offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "seek %d: %v", e.content.offset, err)
	}
	data := make([]byte, e.content.size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "short content read for %q: %v", e.Subpath, err)
	}
	e.setResident(data)
	return data, nil
}

func newEntry(se *ScanEntry, subpath string) *Entry {
	name := subpath
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return &Entry{
		Name:       name,
		Subpath:    subpath,
		Type:       se.Type,
		ModTime:    se.ModTime,
		Size:       se.Size,
		LinkTarget: se.LinkTarget,
		Mode:       se.Mode,
	}
}
