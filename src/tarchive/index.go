package tarchive

import (
	"strings"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
	"github.com/aurora-is-near/tarkit/src/tarwalk"
)

func parentSubpath(subpath string) string {
	if i := strings.LastIndexByte(subpath, '/'); i >= 0 {
		return subpath[:i]
	}
	return ""
}

// LoadAllEntries indexes the whole archive into an entry tree and returns
// the root-level entries in archive order. File content is left lazy unless
// WithResidentContent is given: a lazy entry records only the archive path
// and byte range and resolves (then caches) its bytes on first access.
//
// Parent linkage is derived from subpaths: an entry whose parent directory
// is not (yet) in the index is attached at the root, mirroring archives that
// omit directory entries.
func LoadAllEntries(archivePath string, options ...Option) ([]*Entry, error) {
	cfg := newConfig(options...)
	s, err := OpenScanner(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()
	s.Progress = cfg.progress

	var roots []*Entry
	bySubpath := make(map[string]*Entry)
	err = s.Scan(func(se *ScanEntry) (bool, error) {
		e := newEntry(se, se.Subpath)
		if se.Type == tarfmt.TypeNormalFile {
			if cfg.residentContent {
				data, err := s.readContentAt(se.Offset, se.Size)
				if err != nil {
					return false, err
				}
				e.setResident(data)
			} else {
				e.setLazy(archivePath, se.Offset, se.Size)
			}
		}
		if parent := bySubpath[strings.ToLower(parentSubpath(se.Subpath))]; parent != nil && parent.IsDir() {
			parent.addChild(e)
		} else {
			roots = append(roots, e)
		}
		bySubpath[strings.ToLower(se.Subpath)] = e
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}

// EntryAtSubpath scans for the entry at subpath, matching names
// case-insensitively. A matched file returns immediately; a matched
// directory keeps scanning to collect its descendants (whose Subpath fields
// are then relative to the match) and stops at the first entry outside the
// subtree, since valid archives group a directory with its descendants. A
// missing subpath returns (nil, nil).
func EntryAtSubpath(archivePath, subpath string, options ...Option) (*Entry, error) {
	cfg := newConfig(options...)
	target := tarwalk.NormalizeSubpath(subpath)
	if target == "" {
		return nil, nil
	}
	s, err := OpenScanner(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()
	s.Progress = cfg.progress

	var match *Entry
	var matchFull string // matched directory's subpath as spelled in the archive
	bySubpath := make(map[string]*Entry)

	setContent := func(e *Entry, se *ScanEntry) error {
		if se.Type != tarfmt.TypeNormalFile {
			return nil
		}
		if cfg.residentContent {
			data, err := s.readContentAt(se.Offset, se.Size)
			if err != nil {
				return err
			}
			e.setResident(data)
			return nil
		}
		e.setLazy(archivePath, se.Offset, se.Size)
		return nil
	}

	err = s.Scan(func(se *ScanEntry) (bool, error) {
		if match == nil {
			if !strings.EqualFold(se.Subpath, target) {
				return false, nil
			}
			e := newEntry(se, se.Subpath)
			if err := setContent(e, se); err != nil {
				return false, err
			}
			match = e
			if !e.IsDir() {
				// No descendants possible.
				return true, nil
			}
			matchFull = se.Subpath
			bySubpath[strings.ToLower(se.Subpath)] = e
			return false, nil
		}
		if !strings.HasPrefix(strings.ToLower(se.Subpath), strings.ToLower(matchFull)+"/") {
			// First sibling of the matched subtree ends the collection.
			return true, nil
		}
		e := newEntry(se, se.Subpath[len(matchFull)+1:])
		if err := setContent(e, se); err != nil {
			return false, err
		}
		if parent := bySubpath[strings.ToLower(parentSubpath(se.Subpath))]; parent != nil && parent.IsDir() {
			parent.addChild(e)
		} else {
			match.addChild(e)
		}
		bySubpath[strings.ToLower(se.Subpath)] = e
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}
