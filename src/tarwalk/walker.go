// Package tarwalk lists a directory tree for archiving. It produces, for
// every directory, symlink and regular file under a root, the fields the
// archive writer needs: slash-normalized subpath, kind, size, permissions,
// owner ids, modification time and link target. The walker does not touch
// the archive format at all.
package tarwalk

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind classifies a walked filesystem object.
type Kind byte

const (
	KindDirectory Kind = iota + 1
	KindFile
	KindSymlink
)

// Entry describes one filesystem object under the walk root.
type Entry struct {
	Subpath    string // relative to the root, slash-separated
	Path       string // os path of the object itself
	Kind       Kind
	Size       int64
	Mode       int64 // permission bits only
	UID        int
	GID        int
	ModTime    time.Time
	LinkTarget string // symlinks only; empty when the target could not be read
}

type walker struct {
	root  string
	c     chan interface{}
	done  chan struct{}
	close int32
}

func (w *walker) closed() bool {
	return atomic.LoadInt32(&w.close) != 0
}

// exit signals the producer to stop. Closing done also releases a producer
// blocked on a full channel with no receiver left.
func (w *walker) exit() {
	if atomic.CompareAndSwapInt32(&w.close, 0, 1) {
		close(w.done)
	}
}

func newWalker(root string) *walker {
	return &walker{
		root: root,
		c:    make(chan interface{}, 10),
		done: make(chan struct{}),
	}
}

func (w *walker) closeChan() {
	if w.c != nil {
		close(w.c)
		w.c = nil
	}
}

func isRegular(fi os.FileInfo) bool {
	mode := fi.Mode()
	return mode & ^os.ModeType == mode
}

func isLink(fi os.FileInfo) bool {
	return fi.Mode()&os.ModeSymlink != 0
}

func (w *walker) subpath(name string) string {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return filepath.ToSlash(name)
	}
	return filepath.ToSlash(rel)
}

func (w *walker) sendEntry(name string, fi os.FileInfo, kind Kind) {
	if w.closed() {
		return
	}
	uid, gid := statOwner(fi)
	e := &Entry{
		Subpath: w.subpath(name),
		Path:    name,
		Kind:    kind,
		Mode:    int64(fi.Mode() & os.ModePerm),
		UID:     uid,
		GID:     gid,
		ModTime: fi.ModTime(),
	}
	switch kind {
	case KindFile:
		e.Size = fi.Size()
	case KindSymlink:
		if target, err := os.Readlink(name); err == nil {
			e.LinkTarget = target
		} else {
			logrus.WithField("path", name).WithError(err).Warn("cannot read link target")
		}
	}
	select {
	case w.c <- e:
	case <-w.done:
	}
}

func (w *walker) addDir(dir string, top bool) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	if !top {
		fi, err := d.Stat()
		if err != nil {
			return err
		}
		w.sendEntry(dir, fi, KindDirectory)
	}
DirLoop:
	for {
		if w.closed() {
			return nil
		}
		entries, _ := d.Readdir(10)
		if len(entries) == 0 {
			break DirLoop
		}
	EntryLoop:
		for _, e := range entries {
			if w.closed() {
				return nil
			}
			name := filepath.Join(dir, e.Name())
			switch {
			case e.IsDir():
				if err := w.addDir(name, false); err != nil {
					logrus.WithField("path", name).WithError(err).Warn("cannot list directory")
					continue EntryLoop
				}
			case isLink(e):
				w.sendEntry(name, e, KindSymlink)
			case isRegular(e):
				w.sendEntry(name, e, KindFile)
			}
		}
	}
	return nil
}

func walkToChan(root string) *walker {
	root = filepath.Clean(root)
	w := newWalker(root)
	go func() {
		defer w.closeChan()
		if err := w.addDir(root, true); err != nil {
			select {
			case w.c <- err:
			case <-w.done:
			}
		}
	}()
	return w
}

// Walk lists the tree under root in directory-before-children order and
// passes each entry to entryFunc. A non-nil return from entryFunc stops the
// walk and is returned as-is. The root directory itself is not reported;
// subpaths are relative to it.
func Walk(root string, entryFunc func(*Entry) error) error {
	w := walkToChan(root)
	for m := range w.c {
		switch n := m.(type) {
		case *Entry:
			if err := entryFunc(n); err != nil {
				w.exit()
				return err
			}
		case error:
			return n
		}
	}
	return nil
}

// Count returns the number of entries Walk would report for root. Used to
// size progress reporting before an archive write.
func Count(root string) (int64, error) {
	var n int64
	err := Walk(root, func(*Entry) error {
		n++
		return nil
	})
	return n, err
}

// NormalizeSubpath slash-normalizes an archive subpath: backslashes become
// slashes and leading "./" and surrounding slashes are dropped.
func NormalizeSubpath(subpath string) string {
	subpath = strings.ReplaceAll(subpath, "\\", "/")
	subpath = path.Clean("/" + subpath)
	return strings.TrimPrefix(subpath, "/")
}
