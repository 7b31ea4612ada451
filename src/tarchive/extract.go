package tarchive

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

// Extract materializes the archive at archivePath under dest. Directory
// entries precede their children in valid archives, but parent directories
// are created implicitly anyway. Only files, directories and symlinks are
// materialized. On any propagated failure a destination directory created by
// this call is removed entirely; a partially extracted tree never survives
// as a successful-looking result.
func Extract(archivePath, dest string, options ...Option) error {
	cfg := newConfig(options...)
	s, err := OpenScanner(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	s.Progress = cfg.progress

	createdDest := false
	if _, err := os.Lstat(dest); os.IsNotExist(err) {
		createdDest = true
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	chunk := make([]byte, cfg.chunkSize)
	err = s.Scan(func(e *ScanEntry) (bool, error) {
		return false, materialize(s, e, dest, cfg, chunk)
	})
	if err != nil {
		if createdDest {
			_ = os.RemoveAll(dest)
		}
		return err
	}
	return nil
}

func materialize(s *Scanner, e *ScanEntry, dest string, cfg *activeConfig, chunk []byte) error {
	if e.Subpath == "" {
		return nil
	}
	target := filepath.Join(dest, filepath.FromSlash(e.Subpath))
	switch e.Type {
	case tarfmt.TypeDirectory:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return err
		}
	case tarfmt.TypeSymbolicLink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		_ = os.Remove(target)
		if err := os.Symlink(e.LinkTarget, target); err != nil {
			return err
		}
	case tarfmt.TypeNormalFile:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeFileContent(s, e, target, chunk); err != nil {
			return err
		}
	default:
		return nil
	}
	if cfg.restoreAttributes {
		// Best effort only: a read-only filesystem or missing privilege must
		// not abort the extraction.
		if err := applyAttributes(target, e); err != nil {
			logrus.WithField("path", target).WithError(err).Warn("cannot restore attributes")
		}
	}
	return nil
}

// writeFileContent streams e's content from the archive into target,
// holding at most one chunk in memory. Small entries go in one read.
func writeFileContent(s *Scanner, e *ScanEntry, target string, chunk []byte) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := s.src.Seek(e.Offset, io.SeekStart); err != nil {
		return errors.Wrapf(ErrInvalidData, "seek %d: %v", e.Offset, err)
	}
	var written int64
	for written < e.Size {
		n := int64(len(chunk))
		if remain := e.Size - written; remain < n {
			n = remain
		}
		if _, err := io.ReadFull(s.src, chunk[:n]); err != nil {
			return errors.Wrapf(ErrInvalidData, "short content read for %q: %v", e.Subpath, err)
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			return err
		}
		written += n
	}
	return f.Close()
}
