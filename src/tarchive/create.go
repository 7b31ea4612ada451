package tarchive

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aurora-is-near/tarkit/src/tarwalk"
)

// Create archives the tree under root to w. Subpaths are relative to root;
// the root directory itself is not an entry. The default failure policy is
// abort-on-first-error; WithKeepGoing skips failing entries instead and
// returns their collected errors after the archive is completed.
func Create(root string, w io.Writer, options ...Option) error {
	cfg := newConfig(options...)
	fi, err := os.Stat(root)
	if err != nil {
		return errors.Wrap(ErrEntrySourceMissing, root)
	}
	if !fi.IsDir() {
		return errors.Wrapf(ErrEntrySourceMissing, "%s is not a directory", root)
	}

	var total, processed int64
	if cfg.progress != nil {
		if total, err = tarwalk.Count(root); err != nil {
			return err
		}
	}

	tw := NewWriterSize(w, cfg.chunkSize)
	var skipped *multierror.Error
	err = tarwalk.Walk(root, func(e *tarwalk.Entry) error {
		if cfg.progress != nil {
			cfg.progress(fraction(processed, total), processed)
		}
		processed++
		if err := writeWalkEntry(tw, e, cfg); err != nil {
			if !cfg.keepGoing {
				return err
			}
			logrus.WithField("path", e.Path).WithError(err).Warn("entry skipped")
			skipped = multierror.Append(skipped, errors.Wrap(err, e.Subpath))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if cfg.progress != nil {
		cfg.progress(1.0, processed)
	}
	if skipped.ErrorOrNil() != nil {
		return &SkippedError{Errs: skipped}
	}
	return nil
}

// SkippedError aggregates the per-entry failures of a keep-going write. The
// archive itself is complete and valid without the skipped entries.
type SkippedError struct {
	Errs *multierror.Error
}

func (e *SkippedError) Error() string {
	return e.Errs.Error()
}

func (e *SkippedError) Unwrap() error {
	return e.Errs.ErrorOrNil()
}

func fraction(processed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(processed) / float64(total)
}

// writeWalkEntry applies the symlink policy before handing the entry to the
// writer: with WithFollowSymlinks a link pointing at a regular file is
// archived as that file's content under the link's subpath.
func writeWalkEntry(tw *Writer, e *tarwalk.Entry, cfg *activeConfig) error {
	if e.Kind == tarwalk.KindSymlink && cfg.followSymlinks {
		resolved, err := filepath.EvalSymlinks(e.Path)
		if err != nil {
			return errors.Wrap(ErrSymlinkUnresolved, e.Subpath)
		}
		fi, err := os.Stat(resolved)
		if err != nil {
			return errors.Wrap(ErrSymlinkUnresolved, e.Subpath)
		}
		if fi.Mode().IsRegular() {
			follow := *e
			follow.Kind = tarwalk.KindFile
			follow.Path = resolved
			follow.Size = fi.Size()
			follow.Mode = int64(fi.Mode() & os.ModePerm)
			follow.ModTime = fi.ModTime()
			return tw.WriteEntry(&follow)
		}
		// Non-file targets keep their link entry.
	}
	return tw.WriteEntry(e)
}

// CreateFile archives the tree under root into a new archive file. The file
// is created exclusively; on a propagated failure the partial archive is
// removed before the error is returned.
func CreateFile(root, archivePath string, options ...Option) error {
	f, err := createExclusive(archivePath)
	if err != nil {
		return err
	}
	if err := Create(root, f, options...); err != nil {
		var skipped *SkippedError
		if stderrors.As(err, &skipped) {
			// The archive is complete; only entries were skipped.
			_ = f.Close()
			return err
		}
		_ = f.Close()
		_ = os.Remove(archivePath)
		return err
	}
	return f.Close()
}

func createExclusive(filename string) (*os.File, error) {
	return os.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o640)
}
