package tarchive

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
	"github.com/aurora-is-near/tarkit/src/tarwalk"
)

// ScanEntry is one surfaced archive entry. Only files, directories and
// symlinks are surfaced; extended headers are consumed internally and the
// remaining types are skipped by block count.
type ScanEntry struct {
	Subpath    string // slash-normalized, no leading or trailing slash
	Type       tarfmt.EntryType
	Size       int64
	Mode       int64
	UID        int
	GID        int
	ModTime    time.Time
	LinkTarget string
	Offset     int64 // absolute archive offset of the first content block
}

// ScanFunc receives each surfaced entry in archive order. Returning
// stop=true halts the scan immediately; a non-nil error aborts it. A halted
// or failed scan leaves the cursor indeterminate and must not be resumed.
type ScanFunc func(e *ScanEntry) (stop bool, err error)

// Scanner drives a single sequential scan over an archive. It owns the
// source's read cursor exclusively for the duration of the scan; the block
// run of the next entry cannot be known without fully interpreting the
// current one, so there is nothing to parallelize.
type Scanner struct {
	src  io.ReadSeeker
	size int64
	pos  int64

	// pending holds the extended header captured from the previous block
	// run. It applies to exactly the next entry and is cleared on use.
	pending *tarfmt.ExtendedHeader

	// Progress, when set, is called before each surfaced entry with the
	// byte fraction of the archive already consumed, and once at completion.
	Progress ProgressFunc

	f *os.File // owned when the scanner was opened from a path
}

// NewScanner scans an archive from any seekable source with a declared total
// size.
func NewScanner(src io.ReadSeeker, size int64) *Scanner {
	return &Scanner{src: src, size: size}
}

// OpenScanner opens an archive file for scanning. The caller must Close it.
func OpenScanner(archivePath string) (*Scanner, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.Wrap(ErrArchiveSourceMissing, archivePath)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(ErrArchiveSizeUnknown, archivePath)
	}
	s := NewScanner(f, fi.Size())
	s.f = f
	return s, nil
}

// Close releases the archive handle, if the scanner owns one.
func (s *Scanner) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}

// Size returns the archive's declared total size.
func (s *Scanner) Size() int64 {
	return s.size
}

func (s *Scanner) readBlock(b *tarfmt.Block) error {
	if _, err := s.src.Seek(s.pos, io.SeekStart); err != nil {
		return errors.Wrapf(ErrInvalidData, "seek %d: %v", s.pos, err)
	}
	if _, err := io.ReadFull(s.src, b[:]); err != nil {
		return errors.Wrapf(ErrInvalidData, "short read at offset %d: %v", s.pos, err)
	}
	s.pos += tarfmt.BlockSize
	return nil
}

// readData reads exactly size bytes starting at the current position and
// advances past the padding to the next block boundary.
func (s *Scanner) readData(size int64) ([]byte, error) {
	if _, err := s.src.Seek(s.pos, io.SeekStart); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "seek %d: %v", s.pos, err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(s.src, data); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "short read at offset %d: %v", s.pos, err)
	}
	s.pos += tarfmt.PaddedSize(size)
	return data, nil
}

// readContentAt reads size bytes at an absolute offset without moving the
// scan position; the scan loop re-seeks before every block it reads.
func (s *Scanner) readContentAt(offset, size int64) ([]byte, error) {
	if _, err := s.src.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "seek %d: %v", offset, err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(s.src, data); err != nil {
		return nil, errors.Wrapf(ErrInvalidData, "short read at offset %d: %v", offset, err)
	}
	return data, nil
}

// Scan walks the archive block-run by block-run, decoding each header with
// any pending extended-header override applied, and hands surfaced entries
// to fn. The scan ends at the declared size or at two consecutive zero
// blocks, whichever comes first. Structural faults abort with ErrInvalidData
// or ErrInvalidTarType; there is no partial success.
func (s *Scanner) Scan(fn ScanFunc) error {
	var b tarfmt.Block
	for s.pos < s.size {
		headerPos := s.pos
		if err := s.readBlock(&b); err != nil {
			return err
		}
		if b.IsZero() {
			if s.pos >= s.size {
				break
			}
			if err := s.readBlock(&b); err != nil {
				return err
			}
			if !b.IsZero() {
				return errors.Wrapf(ErrInvalidData, "lone zero block at offset %d", headerPos)
			}
			break
		}
		h, err := tarfmt.DecodeHeader(&b)
		if err != nil {
			return errors.Wrapf(err, "offset %d", headerPos)
		}
		pending := s.pending
		s.pending = nil
		if h.Type != tarfmt.TypeExtendedHeader {
			// The override must land before any size-derived arithmetic, or
			// a skipped entry with an overridden size would desync the scan.
			pending.Apply(h)
		}

		switch h.Type {
		case tarfmt.TypeExtendedHeader:
			data, err := s.readData(h.Size)
			if err != nil {
				return err
			}
			x, err := tarfmt.DecodeExtended(data)
			if err != nil {
				return errors.Wrapf(err, "offset %d", headerPos)
			}
			s.pending = x
			continue
		case tarfmt.TypeNormalFile, tarfmt.TypeDirectory, tarfmt.TypeSymbolicLink:
			// Surfaced below.
		default:
			// Hard links, devices, FIFOs, contiguous files and global
			// extended headers are skipped, but their declared size still
			// moves the cursor so the next header decodes at the right
			// offset.
			s.pos += tarfmt.PaddedSize(h.Size)
			if s.pos > s.size {
				return errors.Wrapf(ErrInvalidData, "entry at offset %d extends past archive end", headerPos)
			}
			continue
		}

		e := &ScanEntry{
			Subpath:    tarwalk.NormalizeSubpath(h.Name),
			Type:       h.Type,
			Mode:       h.Mode,
			UID:        int(h.UID),
			GID:        int(h.GID),
			ModTime:    h.ModTime,
			LinkTarget: h.Linkname,
			Offset:     s.pos,
		}
		if h.Type == tarfmt.TypeNormalFile {
			e.Size = h.Size
			// A truncated archive must fail rather than silently surface a
			// short last entry.
			if e.Offset+tarfmt.PaddedSize(h.Size) > s.size {
				return errors.Wrapf(ErrInvalidData, "entry %q extends past archive end", e.Subpath)
			}
		}
		if s.Progress != nil {
			s.Progress(float64(headerPos)/float64(s.size), headerPos)
		}
		stop, err := fn(e)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		if h.Type == tarfmt.TypeNormalFile {
			s.pos = e.Offset + tarfmt.PaddedSize(h.Size)
		}
	}
	if s.Progress != nil {
		s.Progress(1.0, s.size)
	}
	return nil
}
