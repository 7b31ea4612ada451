package tarchive

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
	"github.com/aurora-is-near/tarkit/src/tarwalk"
)

// Default permissions for entries whose attributes are unavailable.
const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
)

// Writer emits one ustar/PAX archive to an io.Writer, one entry at a time.
// Entries with oversized names, link targets or sizes get a preceding
// extended-header entry. File content is streamed through a single bounded
// buffer, so memory use stays flat no matter how large the files are.
// Callers must finish with Close, which writes the two-zero-block
// terminator.
type Writer struct {
	w     io.Writer
	chunk []byte
}

// NewWriter returns a Writer with the default chunk size.
func NewWriter(w io.Writer) *Writer {
	return NewWriterSize(w, DefaultChunkSize)
}

// NewWriterSize returns a Writer streaming file content in chunks of at most
// chunkSize bytes (rounded up to a block multiple).
func NewWriterSize(w io.Writer, chunkSize int64) *Writer {
	if chunkSize < tarfmt.BlockSize {
		chunkSize = tarfmt.BlockSize
	}
	return &Writer{
		w:     w,
		chunk: make([]byte, tarfmt.PaddedSize(chunkSize)),
	}
}

// WriteEntry writes the archive entry for one walked filesystem object,
// reading file content from e.Path.
func (tw *Writer) WriteEntry(e *tarwalk.Entry) error {
	switch e.Kind {
	case tarwalk.KindDirectory:
		return tw.writeDirectoryEntry(e)
	case tarwalk.KindSymlink:
		return tw.writeLinkEntry(e)
	case tarwalk.KindFile:
		return tw.writeFileEntry(e)
	}
	return errors.Wrapf(ErrInvalidTarType, "walk kind %d", e.Kind)
}

func (tw *Writer) writeDirectoryEntry(e *tarwalk.Entry) error {
	h := headerFor(e)
	h.Type = tarfmt.TypeDirectory
	if !pathHasSuffixSlash(h.Name) {
		h.Name += "/"
	}
	return tw.writeHeader(h)
}

func (tw *Writer) writeLinkEntry(e *tarwalk.Entry) error {
	if e.LinkTarget == "" {
		return errors.Wrap(ErrSymlinkUnresolved, e.Subpath)
	}
	h := headerFor(e)
	h.Type = tarfmt.TypeSymbolicLink
	h.Linkname = e.LinkTarget
	return tw.writeHeader(h)
}

func (tw *Writer) writeFileEntry(e *tarwalk.Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	h := headerFor(e)
	h.Type = tarfmt.TypeNormalFile
	h.Size = e.Size
	return tw.writeFile(h, f)
}

// AddFile writes a regular file entry with content read from r. It exists
// for entries that have no filesystem backing: generated files, tests, and
// archives assembled from in-memory trees.
func (tw *Writer) AddFile(subpath string, mode int64, modTime time.Time, size int64, r io.Reader) error {
	if mode == 0 {
		mode = defaultFileMode
	}
	h := &tarfmt.Header{
		Name:    tarwalk.NormalizeSubpath(subpath),
		Mode:    mode,
		ModTime: modTime,
		Type:    tarfmt.TypeNormalFile,
		Size:    size,
	}
	return tw.writeFile(h, r)
}

// AddDirectory writes a directory entry without filesystem backing.
func (tw *Writer) AddDirectory(subpath string, mode int64, modTime time.Time) error {
	if mode == 0 {
		mode = defaultDirMode
	}
	h := &tarfmt.Header{
		Name:    tarwalk.NormalizeSubpath(subpath) + "/",
		Mode:    mode,
		ModTime: modTime,
		Type:    tarfmt.TypeDirectory,
	}
	return tw.writeHeader(h)
}

// AddSymlink writes a symlink entry without filesystem backing.
func (tw *Writer) AddSymlink(subpath, target string, modTime time.Time) error {
	if target == "" {
		return errors.Wrap(ErrSymlinkUnresolved, subpath)
	}
	h := &tarfmt.Header{
		Name:     tarwalk.NormalizeSubpath(subpath),
		Mode:     0o777,
		ModTime:  modTime,
		Type:     tarfmt.TypeSymbolicLink,
		Linkname: target,
	}
	return tw.writeHeader(h)
}

func headerFor(e *tarwalk.Entry) *tarfmt.Header {
	mode := e.Mode
	if mode == 0 {
		if e.Kind == tarwalk.KindDirectory {
			mode = defaultDirMode
		} else {
			mode = defaultFileMode
		}
	}
	return &tarfmt.Header{
		Name:    e.Subpath,
		Mode:    mode,
		UID:     int64(e.UID),
		GID:     int64(e.GID),
		ModTime: e.ModTime,
	}
}

func pathHasSuffixSlash(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '/'
}

// writeHeader emits h, preceded by an extended-header entry whenever a field
// does not fit the fixed ustar layout.
func (tw *Writer) writeHeader(h *tarfmt.Header) error {
	if tarfmt.NeedsExtendedHeader(h) {
		if err := tw.writeExtendedHeader(h); err != nil {
			return err
		}
	}
	b := tarfmt.EncodeHeader(h)
	_, err := tw.w.Write(b[:])
	return err
}

// writeExtendedHeader emits the type-'x' entry carrying the overrides for h.
// The extended header itself must always fit a fixed header, so its own name
// is a bounded placeholder.
func (tw *Writer) writeExtendedHeader(h *tarfmt.Header) error {
	x := new(tarfmt.ExtendedHeader)
	if _, _, ok := tarfmt.SplitName(h.Name); !ok {
		x.Path = h.Name
	}
	if len(h.Linkname) > 100 {
		x.LinkPath = h.Linkname
	}
	if !tarfmt.FitsOctal(h.Size, 12) {
		// Base-256 could carry the size, but a PAX record is portable to
		// readers that never learned the binary extension.
		x.Size = h.Size
	}
	data, err := tarfmt.EncodeExtended(x)
	if err != nil {
		return err
	}
	name := path.Join("PaxHeaders.0", path.Base(h.Name))
	if len(name) > 100 {
		name = name[:100]
	}
	xh := &tarfmt.Header{
		Name:    name,
		Mode:    defaultFileMode,
		ModTime: h.ModTime,
		Type:    tarfmt.TypeExtendedHeader,
		Size:    int64(len(data)),
	}
	b := tarfmt.EncodeHeader(xh)
	if _, err := tw.w.Write(b[:]); err != nil {
		return err
	}
	if _, err := tw.w.Write(data); err != nil {
		return err
	}
	return tw.writePadding(int64(len(data)))
}

// writeFile emits the header for h and then exactly h.Size content bytes
// from r in bounded chunks, padded to the next block boundary. A source that
// runs dry early is a hard error: the header's size has already been
// written.
func (tw *Writer) writeFile(h *tarfmt.Header, r io.Reader) error {
	if err := tw.writeHeader(h); err != nil {
		return err
	}
	var written int64
	for written < h.Size {
		n := int64(len(tw.chunk))
		if remain := h.Size - written; remain < n {
			n = remain
		}
		if _, err := io.ReadFull(r, tw.chunk[:n]); err != nil {
			return errors.Wrapf(ErrInvalidData, "content short by %d bytes: %v", h.Size-written, err)
		}
		if _, err := tw.w.Write(tw.chunk[:n]); err != nil {
			return err
		}
		written += n
	}
	return tw.writePadding(h.Size)
}

func paddingSize(size int64) int64 {
	return tarfmt.PaddedSize(size) - size
}

func (tw *Writer) writePadding(size int64) error {
	pad := paddingSize(size)
	if pad == 0 {
		return nil
	}
	var zero tarfmt.Block
	_, err := tw.w.Write(zero[:pad])
	return err
}

// Close terminates the archive with two all-zero blocks. The underlying
// writer is not closed.
func (tw *Writer) Close() error {
	var zero tarfmt.Block
	for i := 0; i < 2; i++ {
		if _, err := tw.w.Write(zero[:]); err != nil {
			return err
		}
	}
	return nil
}
