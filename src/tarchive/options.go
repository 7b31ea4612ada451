// Package tarchive reads and writes uncompressed POSIX ustar/PAX archives
// directly against a filesystem tree. The writer streams a walked directory
// into block-aligned archive bytes; the reader drives a single sequential
// block scan that backs extraction, single-entry lookup and full indexing.
package tarchive

import (
	"errors"

	"github.com/aurora-is-near/tarkit/src/tarfmt"
)

// Format-level errors are shared with tarfmt so callers can match one
// sentinel regardless of which layer detected the fault.
var (
	ErrInvalidData    = tarfmt.ErrInvalidData
	ErrInvalidTarType = tarfmt.ErrInvalidTarType
	ErrInvalidNumber  = tarfmt.ErrInvalidNumber
)

var (
	// ErrArchiveSourceMissing is returned when the archive file cannot be
	// opened.
	ErrArchiveSourceMissing = errors.New("archive source missing")
	// ErrArchiveSizeUnknown is returned when the archive's total size cannot
	// be determined; the scan needs it to detect truncation.
	ErrArchiveSizeUnknown = errors.New("archive size unknown")
	// ErrEntrySourceMissing is returned when there is nothing to archive at
	// the given root.
	ErrEntrySourceMissing = errors.New("nothing to archive at source path")
	// ErrSymlinkUnresolved is returned for a symlink whose target cannot be
	// resolved.
	ErrSymlinkUnresolved = errors.New("symbolic link unresolved")
)

// DefaultChunkSize bounds how much file content is held in memory at a time
// when streaming large files in either direction.
const DefaultChunkSize int64 = 5 << 20

// ProgressFunc receives a completion fraction in [0,1] and an absolute count
// of processed units (entries when writing, bytes when reading). It is
// invoked synchronously before each entry and once more at completion, so it
// must not block.
type ProgressFunc func(fraction float64, processed int64)

type activeConfig struct {
	restoreAttributes bool
	followSymlinks    bool
	keepGoing         bool
	residentContent   bool
	chunkSize         int64
	progress          ProgressFunc
}

func newConfig(options ...Option) *activeConfig {
	cfg := &activeConfig{chunkSize: DefaultChunkSize}
	for _, opt := range options {
		opt.applyOption(cfg)
	}
	return cfg
}

// Option configures archive creation, extraction or indexing.
type Option interface {
	applyOption(cfg *activeConfig)
}

type optAttributes struct{}

func (optAttributes) applyOption(cfg *activeConfig) { cfg.restoreAttributes = true }

// WithAttributes restores permissions, ownership and modification times on
// extracted entries. Failures to apply them are logged and swallowed.
var WithAttributes = new(optAttributes)

type optFollowSymlinks struct{}

func (optFollowSymlinks) applyOption(cfg *activeConfig) { cfg.followSymlinks = true }

// WithFollowSymlinks archives the resolved target content of a symlink
// instead of a link entry. A dangling link becomes a per-entry
// ErrSymlinkUnresolved.
var WithFollowSymlinks = new(optFollowSymlinks)

type optKeepGoing struct{}

func (optKeepGoing) applyOption(cfg *activeConfig) { cfg.keepGoing = true }

// WithKeepGoing skips entries that fail to archive instead of aborting; the
// collected per-entry errors are returned once the archive is complete.
var WithKeepGoing = new(optKeepGoing)

type optResidentContent struct{}

func (optResidentContent) applyOption(cfg *activeConfig) { cfg.residentContent = true }

// WithResidentContent loads file content into memory while indexing instead
// of leaving lazy descriptors behind. Lazy is the default: indexed archives
// may be far larger than memory.
var WithResidentContent = new(optResidentContent)

type chunkSizeOption struct {
	n int64
}

func (opt chunkSizeOption) applyOption(cfg *activeConfig) {
	n := opt.n
	if n < tarfmt.BlockSize {
		n = tarfmt.BlockSize
	}
	cfg.chunkSize = tarfmt.PaddedSize(n)
}

// WithChunkSize sets the streaming buffer size. Values are rounded up to a
// block multiple; the default is 5 MiB.
func WithChunkSize(n int64) Option {
	return chunkSizeOption{n: n}
}

type progressOption struct {
	fn ProgressFunc
}

func (opt progressOption) applyOption(cfg *activeConfig) { cfg.progress = opt.fn }

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return progressOption{fn: fn}
}
