// Package tarfmt implements the POSIX ustar on-disk format: the fixed
// 512-byte header block, the octal/base-256 numeric field encodings, and the
// PAX extended-header record grammar. Everything in this package is a pure
// function over byte slices; streaming lives in src/tarchive.
package tarfmt

import "errors"

const (
	// BlockSize is the fixed tar block size. All archive structures are
	// aligned to it.
	BlockSize int64 = 512

	magic   = "ustar\x00"
	version = "00"
)

// Fixed field offsets and lengths within a header block.
const (
	posName     = 0
	lenName     = 100
	posMode     = 100
	lenMode     = 8
	posUID      = 108
	lenUID      = 8
	posGID      = 116
	lenGID      = 8
	posSize     = 124
	lenSize     = 12
	posModTime  = 136
	lenModTime  = 12
	posChecksum = 148
	lenChecksum = 8
	posTypeflag = 156
	posLinkname = 157
	lenLinkname = 100
	posMagic    = 257
	posVersion  = 263
	posUname    = 265
	lenUname    = 32
	posGname    = 297
	lenGname    = 32
	posDevmajor = 329
	lenDevmajor = 8
	posDevminor = 337
	lenDevminor = 8
	posPrefix   = 345
	lenPrefix   = 155
)

// MaxOctalSize is the largest value representable as octal in the size field.
const MaxOctalSize int64 = 1<<(3*(lenSize-1)) - 1

var (
	// ErrInvalidNumber is returned when a numeric field cannot be decoded or
	// would overflow an int64.
	ErrInvalidNumber = errors.New("invalid numeric field")
	// ErrInvalidTarType is returned for an unrecognized typeflag.
	ErrInvalidTarType = errors.New("invalid tar entry type")
	// ErrExtendedHeaderEncoding is returned when a value cannot be encoded
	// as a PAX record.
	ErrExtendedHeaderEncoding = errors.New("extended header encoding failed")
)

// EntryType classifies a decoded header block.
type EntryType byte

const (
	TypeNormalFile EntryType = iota
	TypeDirectory
	TypeSymbolicLink
	TypeHardLink
	TypeCharSpecial
	TypeBlockSpecial
	TypeFIFO
	TypeContiguousFile
	TypeGlobalExtendedHeader
	TypeExtendedHeader
	TypeUnknown
)

// On-disk typeflag bytes.
const (
	flagNormal    byte = '0'
	flagNormalOld byte = 0
	flagHardLink  byte = '1'
	flagSymlink   byte = '2'
	flagChar      byte = '3'
	flagBlock     byte = '4'
	flagDir       byte = '5'
	flagFIFO      byte = '6'
	flagCont      byte = '7'
	flagGlobalExt byte = 'g'
	flagExt       byte = 'x'
)

func typeForFlag(flag byte) EntryType {
	switch flag {
	case flagNormal, flagNormalOld:
		return TypeNormalFile
	case flagDir:
		return TypeDirectory
	case flagSymlink:
		return TypeSymbolicLink
	case flagHardLink:
		return TypeHardLink
	case flagChar:
		return TypeCharSpecial
	case flagBlock:
		return TypeBlockSpecial
	case flagFIFO:
		return TypeFIFO
	case flagCont:
		return TypeContiguousFile
	case flagGlobalExt:
		return TypeGlobalExtendedHeader
	case flagExt:
		return TypeExtendedHeader
	}
	return TypeUnknown
}

func flagForType(t EntryType) byte {
	switch t {
	case TypeNormalFile:
		return flagNormal
	case TypeDirectory:
		return flagDir
	case TypeSymbolicLink:
		return flagSymlink
	case TypeHardLink:
		return flagHardLink
	case TypeCharSpecial:
		return flagChar
	case TypeBlockSpecial:
		return flagBlock
	case TypeFIFO:
		return flagFIFO
	case TypeContiguousFile:
		return flagCont
	case TypeGlobalExtendedHeader:
		return flagGlobalExt
	case TypeExtendedHeader:
		return flagExt
	}
	return flagNormal
}

// HasData reports whether entries of type t are followed by data blocks.
func (t EntryType) HasData() bool {
	switch t {
	case TypeNormalFile, TypeContiguousFile, TypeExtendedHeader, TypeGlobalExtendedHeader:
		return true
	}
	return false
}

func (t EntryType) String() string {
	switch t {
	case TypeNormalFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymbolicLink:
		return "symlink"
	case TypeHardLink:
		return "hardlink"
	case TypeCharSpecial:
		return "char device"
	case TypeBlockSpecial:
		return "block device"
	case TypeFIFO:
		return "fifo"
	case TypeContiguousFile:
		return "contiguous file"
	case TypeGlobalExtendedHeader:
		return "global extended header"
	case TypeExtendedHeader:
		return "extended header"
	}
	return "unknown"
}

// Block is one 512-byte tar block.
type Block [BlockSize]byte

var zeroBlock Block

// IsZero reports whether b is all zero bytes (the logical EOF marker when two
// occur in sequence).
func (b *Block) IsZero() bool {
	return *b == zeroBlock
}

// PaddedSize rounds size up to the next block boundary.
func PaddedSize(size int64) int64 {
	if size%BlockSize == 0 {
		return size
	}
	return (size/BlockSize + 1) * BlockSize
}

// DataBlocks returns the number of data blocks occupied by size bytes.
func DataBlocks(size int64) int64 {
	return PaddedSize(size) / BlockSize
}
