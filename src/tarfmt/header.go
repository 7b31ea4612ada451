package tarfmt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidData is returned for structurally broken archive bytes: short
// reads, checksum mismatches, malformed records.
var ErrInvalidData = errors.New("invalid archive data")

// Header is the decoded form of one 512-byte ustar header block.
type Header struct {
	Name     string // full subpath; prefix and name joined on decode
	Mode     int64
	UID      int64
	GID      int64
	Size     int64
	ModTime  time.Time
	Type     EntryType
	Linkname string
	Uname    string
	Gname    string
	Devmajor int64
	Devminor int64
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putString(b []byte, s string) {
	n := copy(b, s)
	for ; n < len(b); n++ {
		b[n] = 0
	}
}

// Checksum computes both the unsigned and the signed byte sum of a header
// block with the checksum field treated as eight ASCII spaces. Readers in the
// wild disagree on signedness, so decoding accepts either.
func Checksum(b *Block) (unsigned, signed int64) {
	for i, c := range b {
		if i >= posChecksum && i < posChecksum+lenChecksum {
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}

// DecodeHeader decodes one header block. The block's stored checksum must
// match either the unsigned or the signed sum, and the typeflag must be one
// of the recognized ustar/PAX types.
func DecodeHeader(b *Block) (*Header, error) {
	stored, err := DecodeInt(b[posChecksum : posChecksum+lenChecksum])
	if err != nil {
		return nil, err
	}
	unsigned, signed := Checksum(b)
	if stored != unsigned && stored != signed {
		return nil, errors.Wrapf(ErrInvalidData, "header checksum %d does not match %d", stored, unsigned)
	}
	typ := typeForFlag(b[posTypeflag])
	if typ == TypeUnknown {
		return nil, errors.Wrapf(ErrInvalidTarType, "typeflag %q", b[posTypeflag])
	}
	h := &Header{
		Name:     cString(b[posName : posName+lenName]),
		Type:     typ,
		Linkname: cString(b[posLinkname : posLinkname+lenLinkname]),
		Uname:    cString(b[posUname : posUname+lenUname]),
		Gname:    cString(b[posGname : posGname+lenGname]),
	}
	fields := []struct {
		dst *int64
		pos int
		n   int
	}{
		{&h.Mode, posMode, lenMode},
		{&h.UID, posUID, lenUID},
		{&h.GID, posGID, lenGID},
		{&h.Size, posSize, lenSize},
		{&h.Devmajor, posDevmajor, lenDevmajor},
		{&h.Devminor, posDevminor, lenDevminor},
	}
	for _, f := range fields {
		if *f.dst, err = DecodeInt(b[f.pos : f.pos+f.n]); err != nil {
			return nil, err
		}
	}
	mtime, err := DecodeInt(b[posModTime : posModTime+lenModTime])
	if err != nil {
		return nil, err
	}
	h.ModTime = time.Unix(mtime, 0)
	if prefix := cString(b[posPrefix : posPrefix+lenPrefix]); prefix != "" {
		h.Name = prefix + "/" + h.Name
	}
	return h, nil
}

// SplitName splits a subpath longer than the 100-byte name field at the
// rightmost "/" whose prefix part fits the 155-byte prefix field and whose
// remainder fits the name field. ok is false when no such split exists, in
// which case the true path must travel in an extended header.
func SplitName(name string) (prefix, rest string, ok bool) {
	length := len(name)
	if length <= lenName {
		return "", name, true
	}
	if length > lenPrefix+1 {
		length = lenPrefix + 1
	}
	if name[length-1] == '/' {
		length--
	}
	i := strings.LastIndex(name[:length], "/")
	nlen := len(name) - i - 1
	if i <= 0 || nlen == 0 || nlen > lenName || i > lenPrefix {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// NeedsExtendedHeader reports whether h has fields not representable in a
// fixed ustar header: an unsplittable long name, a long link target, or a
// size beyond the octal capacity of the size field.
func NeedsExtendedHeader(h *Header) bool {
	if _, _, ok := SplitName(h.Name); !ok {
		return true
	}
	if len(h.Linkname) > lenLinkname {
		return true
	}
	return !FitsOctal(h.Size, lenSize)
}

// EncodeHeader encodes h as one 512-byte block. Oversized names and link
// targets are truncated here; callers emit an extended header beforehand so
// conformant readers recover the true values. The checksum is written last,
// as six octal digits, NUL and space, over the block with the checksum field
// pre-filled with spaces.
func EncodeHeader(h *Header) *Block {
	b := new(Block)
	name := h.Name
	prefix, rest, ok := SplitName(name)
	if ok {
		name = rest
	} else {
		prefix = ""
		name = name[:lenName]
	}
	putString(b[posName:posName+lenName], name)
	putString(b[posPrefix:posPrefix+lenPrefix], prefix)
	link := h.Linkname
	if len(link) > lenLinkname {
		link = link[:lenLinkname]
	}
	putString(b[posLinkname:posLinkname+lenLinkname], link)
	copy(b[posMode:], EncodeInt(h.Mode, lenMode))
	copy(b[posUID:], EncodeInt(h.UID, lenUID))
	copy(b[posGID:], EncodeInt(h.GID, lenGID))
	copy(b[posSize:], EncodeInt(h.Size, lenSize))
	var mtime int64
	if !h.ModTime.IsZero() {
		mtime = h.ModTime.Unix()
	}
	copy(b[posModTime:], EncodeInt(mtime, lenModTime))
	b[posTypeflag] = flagForType(h.Type)
	copy(b[posMagic:], magic)
	copy(b[posVersion:], version)
	putString(b[posUname:posUname+lenUname], h.Uname)
	putString(b[posGname:posGname+lenGname], h.Gname)
	if h.Type == TypeCharSpecial || h.Type == TypeBlockSpecial {
		copy(b[posDevmajor:], EncodeInt(h.Devmajor, lenDevmajor))
		copy(b[posDevminor:], EncodeInt(h.Devminor, lenDevminor))
	}
	for i := 0; i < lenChecksum; i++ {
		b[posChecksum+i] = ' '
	}
	unsigned, _ := Checksum(b)
	copy(b[posChecksum:], fmt.Sprintf("%06o\x00 ", unsigned))
	return b
}
