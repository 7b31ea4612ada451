package tarfmt

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// DecodeInt decodes a fixed-width numeric header field. A set top bit in the
// first byte selects base-256 (big-endian two's complement); otherwise the
// field is NUL/space-terminated ASCII octal. Empty, zero-padded or
// unparsable octal fields decode to 0, since archives routinely blank unused
// numeric fields; only overflow fails.
func DecodeInt(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		return decodeBase256(b)
	}
	return decodeOctal(b)
}

// decodeBase256 handles negative values through the identity -a-1 == ^a: the
// second-highest bit of the first byte is the sign, and a negative value is
// decoded by inverting the data bytes.
func decodeBase256(b []byte) (int64, error) {
	var inv byte
	sign, incr := int64(1), int64(0)
	if b[0]&0x40 != 0 {
		inv, sign, incr = 0xff, -1, 1
	}
	var x uint64
	for i, c := range b {
		c ^= inv
		if i == 0 {
			c &= 0x7f
		}
		if x>>56 > 0 {
			return 0, errors.Wrap(ErrInvalidNumber, "base-256 overflow")
		}
		x = x<<8 | uint64(c)
	}
	if x>>63 > 0 {
		return 0, errors.Wrap(ErrInvalidNumber, "base-256 overflow")
	}
	return sign*int64(x) - incr, nil
}

func decodeOctal(b []byte) (int64, error) {
	b = bytes.Trim(b, " \x00")
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return 0, nil
	}
	x, err := strconv.ParseInt(string(b), 8, 64)
	if nerr, ok := err.(*strconv.NumError); ok && nerr.Err == strconv.ErrRange {
		return 0, errors.Wrapf(ErrInvalidNumber, "octal %q", b)
	}
	if err != nil {
		// Non-octal text decodes to 0, like a blanked field. Only overflow
		// is an error.
		return 0, nil
	}
	return x, nil
}

// maxOctal returns the largest value whose octal form fits in length-1
// digits, leaving one byte for the terminator.
func maxOctal(length int) int64 {
	return 1<<(3*(length-1)) - 1
}

// EncodeInt writes v into a field of the given length. Values that fit are
// written as zero-padded octal with a NUL terminator; negative values and
// values beyond the octal capacity fall back to base-256 with the top bit
// set. The result is always exactly length bytes.
func EncodeInt(v int64, length int) []byte {
	out := make([]byte, length)
	if v >= 0 && v <= maxOctal(length) {
		s := strconv.FormatInt(v, 8)
		for i, pad := 0, length-1-len(s); i < pad; i++ {
			out[i] = '0'
		}
		copy(out[length-1-len(s):], s)
		out[length-1] = 0
		return out
	}
	// Strict GNU binary mode: the magnitude occupies the trailing length-1
	// bytes and the first byte is 0x80 (positive) or 0xff (negative).
	neg := v < 0
	for i := length - 1; i > 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	out[0] = 0x80
	if neg {
		out[0] = 0xff
	}
	return out
}

// FitsOctal reports whether v can be stored as octal in a field of the given
// length.
func FitsOctal(v int64, length int) bool {
	return v >= 0 && v <= maxOctal(length)
}
