package tarfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeIntLength(t *testing.T) {
	for _, length := range []int{8, 12} {
		for _, v := range []int64{0, 1, 0o644, maxOctal(length), maxOctal(length) + 1, 1 << 40, -1, -255} {
			out := EncodeInt(v, length)
			if len(out) != length {
				t.Errorf("EncodeInt(%d, %d): got %d bytes", v, length, len(out))
			}
		}
	}
}

func TestIntRoundtrip(t *testing.T) {
	for _, length := range []int{8, 12} {
		values := []int64{
			0, 1, 7, 8, 0o755, 1234567,
			maxOctal(length) - 1, maxOctal(length),
			maxOctal(length) + 1, // first base-256 value
			1 << 33, -1, -12345,
		}
		for _, v := range values {
			back, err := DecodeInt(EncodeInt(v, length))
			if err != nil {
				t.Errorf("DecodeInt(EncodeInt(%d, %d)): %s", v, length, err)
				continue
			}
			if back != v {
				t.Errorf("roundtrip %d (len %d): got %d", v, length, back)
			}
		}
	}
}

func TestEncodeIntBranches(t *testing.T) {
	if out := EncodeInt(maxOctal(12), 12); out[0]&0x80 != 0 {
		t.Error("max octal value must stay octal")
	}
	if out := EncodeInt(maxOctal(12)+1, 12); out[0]&0x80 == 0 {
		t.Error("max octal + 1 must switch to base-256")
	}
	if out := EncodeInt(-1, 12); out[0] != 0xff {
		t.Errorf("negative base-256 lead byte: got %#x", out[0])
	}
}

func TestDecodeOctalLenient(t *testing.T) {
	cases := [][]byte{
		make([]byte, 8),                    // all NUL
		[]byte("        "),                 // all spaces
		[]byte("     0 \x00"),              // padded zero
		[]byte("0000000\x00"),              // conventional
		bytes.Repeat([]byte{0x00}, 12)[:8], // zeroed unused field
		[]byte("12x4567\x00"),              // garbage text, not overflow
		[]byte("octal?!\x00"),
	}
	for _, c := range cases {
		v, err := DecodeInt(c)
		if err != nil {
			t.Errorf("DecodeInt(%q): %s", c, err)
		}
		if v != 0 {
			t.Errorf("DecodeInt(%q): got %d, want 0", c, v)
		}
	}
}

func TestDecodeBase256Overflow(t *testing.T) {
	b := bytes.Repeat([]byte{0xff}, 12)
	b[0] = 0x80
	if _, err := DecodeInt(b); !errors.Is(err, ErrInvalidNumber) {
		t.Errorf("overflow: got %v, want ErrInvalidNumber", err)
	}
}
