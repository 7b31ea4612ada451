package tarfmt

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestEncodeHeaderBlockSize(t *testing.T) {
	names := []string{
		"",
		"short.txt",
		strings.Repeat("n", 100),
		strings.Repeat("d", 120) + "/" + strings.Repeat("n", 29),
		strings.Repeat("x", 300), // unsplittable, placeholder name
	}
	for _, name := range names {
		b := EncodeHeader(&Header{Name: name, Type: TypeNormalFile})
		if len(b) != int(BlockSize) {
			t.Errorf("EncodeHeader(%d-byte name): got %d bytes", len(name), len(b))
		}
	}
}

func TestSplitName(t *testing.T) {
	long := strings.Repeat("d", 120) + "/" + strings.Repeat("n", 29)
	if len(long) != 150 {
		t.Fatalf("bad test path length: %d", len(long))
	}
	prefix, rest, ok := SplitName(long)
	if !ok {
		t.Fatal("SplitName: expected a split")
	}
	if len(prefix) > 155 || len(rest) > 100 {
		t.Errorf("split out of bounds: prefix %d, name %d", len(prefix), len(rest))
	}
	if prefix+"/"+rest != long {
		t.Error("split does not reassemble to the original path")
	}

	if _, _, ok := SplitName(strings.Repeat("x", 150)); ok {
		t.Error("path without qualifying slash must not split")
	}
	h := &Header{Name: strings.Repeat("x", 150), Type: TypeNormalFile}
	if !NeedsExtendedHeader(h) {
		t.Error("unsplittable name must demand an extended header")
	}
}

func TestNeedsExtendedHeader(t *testing.T) {
	cases := []struct {
		h    Header
		want bool
	}{
		{Header{Name: "plain.txt"}, false},
		{Header{Name: "plain.txt", Size: MaxOctalSize}, false},
		{Header{Name: "plain.txt", Size: MaxOctalSize + 1}, true},
		{Header{Name: "l", Linkname: strings.Repeat("t", 101)}, true},
	}
	for i, c := range cases {
		if got := NeedsExtendedHeader(&c.h); got != c.want {
			t.Errorf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestDecodeHeaderChecksum(t *testing.T) {
	b := EncodeHeader(&Header{Name: "a.txt", Type: TypeNormalFile, Size: 5})
	if _, err := DecodeHeader(b); err != nil {
		t.Fatalf("DecodeHeader: %s", err)
	}
	b[0] ^= 0xff
	if _, err := DecodeHeader(b); !errors.Is(err, ErrInvalidData) {
		t.Errorf("corrupted block: got %v, want ErrInvalidData", err)
	}
}

func TestDecodeHeaderUnknownType(t *testing.T) {
	b := EncodeHeader(&Header{Name: "a", Type: TypeNormalFile})
	b[posTypeflag] = 'Z'
	// Re-stamp the checksum so only the typeflag is at fault.
	for i := 0; i < lenChecksum; i++ {
		b[posChecksum+i] = ' '
	}
	unsigned, _ := Checksum(b)
	copy(b[posChecksum:], EncodeInt(unsigned, lenChecksum))
	if _, err := DecodeHeader(b); !errors.Is(err, ErrInvalidTarType) {
		t.Errorf("typeflag 'Z': got %v, want ErrInvalidTarType", err)
	}
}

// Headers produced by the stdlib writer must decode to the same fields.
func TestDecodeStdlibHeader(t *testing.T) {
	buf := new(bytes.Buffer)
	w := tar.NewWriter(buf)
	hdr := &tar.Header{
		Name:     "dir/file.bin",
		Mode:     0o640,
		Uid:      12,
		Gid:      34,
		Size:     7,
		ModTime:  time.Unix(1700000000, 0),
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := w.WriteHeader(hdr); err != nil {
		t.Fatalf("WriteHeader: %s", err)
	}
	if _, err := w.Write([]byte("1234567")); err != nil {
		t.Fatalf("Write: %s", err)
	}
	_ = w.Close()

	var b Block
	copy(b[:], buf.Bytes()[:BlockSize])
	h, err := DecodeHeader(&b)
	if err != nil {
		t.Fatalf("DecodeHeader: %s", err)
	}
	if h.Name != "dir/file.bin" || h.Mode != 0o640 || h.UID != 12 || h.GID != 34 || h.Size != 7 {
		t.Errorf("fields do not match: %+v", h)
	}
	if h.Type != TypeNormalFile {
		t.Errorf("type: got %s", h.Type)
	}
	if h.ModTime.Unix() != 1700000000 {
		t.Errorf("mtime: got %d", h.ModTime.Unix())
	}
}

// Headers produced here must be readable by the stdlib reader, including a
// prefix/name split path.
func TestStdlibReadsEncodedHeader(t *testing.T) {
	long := strings.Repeat("d", 120) + "/" + strings.Repeat("n", 29)
	content := []byte("payload")
	h := &Header{
		Name:    long,
		Mode:    0o644,
		Size:    int64(len(content)),
		ModTime: time.Unix(1700000000, 0),
		Type:    TypeNormalFile,
	}
	buf := new(bytes.Buffer)
	b := EncodeHeader(h)
	buf.Write(b[:])
	buf.Write(content)
	buf.Write(make([]byte, PaddedSize(int64(len(content)))-int64(len(content))))
	buf.Write(make([]byte, 2*BlockSize))

	r := tar.NewReader(buf)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("stdlib Next: %s", err)
	}
	if got.Name != long {
		t.Errorf("stdlib name: got %q", got.Name)
	}
	if got.Size != int64(len(content)) {
		t.Errorf("stdlib size: got %d", got.Size)
	}
	data, err := io.ReadAll(r)
	if err != nil || !bytes.Equal(data, content) {
		t.Errorf("stdlib content: %q, %v", data, err)
	}
}
