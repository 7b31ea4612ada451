package tarfmt

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PAX record keys understood by this package. Unknown keys are ignored on
// decode.
const (
	paxPath     = "path"
	paxLinkPath = "linkpath"
	paxSize     = "size"
)

// ExtendedHeader carries overrides for the single entry that follows it in
// archive order. Zero values mean "no override".
type ExtendedHeader struct {
	Path     string
	LinkPath string
	Size     int64
}

// IsZero reports whether no override is present.
func (x *ExtendedHeader) IsZero() bool {
	return x == nil || (x.Path == "" && x.LinkPath == "" && x.Size == 0)
}

// Apply overlays the overrides onto h. Overrides win only when present.
func (x *ExtendedHeader) Apply(h *Header) {
	if x == nil {
		return
	}
	if x.Path != "" {
		h.Name = x.Path
	}
	if x.LinkPath != "" {
		h.Linkname = x.LinkPath
	}
	if x.Size != 0 {
		h.Size = x.Size
	}
}

// EncodeRecord renders one "<length> <key>=<value>\n" PAX record. The length
// counts every byte of the record including its own digits, so it is
// recomputed until the digit count stabilizes.
func EncodeRecord(key, value string) (string, error) {
	if key == "" || strings.ContainsAny(key, "= \n") {
		return "", errors.Wrapf(ErrExtendedHeaderEncoding, "bad key %q", key)
	}
	if strings.ContainsRune(value, '\n') {
		return "", errors.Wrapf(ErrExtendedHeaderEncoding, "newline in value for %q", key)
	}
	base := len(" ") + len(key) + len("=") + len(value) + len("\n")
	total := base
	for {
		next := base + len(strconv.Itoa(total))
		if next == total {
			break
		}
		total = next
	}
	return strconv.Itoa(total) + " " + key + "=" + value + "\n", nil
}

// EncodeExtended renders the override records of x as the payload of a
// type-'x' entry.
func EncodeExtended(x *ExtendedHeader) ([]byte, error) {
	var sb strings.Builder
	add := func(key, value string) error {
		rec, err := EncodeRecord(key, value)
		if err != nil {
			return err
		}
		sb.WriteString(rec)
		return nil
	}
	if x.Path != "" {
		if err := add(paxPath, x.Path); err != nil {
			return nil, err
		}
	}
	if x.LinkPath != "" {
		if err := add(paxLinkPath, x.LinkPath); err != nil {
			return nil, err
		}
	}
	if x.Size != 0 {
		if err := add(paxSize, strconv.FormatInt(x.Size, 10)); err != nil {
			return nil, err
		}
	}
	return []byte(sb.String()), nil
}

// DecodeExtended parses a PAX payload. Records are demarcated by newlines;
// within a record the first space ends the length and the first "=" after it
// separates key from value. A well-formed length prefix is checked against
// the record, but unknown keys are skipped rather than rejected.
func DecodeExtended(data []byte) (*ExtendedHeader, error) {
	x := new(ExtendedHeader)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		sp := strings.IndexByte(line, ' ')
		if sp < 1 {
			return nil, errors.Wrapf(ErrInvalidData, "malformed extended header record %q", line)
		}
		// The count demarcates nothing here (newlines do), but it must at
		// least be numeric.
		if _, err := strconv.Atoi(line[:sp]); err != nil {
			return nil, errors.Wrapf(ErrInvalidData, "bad extended header length %q", line[:sp])
		}
		rec := line[sp+1:]
		eq := strings.IndexByte(rec, '=')
		if eq < 0 {
			return nil, errors.Wrapf(ErrInvalidData, "missing '=' in extended header record %q", line)
		}
		key, value := rec[:eq], rec[eq+1:]
		switch key {
		case paxPath:
			x.Path = value
		case paxLinkPath:
			x.LinkPath = value
		case paxSize:
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidData, "bad extended header size %q", value)
			}
			x.Size = size
		}
	}
	return x, nil
}
