package permission

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const codecVersion1 = 1

// ErrCorrupt is returned when an encoded set cannot be decoded.
var ErrCorrupt = errors.New("permission set encoding corrupt")

// Encode serializes s as version(1) count(2) then length(2)+bytes per entry.
// An empty set encodes to a non-empty blob so cache absence stays distinguishable.
func Encode(s Set) ([]byte, error) {
	list := s.List()
	if len(list) > math.MaxUint16 {
		return nil, errors.New("too many permissions")
	}

	var buf bytes.Buffer
	buf.WriteByte(codecVersion1)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(list))); err != nil {
		return nil, err
	}
	for _, p := range list {
		if len(p) > math.MaxUint16 {
			return nil, errors.New("permission too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(p))); err != nil {
			return nil, err
		}
		buf.WriteString(p)
	}
	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (Set, error) {
	r := bytes.NewReader(data)
	version, err := r.ReadByte()
	if err != nil || version != codecVersion1 {
		return Set{}, ErrCorrupt
	}

	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Set{}, ErrCorrupt
	}
	perms := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return Set{}, ErrCorrupt
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return Set{}, ErrCorrupt
		}
		perms = append(perms, string(raw))
	}
	if r.Len() != 0 {
		return Set{}, ErrCorrupt
	}
	return NewSet(perms...), nil
}
