package gateway

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// decodeString reads a single-byte (ISO-8859-1) native string.
// It stops at the first NUL, or at the end of buf when none is found.
// Bytes past the NUL are never inspected.
func decodeString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(buf[:n])
	if err != nil {
		return string(buf[:n])
	}
	return string(out)
}

// encodeString converts s to ISO-8859-1 and always appends a NUL,
// whatever the driver's own convention. Unmappable runes are replaced.
func encodeString(s string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		b = []byte(s)
	}
	out := make([]byte, len(b)+1)
	copy(out, b)
	return out
}
