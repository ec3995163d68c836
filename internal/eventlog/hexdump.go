package eventlog

import (
	"fmt"
	"strings"
)

// HexdumpLines formats buf as 16-byte rows: "0010: 0a 0b ...".
func HexdumpLines(buf []byte) []string {
	var (
		lines []string
		sb    strings.Builder
	)
	for i, b := range buf {
		if i%16 == 0 {
			if i > 0 {
				lines = append(lines, sb.String())
				sb.Reset()
			}
			fmt.Fprintf(&sb, "%04x:", i)
		}
		fmt.Fprintf(&sb, " %02x", b)
	}
	if sb.Len() > 0 {
		lines = append(lines, sb.String())
	}
	return lines
}

// Hexdump logs buf at DEBUG, one row per line, each prefixed.
func (l *Log) Hexdump(buf []byte, prefix string) {
	if !l.DebugEnabled() {
		return
	}
	for _, line := range HexdumpLines(buf) {
		l.Debugf("%s%s", prefix, line)
	}
}
