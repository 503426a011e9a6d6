package slug

import (
	"fmt"
	"strings"
)

// FileName maps an identifier to a single path element. Letters, digits,
// '-', '_' and '.' are kept as they are and every other byte is written as
// %XX, so distinct identifiers never share a file name. Leading dots are
// escaped too so the result is never hidden or a relative path element.
func FileName(id string) string {
	if id == "" {
		return "untitled"
	}
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isSafe(c) && !(c == '.' && i == 0) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.':
		return true
	}
	return false
}
