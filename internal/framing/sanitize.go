package framing

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var bom = []byte("\xef\xbb\xbf")

// Sanitize cleans a raw unit before JSON decoding. It strips a byte order
// mark, surrounding NUL bytes and whitespace, and terminal escape sequences,
// then re-locates the outermost {...} span. It returns nil when no object
// span remains.
func Sanitize(raw []byte) []byte {
	s := trimNoise(raw)
	if isClean(s) {
		return s
	}

	stripped := trimNoise([]byte(ansi.Strip(string(s))))
	start := bytes.IndexByte(stripped, '{')
	end := bytes.LastIndexByte(stripped, '}')
	if start < 0 || end < start {
		return nil
	}
	return stripped[start : end+1]
}

// StripText removes terminal escapes and surrounding noise from a text unit.
func StripText(raw []byte) string {
	s := trimNoise([]byte(ansi.Strip(string(raw))))
	return strings.ToValidUTF8(string(s), "�")
}

func trimNoise(b []byte) []byte {
	b = bytes.TrimSpace(b)
	b = bytes.TrimPrefix(b, bom)
	b = bytes.Trim(b, "\x00")
	return bytes.TrimSpace(b)
}

// isClean is the fast path: an object span with no escape or NUL bytes.
func isClean(b []byte) bool {
	if len(b) < 2 || b[0] != '{' || b[len(b)-1] != '}' {
		return false
	}
	return bytes.IndexByte(b, 0x1b) < 0 && bytes.IndexByte(b, 0x00) < 0
}

// Codepoints renders the first max runes of s as U+XXXX values, which makes
// invisible prefix bytes readable in logs.
func Codepoints(s string, max int) string {
	var parts []string
	n := 0
	for _, r := range s {
		if n == max {
			parts = append(parts, "…")
			break
		}
		parts = append(parts, fmt.Sprintf("U+%04X", r))
		n++
	}
	return strings.Join(parts, " ")
}
