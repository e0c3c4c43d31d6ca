package framing

import (
	"bytes"
	"strings"
)

// LineScanner splits a byte stream on '\n'. Used for stderr, where the worker
// writes human-readable diagnostics.
type LineScanner struct {
	buf []byte
}

// Feed appends chunk and returns every completed line without its terminator.
// Blank lines are skipped.
func (l *LineScanner) Feed(chunk []byte) []string {
	l.buf = append(l.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		if line := decodeLine(l.buf[:i]); line != "" {
			lines = append(lines, line)
		}
		l.buf = l.buf[i+1:]
	}
	if len(l.buf) == 0 {
		l.buf = nil
	}
	return lines
}

// Flush returns the unterminated remainder, if any, and resets the scanner.
func (l *LineScanner) Flush() string {
	line := decodeLine(l.buf)
	l.buf = nil
	return line
}

func decodeLine(b []byte) string {
	b = bytes.TrimRight(b, "\r")
	s := strings.ToValidUTF8(string(b), "�")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
