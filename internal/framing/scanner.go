// Package framing splits the worker's unframed output streams into logical units.
//
// Stdout is scanned without relying on newlines: the scanner looks for the
// first '{' and its matching top-level '}' while tracking string and escape
// state, so several objects in one chunk and one object spread across many
// chunks both decode the same way. Bytes outside of objects are reported as
// text units, cut at newline or '{' boundaries only. Because no unit is ever
// cut at a chunk boundary, any split of the stream yields the same units.
package framing

import (
	"bytes"
)

// DefaultMaxFrameBytes bounds a single object before the scanner gives up on it.
const DefaultMaxFrameBytes = 8 << 20

// UnitKind classifies a scanned unit.
type UnitKind int

const (
	// UnitObject is a balanced {...} span.
	UnitObject UnitKind = iota
	// UnitText is non-blank bytes found outside any object.
	UnitText
	// UnitOverflow is the prefix of an object abandoned for exceeding the frame cap.
	UnitOverflow
)

func (k UnitKind) String() string {
	switch k {
	case UnitObject:
		return "object"
	case UnitText:
		return "text"
	case UnitOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Unit is one logical piece of the stream.
type Unit struct {
	Kind UnitKind
	Data []byte
}

type scanState int

const (
	stateIdle scanState = iota
	stateAccumulating
)

// overflowPreviewBytes is how much of an abandoned frame is kept for logging.
const overflowPreviewBytes = 512

// ObjectScanner is a delimiter-free JSON object scanner. It is not safe for
// concurrent use; one scanner belongs to one stream.
type ObjectScanner struct {
	maxFrame int

	buf       []byte
	state     scanState
	pos       int
	textStart int
	start     int
	depth     int
	inString  bool
	escaped   bool
	lineStart bool
}

// NewObjectScanner returns a scanner that abandons objects larger than maxFrame
// bytes. A non-positive maxFrame selects DefaultMaxFrameBytes.
func NewObjectScanner(maxFrame int) *ObjectScanner {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &ObjectScanner{maxFrame: maxFrame}
}

// Buffered returns the number of bytes held for a unit not yet complete.
func (s *ObjectScanner) Buffered() int {
	return len(s.buf) - s.textStart
}

// Feed appends chunk to the stream and returns every unit it completes.
func (s *ObjectScanner) Feed(chunk []byte) []Unit {
	if len(chunk) == 0 {
		return nil
	}
	s.buf = append(s.buf, chunk...)

	var units []Unit
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		switch s.state {
		case stateIdle:
			switch c {
			case '{':
				units = s.appendText(units, s.buf[s.textStart:s.pos])
				s.state = stateAccumulating
				s.start = s.pos
				s.textStart = s.pos
				s.depth = 1
				s.inString = false
				s.escaped = false
				s.lineStart = false
			case '\n':
				units = s.appendText(units, s.buf[s.textStart:s.pos])
				s.textStart = s.pos + 1
			}
			s.pos++

		case stateAccumulating:
			if c == '{' && s.lineStart {
				// A line opening with '{' while a candidate is still open means
				// the candidate was stray text; restart at this brace.
				units = s.appendText(units, s.buf[s.start:s.pos])
				s.start = s.pos
				s.textStart = s.pos
				s.depth = 1
				s.inString = false
				s.escaped = false
				s.lineStart = false
				s.pos++
				continue
			}
			if c != '\r' {
				s.lineStart = false
			}
			switch {
			case c == '\n':
				// Compact JSON never holds a raw newline, not even in a string.
				s.inString = false
				s.escaped = false
				s.lineStart = true
			case s.escaped:
				s.escaped = false
			case s.inString:
				if c == '\\' {
					s.escaped = true
				} else if c == '"' {
					s.inString = false
				}
			case c == '"':
				s.inString = true
			case c == '{':
				s.depth++
			case c == '}':
				s.depth--
				if s.depth == 0 {
					units = append(units, Unit{Kind: UnitObject, Data: bytes.Clone(s.buf[s.start : s.pos+1])})
					s.state = stateIdle
					s.textStart = s.pos + 1
				}
			}
			s.pos++

			if s.state == stateAccumulating && s.pos-s.start > s.maxFrame {
				preview := s.buf[s.start:min(s.pos, s.start+overflowPreviewBytes)]
				units = append(units, Unit{Kind: UnitOverflow, Data: bytes.Clone(preview)})
				// Resync just past the abandoned opening brace.
				s.state = stateIdle
				s.pos = s.start + 1
				s.textStart = s.pos
			}
		}
	}

	s.compact()
	return units
}

// Flush ends the stream: whatever is still buffered becomes a best-effort
// final unit and the scanner is reset.
func (s *ObjectScanner) Flush() []Unit {
	var units []Unit
	rest := s.buf[s.textStart:]
	switch s.state {
	case stateAccumulating:
		if len(bytes.TrimSpace(rest)) > 0 {
			units = append(units, Unit{Kind: UnitObject, Data: bytes.Clone(rest)})
		}
	default:
		units = s.appendText(units, rest)
	}
	*s = ObjectScanner{maxFrame: s.maxFrame}
	return units
}

func (s *ObjectScanner) appendText(units []Unit, text []byte) []Unit {
	text = bytes.TrimRight(text, "\r\n")
	if len(bytes.TrimSpace(text)) == 0 {
		return units
	}
	return append(units, Unit{Kind: UnitText, Data: bytes.Clone(text)})
}

// compact drops consumed bytes so the buffer only holds the pending unit.
func (s *ObjectScanner) compact() {
	if s.textStart == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.textStart:])
	s.buf = s.buf[:n]
	s.pos -= s.textStart
	s.start -= s.textStart
	s.textStart = 0
	if n == 0 && cap(s.buf) > 64<<10 {
		s.buf = nil
	}
}
