package subtitles

import (
	"strconv"
	"strings"
)

// LineKind is the role of a line inside an SRT file.
type LineKind int

const (
	LineBlank LineKind = iota
	LineIndex
	LineTimecode
	LineText
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineIndex:
		return "index"
	case LineTimecode:
		return "timecode"
	default:
		return "text"
	}
}

// Classifier assigns a LineKind to each line of an SRT file fed in order.
//
// An index line must equal the next expected cue number, which keeps numeric
// caption text ("42") from being mistaken for an index. The line after an
// index is the timecode line. Timing lines are also recognised on their own
// so files with irregular numbering keep their timings intact.
type Classifier struct {
	next              int
	expectingTimecode bool
}

// NewClassifier returns a classifier expecting cue 1.
func NewClassifier() *Classifier {
	return &Classifier{next: 1}
}

// Next classifies line. A trailing carriage return is ignored.
func (c *Classifier) Next(line string) LineKind {
	line = strings.TrimSuffix(line, "\r")
	switch {
	case line == "":
		return LineBlank
	case line == strconv.Itoa(c.next):
		c.next++
		c.expectingTimecode = true
		return LineIndex
	case c.expectingTimecode:
		c.expectingTimecode = false
		return LineTimecode
	case isTimingLine(line):
		return LineTimecode
	default:
		return LineText
	}
}

func isTimingLine(line string) bool {
	if !strings.Contains(line, "-->") {
		return false
	}
	_, _, err := ParseTimecodeRange(line)
	return err == nil
}
