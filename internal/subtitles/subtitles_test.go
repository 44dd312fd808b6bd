package subtitles

import (
	"strings"
	"testing"
)

func TestFormatTimecode(t *testing.T) {
	tests := []struct {
		sample int64
		rate   int64
		want   string
	}{
		{0, 44100, "00:00:00,000"},
		{44100, 44100, "00:00:01,000"},
		{22050, 44100, "00:00:00,500"},
		{44099, 44100, "00:00:00,999"},
		{44100 * 3661, 44100, "01:01:01,000"},
		{-5, 44100, "00:00:00,000"},
		{100, 0, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimecode(tt.sample, tt.rate); got != tt.want {
			t.Errorf("FormatTimecode(%d, %d) = %q, want %q", tt.sample, tt.rate, got, tt.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := FormatSeconds(1.5); got != "00:00:01,500" {
		t.Fatalf("FormatSeconds(1.5) = %q", got)
	}
	if got := FormatSeconds(0.001); got != "00:00:00,001" {
		t.Fatalf("FormatSeconds(0.001) = %q", got)
	}
}

func TestParseTimecode(t *testing.T) {
	got, err := ParseTimecode("01:02:03,450")
	if err != nil {
		t.Fatalf("ParseTimecode: %v", err)
	}
	if got != 3723.45 {
		t.Fatalf("ParseTimecode = %v, want 3723.45", got)
	}
	for _, bad := range []string{"", "1:2", "00:00:00", "aa:00:00,000", "00:61:00,000"} {
		if _, err := ParseTimecode(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
	start, end, err := ParseTimecodeRange("00:00:01,000 --> 00:00:02.500 align:start")
	if err != nil || start != 1 || end != 2.5 {
		t.Fatalf("ParseTimecodeRange = %v %v %v", start, end, err)
	}
}

func TestBuildCuesDropsEmptyAndFiller(t *testing.T) {
	captions := []Caption{
		{Text: "Hello", Start: 0, End: 44100},
		{Text: "", Start: 44100, End: 88200},
		{Text: "......", Start: 88200, End: 132300},
		{Text: " World ", Start: 132300, End: 176400},
	}
	cues := BuildCues(captions, 44100, []string{"......"})
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %+v", cues)
	}
	want := "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n\n"
	if got := RenderSRT(cues); got != want {
		t.Fatalf("RenderSRT mismatch:\n%q\nwant\n%q", got, want)
	}
	if got := JoinText(captions); got != "Hello\n\n......\nWorld" {
		t.Fatalf("JoinText = %q", got)
	}
}

func TestClassifierExample(t *testing.T) {
	lines := []string{"1", "00:00:00,000 --> 00:00:01,000", "Hello", "", "2", "00:00:01,000 --> 00:00:02,000", "World"}
	want := []LineKind{LineIndex, LineTimecode, LineText, LineBlank, LineIndex, LineTimecode, LineText}
	c := NewClassifier()
	for i, line := range lines {
		if got := c.Next(line); got != want[i] {
			t.Fatalf("line %d %q: got %s want %s", i, line, got, want[i])
		}
	}
}

func TestClassifierNumericCaptionText(t *testing.T) {
	content := "1\r\n00:00:00,000 --> 00:00:01,000\r\n42\r\n\r\n2\r\n00:00:01,000 --> 00:00:02,000\r\nWorld\r\n"
	c := NewClassifier()
	var kinds []string
	for _, line := range strings.Split(content, "\n") {
		kinds = append(kinds, c.Next(line).String())
	}
	got := strings.Join(kinds, ",")
	want := "index,timecode,text,blank,index,timecode,text,blank"
	if got != want {
		t.Fatalf("kinds = %s, want %s", got, want)
	}
}

func TestClassifierTimingLineWithoutIndex(t *testing.T) {
	c := NewClassifier()
	if got := c.Next("00:00:05,000 --> 00:00:06,000"); got != LineTimecode {
		t.Fatalf("got %s, want timecode", got)
	}
	if got := c.Next("Hi --> there"); got != LineText {
		t.Fatalf("got %s, want text", got)
	}
}
