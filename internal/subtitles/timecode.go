package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatTimecode renders a sample position as HH:MM:SS,mmm. Milliseconds are
// truncated, never rounded up.
func FormatTimecode(sample, sampleRate int64) string {
	if sampleRate <= 0 || sample <= 0 {
		return formatMillis(0)
	}
	return formatMillis(sample * 1000 / sampleRate)
}

// FormatSeconds renders a position in seconds as HH:MM:SS,mmm.
func FormatSeconds(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return formatMillis(0)
	}
	return formatMillis(int64(math.Floor(seconds*1000 + 1e-6)))
}

func formatMillis(ms int64) string {
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// ParseTimecode parses HH:MM:SS,mmm (a period separator is also accepted)
// into seconds.
func ParseTimecode(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	clock, millisText, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(millisText)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 || millis < 0 || millis > 999 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// ParseTimecodeRange parses a cue timing line such as
// "00:00:01,000 --> 00:00:02,500".
func ParseTimecodeRange(line string) (start, end float64, err error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	if start, err = ParseTimecode(left); err != nil {
		return 0, 0, err
	}
	// Cue settings may follow the end time.
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	if end, err = ParseTimecode(fields[0]); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
