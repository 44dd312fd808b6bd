package subtitles

import (
	"strconv"
	"strings"
)

// Caption is a recognised piece of text placed on the source timeline in samples.
type Caption struct {
	Text  string
	Start int64
	End   int64
}

// Cue is one numbered subtitle block.
type Cue struct {
	Index int
	Start string
	End   string
	Text  string
}

// BuildCues converts captions into numbered cues. Captions whose trimmed text
// is empty or one of fillers are dropped and the remaining cues are numbered
// from 1.
func BuildCues(captions []Caption, sampleRate int64, fillers []string) []Cue {
	skip := make(map[string]struct{}, len(fillers))
	for _, f := range fillers {
		skip[strings.TrimSpace(f)] = struct{}{}
	}
	cues := make([]Cue, 0, len(captions))
	for _, c := range captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if _, filler := skip[text]; filler {
			continue
		}
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: FormatTimecode(c.Start, sampleRate),
			End:   FormatTimecode(c.End, sampleRate),
			Text:  text,
		})
	}
	return cues
}

// RenderSRT writes cues as "{index}\n{start} --> {end}\n{text}\n\n" blocks.
func RenderSRT(cues []Cue) string {
	var b strings.Builder
	for _, cue := range cues {
		b.WriteString(strconv.Itoa(cue.Index))
		b.WriteByte('\n')
		b.WriteString(cue.Start)
		b.WriteString(" --> ")
		b.WriteString(cue.End)
		b.WriteByte('\n')
		b.WriteString(cue.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// JoinText joins caption text with newlines for the plain transcript. Filler
// captions are kept; only the subtitle file drops them.
func JoinText(captions []Caption) string {
	lines := make([]string, len(captions))
	for i, c := range captions {
		lines[i] = strings.TrimSpace(c.Text)
	}
	return strings.Join(lines, "\n")
}
