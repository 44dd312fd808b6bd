package segment

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Segment is a half-open sample range [Start, End) of a waveform.
type Segment struct {
	Start int
	End   int
}

// Len returns the number of samples covered.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Duration converts the segment length to wall time at the given sample rate.
func (s Segment) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(s.Len()) / float64(sampleRate) * float64(time.Second))
}

// Params controls silence detection.
type Params struct {
	SampleRate int
	// ThresholdDB is how far below the loudest frame a frame may fall before it counts as silence.
	ThresholdDB float64
	FrameLength int
	HopLength   int
}

// DefaultParams returns the segmentation defaults used for speech clips.
func DefaultParams(sampleRate int) Params {
	return Params{
		SampleRate:  sampleRate,
		ThresholdDB: 40,
		FrameLength: 2048,
		HopLength:   3072,
	}
}

func (p Params) validate() error {
	switch {
	case p.FrameLength <= 0:
		return fmt.Errorf("segment: frame length must be positive, got %d", p.FrameLength)
	case p.HopLength <= 0:
		return fmt.Errorf("segment: hop length must be positive, got %d", p.HopLength)
	case p.ThresholdDB <= 0:
		return errors.New("segment: threshold must be a positive number of decibels")
	}
	return nil
}

// Split returns the speech-bearing regions of samples in ascending order.
// Each region is widened by HopLength on both sides and clamped so that it
// stays inside the waveform and never overlaps its neighbours. A silent or
// empty waveform yields an empty, non-nil slice.
func Split(samples []float32, p Params) ([]Segment, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	raw := detect(samples, p)
	return pad(raw, len(samples), p.HopLength), nil
}

// detect finds runs of non-silent frames and maps them back to sample ranges.
// Frame i is centred on sample i*hop and zero padded at the edges. Frames span
// max(FrameLength, HopLength) samples so consecutive frames always touch.
func detect(samples []float32, p Params) []Segment {
	n := len(samples)
	if n == 0 {
		return []Segment{}
	}

	// prefix[k] is the sum of squares of samples[0:k].
	prefix := make([]float64, n+1)
	for i, s := range samples {
		v := float64(s)
		prefix[i+1] = prefix[i] + v*v
	}

	frames := 1 + n/p.HopLength
	energy := make([]float64, frames)
	peak := 0.0
	// A window shorter than the stride would leave samples between frames
	// unmeasured, so it is widened to at least one hop.
	window := max(p.FrameLength, p.HopLength)
	half := window / 2
	for i := range energy {
		lo := i*p.HopLength - half
		hi := lo + window
		lo = max(lo, 0)
		hi = min(hi, n)
		if hi > lo {
			energy[i] = (prefix[hi] - prefix[lo]) / float64(window)
		}
		peak = max(peak, energy[i])
	}
	if peak <= 0 {
		return []Segment{}
	}

	// Energy is a power quantity, so the threshold is 10*log10 of the ratio.
	floor := peak * math.Pow(10, -p.ThresholdDB/10)

	var out []Segment
	runStart := -1
	for i, e := range energy {
		loud := e > floor
		switch {
		case loud && runStart < 0:
			runStart = i
		case !loud && runStart >= 0:
			out = append(out, frameRange(runStart, i, p.HopLength, n))
			runStart = -1
		}
	}
	if runStart >= 0 {
		out = append(out, frameRange(runStart, frames, p.HopLength, n))
	}
	if out == nil {
		return []Segment{}
	}
	return out
}

func frameRange(startFrame, endFrame, hop, n int) Segment {
	return Segment{Start: min(startFrame*hop, n), End: min(endFrame*hop, n)}
}

// pad widens each raw segment by hop samples. Every boundary is clamped on its
// own: a start never precedes the previous padded end and an end never passes
// the next raw start.
func pad(raw []Segment, n, hop int) []Segment {
	out := make([]Segment, 0, len(raw))
	prevEnd := 0
	for i, seg := range raw {
		start := max(seg.Start-hop, 0, prevEnd)
		end := min(seg.End+hop, n)
		if i+1 < len(raw) {
			end = min(end, raw[i+1].Start)
		}
		if end <= start {
			continue
		}
		out = append(out, Segment{Start: start, End: end})
		prevEnd = end
	}
	return out
}
