package pcm

import "fmt"

// FormatTag identifies the sample encoding of a PCM stream
type FormatTag uint16

const (
	TagPCM       FormatTag = 1
	TagIEEEFloat FormatTag = 3
)

func (t FormatTag) String() string {
	switch t {
	case TagPCM:
		return "pcm"
	case TagIEEEFloat:
		return "ieee_float"
	default:
		return fmt.Sprintf("tag(0x%04X)", uint16(t))
	}
}

// Format describes decoded PCM. It is set once during decoder construction.
type Format struct {
	Channels      uint16
	SamplesPerSec uint32
	// BlockAlign is the byte size of one frame across all channels
	BlockAlign uint16
	Tag        FormatTag
}

// BytesPerSample returns the per-channel sample width implied by BlockAlign
func (f Format) BytesPerSample() int {
	if f.Channels == 0 {
		return 0
	}
	return int(f.BlockAlign) / int(f.Channels)
}

// BytesPerSecond returns the decoded data rate
func (f Format) BytesPerSecond() uint64 {
	return uint64(f.SamplesPerSec) * uint64(f.BlockAlign)
}

// Consistent reports whether BlockAlign is a whole multiple of Channels
func (f Format) Consistent() bool {
	return f.Channels > 0 && f.BlockAlign > 0 && int(f.BlockAlign)%int(f.Channels) == 0
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dch %dHz align=%d", f.Tag, f.Channels, f.SamplesPerSec, f.BlockAlign)
}
