package pcm

import "log/slog"

// SmallSpaceThreshold bounds the size of blocks served by an Allocator
const SmallSpaceThreshold = 4096

// Allocator supplies small scratch blocks for decoder instances
type Allocator interface {
	// SmallAlloc returns a zeroed block of len size, or nil when exhausted
	SmallAlloc(size int) []byte
	// SmallFree returns a block obtained from SmallAlloc
	SmallFree(block []byte)
}

// MessageKey selects an entry in the host's runtime message table
type MessageKey int

const (
	MessageOutOfMemory MessageKey = iota
)

// DefaultMessages is the built-in runtime message table
var DefaultMessages = MessageTable{
	MessageOutOfMemory: "Out of Memory",
}

// MessageTable maps runtime message keys to display text
type MessageTable map[MessageKey]string

// Lookup returns the text for key, falling back to DefaultMessages
func (t MessageTable) Lookup(key MessageKey) string {
	if msg, ok := t[key]; ok {
		return msg
	}
	if msg, ok := DefaultMessages[key]; ok {
		return msg
	}
	return "Unknown Message"
}

// Host is what the hosting configuration supplies to decoders
type Host interface {
	Allocator
	RuntimeMessage(key MessageKey) string
	OutputError(msg string)
}

// BasicHost is a Host assembled from parts
type BasicHost struct {
	Allocator
	Messages MessageTable
	// Sink receives OutputError messages in addition to the log
	Sink func(msg string)
}

// NewBasicHost returns a host over alloc with the default message table
func NewBasicHost(alloc Allocator) *BasicHost {
	return &BasicHost{Allocator: alloc, Messages: MessageTable{}}
}

func (h *BasicHost) RuntimeMessage(key MessageKey) string {
	return h.Messages.Lookup(key)
}

func (h *BasicHost) OutputError(msg string) {
	slog.Error("audio stream error", "message", msg)
	if h.Sink != nil {
		h.Sink(msg)
	}
}
