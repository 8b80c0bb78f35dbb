package audio

import (
	"log/slog"

	"wrapal.click/internal/mpg123"
	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

// Options assembles a Configure
type Options struct {
	// Allocator defaults to an unbounded pcm.PoolAllocator
	Allocator pcm.Allocator
	Messages  pcm.MessageTable
	// ErrorSink receives OutputError messages
	ErrorSink func(msg string)
	// Mpg123 enables FormatMpg123 when set
	Mpg123 mpg123.Library
	// Mpg123Path is reported by Libmpg123Path
	Mpg123Path string
}

// Configure is the default hosting configuration: allocator, runtime
// messages, error output and a last-error slot for CreateStream.
type Configure struct {
	*pcm.BasicHost
	dispatcher *Dispatcher
	lastError  pcm.ErrorInfo
	mpg123Path string
}

// NewConfigure builds the default configuration
func NewConfigure(opts Options) *Configure {
	alloc := opts.Allocator
	if alloc == nil {
		alloc = pcm.NewPoolAllocator(0)
	}

	host := pcm.NewBasicHost(alloc)
	for k, v := range opts.Messages {
		host.Messages[k] = v
	}
	host.Sink = opts.ErrorSink

	c := &Configure{BasicHost: host, mpg123Path: opts.Mpg123Path}
	c.dispatcher = NewDispatcher(c, opts.Mpg123)

	slog.Debug("audio configure created",
		"mpg123_enabled", opts.Mpg123 != nil,
		"mpg123_path", opts.Mpg123Path)
	return c
}

// Dispatcher returns the dispatcher bound to this configuration
func (c *Configure) Dispatcher() *Dispatcher { return c.dispatcher }

// CreateStream dispatches into the configuration's own error slot
func (c *Configure) CreateStream(format EncodingFormat, file stream.ByteStream) pcm.Stream {
	c.lastError.Reset()
	return c.dispatcher.CreateStream(format, file, &c.lastError)
}

// LastErrorInfo returns the message recorded by the last CreateStream
func (c *Configure) LastErrorInfo() (string, bool) {
	if c.lastError.Empty() {
		return "", false
	}
	return c.lastError.String(), true
}

// Libmpg123Path returns the configured shared library path
func (c *Configure) Libmpg123Path() string { return c.mpg123Path }

var _ pcm.Host = (*Configure)(nil)
