package pcm

import (
	"log/slog"

	"wrapal.click/internal/stream"
)

// MaxRefCount is the ceiling AddRef may not reach
const MaxRefCount = 255

// Base carries the state shared by every decoder backend: the owned byte
// source, format, decoded size, error code, reference count and allocator
// block. Backends embed it and provide Seek and ReadNext.
type Base struct {
	host     Host
	file     stream.ByteStream
	block    []byte
	format   Format
	size     uint32
	code     ErrorCode
	refs     uint32
	dead     bool
	teardown func()
}

// Init takes ownership of file and allocates a scratch block of blockSize
// bytes from host. It returns false when the allocation fails; in that case
// nothing is owned and the caller keeps file.
func (b *Base) Init(host Host, file stream.ByteStream, blockSize int, teardown func()) bool {
	if blockSize > 0 {
		block := host.SmallAlloc(blockSize)
		if block == nil {
			slog.Warn("decoder block allocation failed", "size_bytes", blockSize)
			return false
		}
		b.block = block
	}
	b.host = host
	b.file = file
	b.teardown = teardown
	b.refs = 1
	return true
}

// File returns the owned byte source
func (b *Base) File() stream.ByteStream { return b.file }

// Block returns the scratch block from the allocator
func (b *Base) Block() []byte { return b.block }

// Host returns the hosting configuration
func (b *Base) Host() Host { return b.host }

func (b *Base) SetFormat(f Format) { b.format = f }

func (b *Base) SetSize(n uint32) { b.size = n }

func (b *Base) Format() Format { return b.format }

func (b *Base) SizeInBytes() uint32 { return b.size }

func (b *Base) Code() ErrorCode { return b.code }

// Fail records code unless a failure is already recorded
func (b *Base) Fail(code ErrorCode) {
	if b.code == CodeOK {
		b.code = code
	}
}

// OK reports whether no failure is recorded
func (b *Base) OK() bool { return b.code == CodeOK }

func (b *Base) LastErrorInfo() (string, bool) {
	if b.code == CodeOK {
		return "", false
	}
	return b.code.Message(b.host), true
}

func (b *Base) Recreate(file stream.ByteStream) {
	if b.file != nil && b.file != file {
		if err := b.file.Close(); err != nil {
			slog.Warn("failed to close replaced byte stream", "error", err)
		}
	}
	b.file = file
}

func (b *Base) AddRef() uint32 {
	if b.dead {
		panic("pcm: AddRef on released stream")
	}
	if b.refs+1 >= MaxRefCount {
		panic("pcm: reference count ceiling reached")
	}
	b.refs++
	return b.refs
}

func (b *Base) Release() uint32 {
	if b.dead || b.refs == 0 {
		panic("pcm: Release on released stream")
	}
	b.refs--
	if b.refs == 0 {
		b.destroy()
	}
	return b.refs
}

// Refs returns the current reference count
func (b *Base) Refs() uint32 { return b.refs }

// Released reports whether teardown has run
func (b *Base) Released() bool { return b.dead }

func (b *Base) destroy() {
	b.dead = true
	if b.teardown != nil {
		b.teardown()
		b.teardown = nil
	}
	if b.file != nil {
		if err := b.file.Close(); err != nil {
			slog.Warn("failed to close byte stream", "error", err)
		}
		b.file = nil
	}
	if b.block != nil {
		b.host.SmallFree(b.block)
		b.block = nil
	}
	slog.Debug("decoder released", "format", b.format.String(), "code", b.code.String())
}
