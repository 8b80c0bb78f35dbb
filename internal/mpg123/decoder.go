package mpg123

import (
	"fmt"
	"io"
	"log/slog"

	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

// primeSize is the allocator block, used for the priming read
const primeSize = 1024

// maxEmptyReads bounds retries on reads that return no data with a
// non-terminal status
const maxEmptyReads = 4

// Decoder is a PCM stream over an mpg123 handle
type Decoder struct {
	pcm.Base
	lib      Library
	handle   Handle
	reader   *stream.Reader
	encoding Encoding
	pos      uint32
}

// New opens file through lib. It returns nil when the host allocator cannot
// supply the instance block.
func New(host pcm.Host, file stream.ByteStream, lib Library) *Decoder {
	slog.Debug("creating mpg123 decoder", "size_bytes", file.SizeInBytes())

	d := &Decoder{lib: lib}
	if !d.Init(host, file, primeSize, d.close) {
		return nil
	}
	d.reader = stream.NewReader(file)

	if lib == nil {
		slog.Error("mpg123 decoder created without a library")
		d.Fail(pcm.CodeIllegalFile)
		return d
	}

	if code := d.open(); code != pcm.CodeOK {
		d.Fail(code)
		slog.Warn("mpg123 stream rejected", "library", lib.Name(), "code", code.String())
		return d
	}

	slog.Info("mpg123 decoder ready",
		"library", lib.Name(),
		"channels", d.Format().Channels,
		"sample_rate", d.Format().SamplesPerSec,
		"encoding", fmt.Sprintf("0x%x", int32(d.encoding)),
		"decoded_bytes", d.SizeInBytes())
	return d
}

func errnoCode(e Errno) pcm.ErrorCode {
	if e == OutOfMem {
		return pcm.CodeOutOfMemory
	}
	return pcm.CodeIllegalFile
}

func (d *Decoder) open() pcm.ErrorCode {
	h, e := d.lib.NewHandle()
	if e != OK || h == nil {
		return errnoCode(e)
	}
	d.handle = h

	if e := h.ReplaceReader(d.reader); e != OK {
		return errnoCode(e)
	}
	if e := h.Open(); e != OK {
		return errnoCode(e)
	}

	rate, channels, encoding, e := h.GetFormat()
	if e != OK {
		return errnoCode(e)
	}
	if encoding != EncSigned16 && encoding != EncFloat32 {
		slog.Warn("mpg123 encoding not supported", "encoding", fmt.Sprintf("0x%x", int32(encoding)))
		return pcm.CodeUnsupportedFormat
	}
	if channels <= 0 || channels > 0xFF || rate <= 0 {
		return pcm.CodeIllegalFile
	}

	if e := h.FormatNone(); e != OK {
		return errnoCode(e)
	}
	if e := h.Format(rate, channels, encoding); e != OK {
		return errnoCode(e)
	}

	format := pcm.Format{Channels: uint16(channels), SamplesPerSec: uint32(rate)}
	switch {
	case encoding&EncFloat64 != 0:
		format.BlockAlign, format.Tag = uint16(8*channels), pcm.TagIEEEFloat
	case encoding&EncFloat32 != 0:
		format.BlockAlign, format.Tag = uint16(4*channels), pcm.TagIEEEFloat
	case encoding&Enc16 != 0:
		format.BlockAlign, format.Tag = uint16(2*channels), pcm.TagPCM
	default:
		format.BlockAlign, format.Tag = uint16(channels), pcm.TagPCM
	}

	length := h.Length()
	if length <= 0 {
		slog.Warn("mpg123 stream length unknown", "length", length)
		return pcm.CodeIllegalFile
	}
	size := length * int64(format.BlockAlign)
	if size > stream.MaxSize {
		slog.Warn("mpg123 stream too long, truncating", "decoded_bytes", size)
		size = stream.MaxSize
	}

	d.encoding = encoding
	d.SetFormat(format)
	d.SetSize(uint32(size))

	// warm the library buffers, then rewind so the stream starts at zero
	if _, e := h.Read(d.Block()); e != OK && e != Done && e != NewFormat && e != NeedMore {
		slog.Debug("mpg123 priming read failed", "errno", e.String())
	}
	if _, e := h.Seek(0, SeekSet); e != OK {
		slog.Warn("mpg123 rewind after priming failed", "errno", e.String())
	}
	return pcm.CodeOK
}

// Encoding returns the negotiated mpg123 encoding
func (d *Decoder) Encoding() Encoding { return d.encoding }

func (d *Decoder) close() {
	if d.handle != nil {
		d.handle.Delete()
		d.handle = nil
	}
}

func (d *Decoder) Seek(offset int64, move stream.Move) (uint32, error) {
	if move == stream.MoveCurrent && offset == 0 {
		return d.pos, nil
	}
	if !d.OK() || d.handle == nil {
		return d.pos, nil
	}

	align := uint32(d.Format().BlockAlign)
	target := stream.Resolve(d.pos, d.SizeInBytes(), offset, move)

	got, e := d.handle.Seek(int64(target/align), SeekSet)
	if e != OK || got < 0 {
		slog.Warn("mpg123 seek failed", "target", target, "errno", e.String())
		return d.pos, fmt.Errorf("%w: mpg123 %s", pcm.ErrSeekFailed, e)
	}

	d.pos = stream.Clamp(got*int64(align), d.SizeInBytes())
	if rem := target - min(target, d.pos); rem > 0 && rem < align {
		var skip [8 * 0xFF]byte
		if _, err := d.ReadNext(skip[:rem]); err != nil && err != io.EOF {
			return d.pos, err
		}
	}
	return d.pos, nil
}

func (d *Decoder) ReadNext(p []byte) (int, error) {
	if !d.OK() {
		return 0, fmt.Errorf("mpg123 stream unusable: %w", d.Code().Err())
	}
	if len(p) == 0 || d.handle == nil {
		return 0, nil
	}

	remaining := d.SizeInBytes() - min(d.pos, d.SizeInBytes())
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint32(len(p)) > remaining {
		p = p[:remaining]
	}

	for attempt := 0; ; attempt++ {
		n, e := d.handle.Read(p)
		d.pos += uint32(n)

		switch e {
		case OK, NewFormat, NeedMore:
			if n > 0 {
				return n, nil
			}
			if attempt+1 >= maxEmptyReads {
				return 0, io.EOF
			}
		case Done:
			if n > 0 {
				return n, nil
			}
			return 0, io.EOF
		default:
			d.Fail(pcm.CodeDecodeError)
			slog.Error("mpg123 decode failed", "position", d.pos, "errno", e.String())
			return n, fmt.Errorf("%w: mpg123 %s", pcm.ErrDecodeError, e)
		}
	}
}

// Recreate rebinds the decoder to file and rewinds to the first frame
func (d *Decoder) Recreate(file stream.ByteStream) {
	d.Base.Recreate(file)
	d.reader.Rebind(file)
	if d.handle == nil || !d.OK() {
		return
	}
	if _, e := d.handle.Seek(0, SeekSet); e != OK {
		slog.Warn("mpg123 rewind after recreate failed", "errno", e.String())
		return
	}
	d.pos = 0
}

var _ pcm.Stream = (*Decoder)(nil)
