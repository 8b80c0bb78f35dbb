package mpg123

import (
	"errors"
	"io"
	"log/slog"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces interleaved 16-bit stereo
const (
	nativeChannels   = 2
	nativeFrameBytes = 4
)

// NativeLibrary serves the handle contract with github.com/hajimehoshi/go-mp3
type NativeLibrary struct{}

// NewNativeLibrary returns the pure Go library
func NewNativeLibrary() *NativeLibrary { return &NativeLibrary{} }

func (NativeLibrary) Name() string { return "go-mp3" }

func (NativeLibrary) NewHandle() (Handle, Errno) {
	return &nativeHandle{}, OK
}

type nativeHandle struct {
	src    io.ReadSeeker
	dec    *mp3.Decoder
	locked bool
	// pos is the next frame to be produced
	pos int64
	// partial holds bytes of a frame split by the last read
	partial int
}

func (h *nativeHandle) ReplaceReader(r io.ReadSeeker) Errno {
	h.src = r
	return OK
}

func (h *nativeHandle) Open() Errno {
	if h.src == nil {
		return BadHandle
	}
	dec, err := mp3.NewDecoder(h.src)
	if err != nil {
		slog.Debug("go-mp3 rejected stream", "error", err)
		return Err
	}
	h.dec = dec
	h.pos = 0
	return OK
}

func (h *nativeHandle) GetFormat() (int64, int, Encoding, Errno) {
	if h.dec == nil {
		return 0, 0, 0, BadHandle
	}
	return int64(h.dec.SampleRate()), nativeChannels, EncSigned16, OK
}

func (h *nativeHandle) FormatNone() Errno {
	if h.dec == nil {
		return BadHandle
	}
	h.locked = false
	return OK
}

// Format accepts only the fixed output format of go-mp3
func (h *nativeHandle) Format(rate int64, channels int, encoding Encoding) Errno {
	if h.dec == nil {
		return BadHandle
	}
	if rate != int64(h.dec.SampleRate()) || channels != nativeChannels || encoding != EncSigned16 {
		return Err
	}
	h.locked = true
	return OK
}

func (h *nativeHandle) Length() int64 {
	if h.dec == nil {
		return -1
	}
	n := h.dec.Length()
	if n < 0 {
		return n
	}
	return n / nativeFrameBytes
}

func (h *nativeHandle) Read(p []byte) (int, Errno) {
	if h.dec == nil {
		return 0, BadHandle
	}
	n, err := io.ReadFull(h.dec, p)
	h.advance(n)
	switch {
	case err == nil:
		return n, OK
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, Done
	default:
		slog.Debug("go-mp3 read failed", "frame", h.pos, "error", err)
		return n, Err
	}
}

func (h *nativeHandle) advance(n int) {
	total := h.partial + n
	h.pos += int64(total / nativeFrameBytes)
	h.partial = total % nativeFrameBytes
}

func (h *nativeHandle) Seek(frame int64, whence int) (int64, Errno) {
	if h.dec == nil {
		return int64(BadHandle), BadHandle
	}
	if whence != SeekSet {
		return int64(Err), Err
	}
	got, err := h.dec.Seek(frame*nativeFrameBytes, io.SeekStart)
	if err != nil {
		slog.Debug("go-mp3 seek failed", "frame", frame, "error", err)
		return int64(NoSeek), NoSeek
	}
	h.pos = got / nativeFrameBytes
	h.partial = 0
	return h.pos, OK
}

func (h *nativeHandle) Tell() int64 { return h.pos }

func (h *nativeHandle) Delete() {
	h.dec = nil
	h.src = nil
}
