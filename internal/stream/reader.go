package stream

import (
	"fmt"
	"io"
)

// Reader adapts a ByteStream to io.Reader and io.Seeker for codec libraries
// that pull their input through Go interfaces. It does not own the stream:
// there is no Close, the decoder holding the stream closes it.
type Reader struct {
	src ByteStream
}

// NewReader binds a Reader to src
func NewReader(src ByteStream) *Reader {
	return &Reader{src: src}
}

// Rebind points the adapter at a different stream
func (r *Reader) Rebind(src ByteStream) {
	r.src = src
}

// Source returns the bound stream
func (r *Reader) Source() ByteStream { return r.src }

// Read returns io.EOF once the stream yields no more bytes
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := r.src.ReadNext(p)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seek translates io whence values; out-of-range targets clamp rather than fail
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	move, err := MoveFromWhence(whence)
	if err != nil {
		return int64(Tell(r.src)), err
	}
	return int64(r.src.Seek(offset, move)), nil
}

// Tell reports the current position
func (r *Reader) Tell() int64 {
	return int64(Tell(r.src))
}

// MoveFromWhence maps io.Seek* constants to Move
func MoveFromWhence(whence int) (Move, error) {
	switch whence {
	case io.SeekStart:
		return MoveBegin, nil
	case io.SeekCurrent:
		return MoveCurrent, nil
	case io.SeekEnd:
		return MoveEnd, nil
	default:
		return MoveBegin, fmt.Errorf("invalid whence: %d", whence)
	}
}
