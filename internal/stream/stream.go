package stream

import (
	"errors"
	"math"
)

// Move selects the origin of a Seek
type Move uint32

const (
	MoveBegin Move = iota
	MoveCurrent
	MoveEnd
)

// MaxSize is the largest stream a ByteStream can describe
const MaxSize = math.MaxUint32

// Common stream errors
var (
	ErrTooLarge   = errors.New("stream exceeds 4GiB")
	ErrNotRegular = errors.New("not a regular file")
)

func (m Move) String() string {
	switch m {
	case MoveBegin:
		return "begin"
	case MoveCurrent:
		return "current"
	case MoveEnd:
		return "end"
	default:
		return "unknown"
	}
}

// ByteStream is a seekable, finite (< 4GiB) byte source with position tracking.
//
// Seek never fails: the resulting position is clamped into [0, SizeInBytes()].
// ReadNext returns the number of bytes copied into p; a short read means the
// end of data was reached.
type ByteStream interface {
	// Seek moves the position and returns the resulting absolute position
	Seek(offset int64, move Move) uint32
	// ReadNext reads up to len(p) bytes and returns the count read
	ReadNext(p []byte) int
	// SizeInBytes returns the total size, fixed at construction
	SizeInBytes() uint32
	// Close releases the underlying resource
	Close() error
}

// Tell returns the current position of s
func Tell(s ByteStream) uint32 {
	return s.Seek(0, MoveCurrent)
}

// Resolve computes the clamped absolute position for a seek of offset
// relative to move, given the current position and total size.
func Resolve(current, size uint32, offset int64, move Move) uint32 {
	var base int64
	switch move {
	case MoveCurrent:
		base = int64(current)
	case MoveEnd:
		base = int64(size)
	}
	return Clamp(base+offset, size)
}

// Clamp bounds pos to [0, size]
func Clamp(pos int64, size uint32) uint32 {
	if pos < 0 {
		return 0
	}
	if pos > int64(size) {
		return size
	}
	return uint32(pos)
}
