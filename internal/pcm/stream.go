package pcm

import "wrapal.click/internal/stream"

// Stream is a pull-based source of decoded PCM. All offsets are PCM-domain
// byte positions, clamped to [0, SizeInBytes()].
//
// ReadNext returns (n, nil) for full or short reads, (0, io.EOF) once no PCM
// remains, and a non-nil error wrapping ErrDecodeError when decoding fails
// mid-stream. Seek reports library-rejected seeks with an error wrapping
// ErrSeekFailed.
//
// A Stream is not safe for concurrent use.
type Stream interface {
	Format() Format
	SizeInBytes() uint32
	Seek(offset int64, move stream.Move) (uint32, error)
	ReadNext(p []byte) (int, error)
	// Recreate closes the current byte source and takes ownership of file
	Recreate(file stream.ByteStream)
	Code() ErrorCode
	// LastErrorInfo returns the message for a non-OK code
	LastErrorInfo() (string, bool)
	AddRef() uint32
	Release() uint32
}

// Tell returns the current PCM position of s
func Tell(s Stream) uint32 {
	pos, _ := s.Seek(0, stream.MoveCurrent)
	return pos
}
