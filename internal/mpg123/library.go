// Package mpg123 decodes MPEG audio through the libmpg123 handle protocol,
// either bound at runtime from the shared library or served by a pure Go
// implementation with the same contract.
package mpg123

import (
	"errors"
	"fmt"
	"io"
)

// Errno is an mpg123 status code
type Errno int32

const (
	OK        Errno = 0
	Err       Errno = -1
	NeedMore  Errno = -10
	NewFormat Errno = -11
	Done      Errno = -12
	OutOfMem  Errno = 7
	BadHandle Errno = 10
	NoSeek    Errno = 23
)

func (e Errno) String() string {
	switch e {
	case OK:
		return "ok"
	case Err:
		return "error"
	case NeedMore:
		return "need_more"
	case NewFormat:
		return "new_format"
	case Done:
		return "done"
	case OutOfMem:
		return "out_of_mem"
	case BadHandle:
		return "bad_handle"
	case NoSeek:
		return "no_seek"
	default:
		return fmt.Sprintf("errno(%d)", int32(e))
	}
}

// Encoding is the mpg123 sample encoding bitmask
type Encoding int32

const (
	Enc8         Encoding = 0x00f
	Enc16        Encoding = 0x040
	EncSigned    Encoding = 0x080
	EncSigned16  Encoding = Enc16 | EncSigned | 0x10
	EncFloat32   Encoding = 0x200
	EncFloat64   Encoding = 0x400
	EncUnsigned8 Encoding = 0x01
)

// SeekSet is the whence value for absolute sample seeks
const SeekSet = 0

// Library errors
var (
	ErrLibraryNotFound     = errors.New("mpg123 library not found")
	ErrMissingSymbols      = errors.New("mpg123 library is missing symbols")
	ErrInitFailed          = errors.New("mpg123 initialization failed")
	ErrUnsupportedPlatform = errors.New("mpg123 dynamic loading unsupported on this platform")
)

// Library creates decoding handles
type Library interface {
	Name() string
	NewHandle() (Handle, Errno)
}

// Handle is one mpg123 decoding session. Sample positions count frames
// (one sample per channel).
type Handle interface {
	// ReplaceReader installs read and seek callbacks over r
	ReplaceReader(r io.ReadSeeker) Errno
	Open() Errno
	GetFormat() (rate int64, channels int, encoding Encoding, code Errno)
	FormatNone() Errno
	Format(rate int64, channels int, encoding Encoding) Errno
	// Length is the total number of frames, or a non-positive value if unknown
	Length() int64
	Read(p []byte) (int, Errno)
	Seek(frame int64, whence int) (int64, Errno)
	Tell() int64
	Delete()
}
