package pcm

import "errors"

// ErrorCode is the failure state recorded on a decoder instance
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeIllegalFile
	CodeUnsupportedFormat
	CodeDecodeError
	CodeOutOfMemory
)

// Decoder errors
var (
	ErrIllegalFile       = errors.New("illegal file")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecodeError       = errors.New("decode error")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrSeekFailed        = errors.New("seek failed")
)

// Err returns the sentinel error for c, or nil for CodeOK
func (c ErrorCode) Err() error {
	switch c {
	case CodeOK:
		return nil
	case CodeIllegalFile:
		return ErrIllegalFile
	case CodeUnsupportedFormat:
		return ErrUnsupportedFormat
	case CodeDecodeError:
		return ErrDecodeError
	case CodeOutOfMemory:
		return ErrOutOfMemory
	default:
		return errors.New("unknown error")
	}
}

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeIllegalFile:
		return "illegal_file"
	case CodeUnsupportedFormat:
		return "unsupported_format"
	case CodeDecodeError:
		return "decode_error"
	case CodeOutOfMemory:
		return "out_of_memory"
	default:
		return "unknown"
	}
}

// Message returns the human-readable text for c. OutOfMemory text comes from
// the host message table so it can be localized.
func (c ErrorCode) Message(host Host) string {
	switch c {
	case CodeOK:
		return ""
	case CodeIllegalFile:
		return "Illegal File"
	case CodeUnsupportedFormat:
		return "Unsupported Format"
	case CodeDecodeError:
		return "Decode Error"
	case CodeOutOfMemory:
		if host != nil {
			return host.RuntimeMessage(MessageOutOfMemory)
		}
		return DefaultMessages[MessageOutOfMemory]
	default:
		return "Unknown Error"
	}
}
