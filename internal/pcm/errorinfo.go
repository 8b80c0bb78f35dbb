package pcm

import "fmt"

// ErrorInfoLength is the capacity of an ErrorInfo slot in characters,
// including the terminator the fixed buffer historically reserved.
const ErrorInfoLength = 1024

// ErrorInfo is a fixed-capacity slot holding the last failure message.
// Messages longer than ErrorInfoLength-1 runes are truncated.
type ErrorInfo struct {
	buf [ErrorInfoLength]rune
	n   int
}

// Set replaces the stored message
func (e *ErrorInfo) Set(msg string) {
	e.n = 0
	for _, r := range msg {
		if e.n == ErrorInfoLength-1 {
			break
		}
		e.buf[e.n] = r
		e.n++
	}
}

// Setf formats into the slot
func (e *ErrorInfo) Setf(format string, args ...any) {
	e.Set(fmt.Sprintf(format, args...))
}

// String returns the stored message
func (e *ErrorInfo) String() string {
	return string(e.buf[:e.n])
}

// Empty reports whether no message is stored
func (e *ErrorInfo) Empty() bool { return e.n == 0 }

// Reset clears the slot
func (e *ErrorInfo) Reset() { e.n = 0 }

// CopyTo copies the stored message into dst and reports whether one existed
func (e *ErrorInfo) CopyTo(dst *ErrorInfo) bool {
	if e.n == 0 {
		return false
	}
	dst.buf = e.buf
	dst.n = e.n
	return true
}

// FormatErrorOOM writes the standard out-of-memory report for a failed
// construction at where into info.
func FormatErrorOOM(info *ErrorInfo, host Host, where string) {
	msg := DefaultMessages[MessageOutOfMemory]
	if host != nil {
		msg = host.RuntimeMessage(MessageOutOfMemory)
	}
	info.Setf("%s : %s", msg, where)
}
