package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"wrapal.click/internal/audio"
	"wrapal.click/internal/journal"
	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

var ErrStreamFailed = errors.New("stream creation failed")

// session holds one opened PCM stream and everything needed to tear it down
type session struct {
	path      string
	format    audio.EncodingFormat
	configure *audio.Configure
	stream    pcm.Stream
	library   io.Closer
}

// openSession opens path, resolves formatName ("auto" sniffs the content)
// and creates a PCM stream. A broken stream is returned alongside an error
// wrapping ErrStreamFailed so callers can still report its format.
func (c *CLI) openSession(path, formatName string, stderr io.Writer) (*session, error) {
	slog.Debug("opening audio session", "path", path, "format", formatName)

	file, err := stream.OpenFile(c.mediaFS, path)
	if err != nil {
		return nil, err
	}

	format, err := c.resolveFormat(file, formatName)
	if err != nil {
		file.Close()
		return nil, err
	}

	s := &session{path: path, format: format}

	opts := audio.Options{
		Allocator: pcm.NewPoolAllocator(c.allocatorLimit()),
		ErrorSink: func(msg string) { fmt.Fprintf(stderr, "wrapal: %s\n", msg) },
	}
	if format == audio.FormatMpg123 {
		var backend, libPath string
		if c.cfg.Mpg123 != nil {
			backend, libPath = c.cfg.Mpg123.Backend, c.cfg.Mpg123.LibraryPath
		}
		lib, err := c.openMpg123(backend, libPath)
		if err != nil {
			file.Close()
			return nil, err
		}
		if closer, ok := lib.(io.Closer); ok {
			s.library = closer
		}
		opts.Mpg123 = lib
		opts.Mpg123Path = libPath
		slog.Debug("mpg123 library selected", "library", lib.Name())
	}

	s.configure = audio.NewConfigure(opts)
	s.stream = s.configure.CreateStream(format, file)

	msg, failed := s.configure.LastErrorInfo()
	if s.stream == nil {
		// a nil result leaves the source with us
		file.Close()
	}
	if failed {
		s.configure.OutputError(msg)
		return s, fmt.Errorf("%w: %s", ErrStreamFailed, msg)
	}

	slog.Info("audio session opened",
		"path", path,
		"format", format.String(),
		"pcm_format", s.stream.Format().String(),
		"size_bytes", s.stream.SizeInBytes())
	return s, nil
}

func (c *CLI) allocatorLimit() int {
	if c.cfg.Allocator == nil {
		return 0
	}
	return c.cfg.Allocator.MaxOutstandingKB * 1024
}

func (c *CLI) resolveFormat(file stream.ByteStream, formatName string) (audio.EncodingFormat, error) {
	if formatName == "" || formatName == "auto" {
		return audio.DetectFormat(file)
	}
	return audio.ParseFormat(formatName)
}

// close releases the stream and any shared library it used
func (s *session) close() {
	if s == nil {
		return
	}
	if s.stream != nil {
		s.stream.Release()
		s.stream = nil
	}
	if s.library != nil {
		if err := s.library.Close(); err != nil {
			slog.Warn("failed to close mpg123 library", "error", err)
		}
		s.library = nil
	}
}

// duration returns the playing time implied by the stream size
func duration(f pcm.Format, size uint32) time.Duration {
	rate := f.BytesPerSecond()
	if rate == 0 {
		return 0
	}
	return time.Duration(uint64(size) * uint64(time.Second) / rate)
}

// entry builds a journal entry describing s
func (s *session) entry(command string) journal.Entry {
	e := journal.Entry{
		Command: command,
		Path:    s.path,
		Format:  s.format.String(),
	}
	if s.stream == nil {
		// the dispatcher only returns nil here when allocation failed
		e.Code = pcm.CodeOutOfMemory.String()
		if msg, ok := s.configure.LastErrorInfo(); ok {
			e.Message = msg
		}
		return e
	}

	f := s.stream.Format()
	e.Code = s.stream.Code().String()
	e.Channels = int(f.Channels)
	e.SampleRate = int(f.SamplesPerSec)
	e.BlockAlign = int(f.BlockAlign)
	e.Tag = f.Tag.String()
	e.SizeBytes = int64(s.stream.SizeInBytes())
	if msg, ok := s.stream.LastErrorInfo(); ok {
		e.Message = msg
	}
	return e
}

// failureEntry records a run that never produced a stream
func failureEntry(command, path string, err error) journal.Entry {
	code := pcm.CodeIllegalFile
	if errors.Is(err, audio.ErrUnknownFormat) {
		code = pcm.CodeUnsupportedFormat
	}
	return journal.Entry{
		Command: command,
		Path:    path,
		Format:  "unknown",
		Code:    code.String(),
		Message: err.Error(),
	}
}

// record writes e to the journal when one is available
func (c *CLI) record(ctx context.Context, e journal.Entry) {
	j := c.openJournal()
	if j == nil {
		return
	}
	if _, err := j.Record(ctx, e); err != nil {
		slog.Warn("failed to record run in journal", "path", e.Path, "error", err)
	}
}
