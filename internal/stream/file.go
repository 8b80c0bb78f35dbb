package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// FileStream is a read-only ByteStream backed by an afero file
type FileStream struct {
	file   afero.File
	path   string
	length uint32
	offset uint32
}

// OpenFile opens path on fsys as a ByteStream
func OpenFile(fsys afero.Fs, path string) (*FileStream, error) {
	slog.Debug("opening file stream", "path", path)

	file, err := fsys.Open(path)
	if err != nil {
		slog.Error("failed to open file stream", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		slog.Error("failed to stat file stream", "path", path, "error", err)
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	if info.Size() > MaxSize {
		file.Close()
		slog.Error("file too large for stream", "path", path, "size_bytes", info.Size())
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	slog.Debug("file stream opened", "path", path, "size_bytes", info.Size())

	return &FileStream{
		file:   file,
		path:   path,
		length: uint32(info.Size()),
	}, nil
}

// Path returns the path the stream was opened with
func (s *FileStream) Path() string { return s.path }

func (s *FileStream) Seek(offset int64, move Move) uint32 {
	if move == MoveCurrent && offset == 0 {
		return s.offset
	}

	target := Resolve(s.offset, s.length, offset, move)
	if s.file == nil {
		return s.offset
	}
	if _, err := s.file.Seek(int64(target), io.SeekStart); err != nil {
		slog.Error("file seek failed", "path", s.path, "target", target, "error", err)
		return s.offset
	}

	s.offset = target
	return s.offset
}

func (s *FileStream) ReadNext(p []byte) int {
	if s.file == nil {
		return 0
	}

	n, err := io.ReadFull(s.file, p)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		slog.Error("file read failed", "path", s.path, "offset", s.offset, "error", err)
	}

	s.offset = Clamp(int64(s.offset)+int64(n), s.length)
	return n
}

func (s *FileStream) SizeInBytes() uint32 { return s.length }

func (s *FileStream) Close() error {
	if s.file == nil {
		return nil
	}

	slog.Debug("closing file stream", "path", s.path)
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
