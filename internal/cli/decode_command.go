package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"wrapal.click/internal/config"
	"wrapal.click/internal/stream"
)

func newDecodeCommand(c *CLI) *cobra.Command {
	var format string
	var chunk int
	var offset int64

	decodeCmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Decode an audio file end to end and report its health",
		Long: `Pull the whole PCM stream of an audio file in fixed size reads and report
how many bytes were produced against the declared size.

Progress is shown on stderr when it is a terminal.

Examples:
  wrapal decode track.mp3
  wrapal decode --chunk 16384 track.ogg
  wrapal decode --offset 176400 track.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDecode(cmd, args[0], format, chunk, offset)
		},
	}

	decodeCmd.Flags().StringVar(&format, "format", "auto", "Encoding (auto, wav, ogg, mp3)")
	decodeCmd.Flags().IntVar(&chunk, "chunk", 0, "Read size in bytes (0 = read_chunk_bytes from config)")
	decodeCmd.Flags().Int64Var(&offset, "offset", 0, "PCM byte position to start decoding from")

	return decodeCmd
}

// DecodeResult summarises one decode run
type DecodeResult struct {
	Declared uint32
	Start    uint32
	Read     int64
	Reads    int
	Err      error
}

// Complete reports whether everything after Start was produced
func (r DecodeResult) Complete() bool {
	return r.Err == nil && r.Read == int64(r.Declared)-int64(r.Start)
}

func (c *CLI) runDecode(cmd *cobra.Command, path, format string, chunk int, offset int64) error {
	slog.Debug("running decode command", "path", path, "format", format, "chunk", chunk, "offset", offset)

	if chunk < 0 {
		return fmt.Errorf("chunk must be >= 0, got %d", chunk)
	}
	if chunk == 0 {
		chunk = c.cfg.ReadChunkBytes
	}
	if chunk == 0 {
		chunk = config.DefaultReadChunkBytes
	}

	s, err := c.openSession(path, format, cmd.ErrOrStderr())
	defer s.close()
	if s == nil {
		c.record(cmd.Context(), failureEntry("decode", path, err))
		return err
	}
	if s.stream == nil || err != nil {
		c.record(cmd.Context(), s.entry("decode"))
		return err
	}

	var progress io.Writer
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && c.isInteractiveTerminal(int(f.Fd())) {
		progress = f
	}

	result := c.decodeAll(s, chunk, offset, progress)

	entry := s.entry("decode")
	entry.BytesRead = result.Read
	c.record(cmd.Context(), entry)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "path:     %s\n", path)
	fmt.Fprintf(out, "format:   %s (%s)\n", s.format, s.stream.Format())
	fmt.Fprintf(out, "decoded:  %d of %d bytes in %d reads\n", result.Read, int64(result.Declared)-int64(result.Start), result.Reads)
	fmt.Fprintf(out, "status:   %s\n", entry.Code)

	if result.Err != nil {
		return fmt.Errorf("decode stopped after %d bytes: %w", result.Read, result.Err)
	}
	if !result.Complete() {
		slog.Warn("stream ended before its declared size",
			"path", path,
			"declared", result.Declared,
			"read", result.Read)
	}
	return nil
}

// decodeAll reads s from offset to the end in chunk sized reads
func (c *CLI) decodeAll(s *session, chunk int, offset int64, progress io.Writer) DecodeResult {
	result := DecodeResult{Declared: s.stream.SizeInBytes()}

	if offset != 0 {
		pos, err := s.stream.Seek(offset, stream.MoveBegin)
		if err != nil {
			result.Err = err
			return result
		}
		result.Start = pos
	}

	buf := make([]byte, chunk)
	remaining := int64(result.Declared) - int64(result.Start)
	lastPercent := -1

	for {
		n, err := s.stream.ReadNext(buf)
		result.Read += int64(n)
		result.Reads++

		if progress != nil && remaining > 0 {
			percent := int(result.Read * 100 / remaining)
			if percent != lastPercent {
				fmt.Fprintf(progress, "\rdecoding: %3d%%", percent)
				lastPercent = percent
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Err = err
			break
		}
		if n == 0 {
			// no progress and no EOF
			break
		}
	}

	if progress != nil {
		fmt.Fprintln(progress)
	}

	slog.Info("decode finished",
		"path", s.path,
		"bytes_read", result.Read,
		"reads", result.Reads,
		"error", result.Err)
	return result
}
