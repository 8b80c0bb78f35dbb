// Package vorbis decodes Ogg/Vorbis into 16-bit signed little-endian PCM.
package vorbis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/jfreymuth/oggvorbis"

	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

const (
	// blockSize is the staging buffer for converted samples
	blockSize      = 1024
	bytesPerSample = 2
	maxChannels    = 255
)

// Source is the subset of oggvorbis.Reader the decoder drives
type Source interface {
	Channels() int
	SampleRate() int
	// Length is the total number of frames
	Length() int64
	Position() int64
	SetPosition(frame int64) error
	// Read decodes interleaved samples into p and returns the count of values
	Read(p []float32) (int, error)
}

// Opener opens a Source over r
type Opener func(r io.ReadSeeker) (Source, error)

// OpenOgg is the Opener backed by github.com/jfreymuth/oggvorbis
func OpenOgg(r io.ReadSeeker) (Source, error) {
	rd, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// Decoder is a PCM stream over an Ogg/Vorbis byte source
type Decoder struct {
	pcm.Base
	reader  *stream.Reader
	src     Source
	samples []float32

	// staged bytes in the block not yet delivered
	carryOff int
	carryN   int
	eof      bool
	pending  error

	pos uint32
}

// New opens file with the oggvorbis library
func New(host pcm.Host, file stream.ByteStream) *Decoder {
	return NewWithOpener(host, file, OpenOgg)
}

// NewWithOpener opens file through open. It returns nil when the host
// allocator cannot supply the staging block.
func NewWithOpener(host pcm.Host, file stream.ByteStream, open Opener) *Decoder {
	slog.Debug("creating vorbis decoder", "size_bytes", file.SizeInBytes())

	d := &Decoder{}
	if !d.Init(host, file, blockSize, d.close) {
		return nil
	}
	d.reader = stream.NewReader(file)

	src, err := open(d.reader)
	if err != nil {
		slog.Warn("vorbis open failed", "error", err)
		d.Fail(pcm.CodeIllegalFile)
		return d
	}

	channels := src.Channels()
	if channels <= 0 || channels > maxChannels || src.SampleRate() <= 0 {
		slog.Warn("vorbis stream has invalid layout",
			"channels", channels,
			"sample_rate", src.SampleRate())
		d.Fail(pcm.CodeIllegalFile)
		return d
	}

	format := pcm.Format{
		Channels:      uint16(channels),
		SamplesPerSec: uint32(src.SampleRate()),
		BlockAlign:    uint16(bytesPerSample * channels),
		Tag:           pcm.TagPCM,
	}

	size := src.Length() * int64(format.BlockAlign)
	if size > stream.MaxSize {
		slog.Warn("vorbis stream too long, truncating", "decoded_bytes", size)
		size = stream.MaxSize
	}

	d.src = src
	d.samples = make([]float32, (blockSize/bytesPerSample/channels)*channels)
	d.SetFormat(format)
	d.SetSize(uint32(max(size, 0)))

	slog.Info("vorbis decoder ready",
		"channels", format.Channels,
		"sample_rate", format.SamplesPerSec,
		"frames", src.Length(),
		"decoded_bytes", d.SizeInBytes())
	return d
}

func (d *Decoder) close() {
	d.src = nil
	d.samples = nil
}

func (d *Decoder) Seek(offset int64, move stream.Move) (uint32, error) {
	if move == stream.MoveCurrent && offset == 0 {
		return d.pos, nil
	}
	if d.src == nil {
		return d.pos, nil
	}

	align := uint32(d.Format().BlockAlign)
	target := stream.Resolve(d.pos, d.SizeInBytes(), offset, move)
	frame := target / align

	if err := d.src.SetPosition(int64(frame)); err != nil {
		slog.Warn("vorbis seek failed", "target", target, "frame", frame, "error", err)
		return d.pos, fmt.Errorf("%w: frame %d: %w", pcm.ErrSeekFailed, frame, err)
	}

	d.pos = frame * align
	d.carryOff, d.carryN = 0, 0
	d.eof = false
	d.pending = nil

	if rem := target - d.pos; rem > 0 {
		var skip [2 * maxChannels]byte
		if _, err := d.ReadNext(skip[:rem]); err != nil && !errors.Is(err, io.EOF) {
			return d.pos, err
		}
	}
	return d.pos, nil
}

func (d *Decoder) ReadNext(p []byte) (int, error) {
	if !d.OK() {
		return 0, fmt.Errorf("vorbis stream unusable: %w", d.Code().Err())
	}
	if len(p) == 0 || d.src == nil {
		return 0, nil
	}
	if size := d.SizeInBytes(); size > 0 {
		remaining := size - min(d.pos, size)
		if remaining == 0 {
			return 0, io.EOF
		}
		if uint32(len(p)) > remaining {
			p = p[:remaining]
		}
	}

	block := d.Block()
	total := 0
	for total < len(p) {
		if d.carryOff == d.carryN {
			if d.eof {
				break
			}
			if err := d.decode(); err != nil {
				d.Fail(pcm.CodeDecodeError)
				d.pos += uint32(total)
				slog.Error("vorbis decode failed", "position", d.pos, "error", err)
				return total, fmt.Errorf("%w: %w", pcm.ErrDecodeError, err)
			}
			if d.carryN == 0 {
				break
			}
		}
		n := copy(p[total:], block[d.carryOff:d.carryN])
		d.carryOff += n
		total += n
	}

	d.pos += uint32(total)
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// decode stages the next batch of samples in the block as int16 LE
func (d *Decoder) decode() error {
	d.carryOff, d.carryN = 0, 0
	if d.pending != nil {
		return d.pending
	}

	n, err := d.src.Read(d.samples)
	n -= n % int(d.Format().Channels)

	block := d.Block()
	for i, v := range d.samples[:n] {
		binary.LittleEndian.PutUint16(block[i*bytesPerSample:], uint16(toInt16(v)))
	}
	d.carryN = n * bytesPerSample

	switch {
	case errors.Is(err, io.EOF):
		d.eof = true
	case err != nil:
		if n == 0 {
			return err
		}
		d.pending = err
	case n == 0:
		d.eof = true
	}
	return nil
}

func toInt16(v float32) int16 {
	if v >= 1 {
		return math.MaxInt16
	}
	if v <= -1 {
		return -math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}

// Recreate rebinds the decoder to file and rewinds to the first frame
func (d *Decoder) Recreate(file stream.ByteStream) {
	d.Base.Recreate(file)
	d.reader.Rebind(file)
	d.carryOff, d.carryN = 0, 0
	d.eof = false
	d.pending = nil
	if d.src == nil {
		return
	}
	if err := d.src.SetPosition(0); err != nil {
		slog.Warn("vorbis rewind after recreate failed", "error", err)
		return
	}
	d.pos = 0
}

var _ pcm.Stream = (*Decoder)(nil)
