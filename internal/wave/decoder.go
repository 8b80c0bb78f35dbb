// Package wave decodes RIFF/WAVE containers holding integer or float PCM.
package wave

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

const (
	// blockSize is the allocator block used as header scratch space
	blockSize       = 64
	headerSize      = 36
	chunkHeaderSize = 8
	coreFmtSize     = 16
)

var (
	tagRIFF = []byte("RIFF")
	tagWAVE = []byte("WAVE")
	tagFmt  = []byte("fmt ")
	tagFact = []byte("fact")
	tagData = []byte("data")
)

// Header is the fixed RIFF header and core fmt chunk
type Header struct {
	RiffSize       uint32
	FmtSize        uint32
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
}

// Decoder is a PCM stream over the data chunk of a WAVE file
type Decoder struct {
	pcm.Base
	header Header
	// anchor is the byte offset of the first data byte in the container
	anchor uint32
}

// New parses the container headers of file. It returns nil when the host
// allocator cannot supply the instance block; otherwise the returned decoder
// owns file and reports parse failures through Code.
func New(host pcm.Host, file stream.ByteStream) *Decoder {
	slog.Debug("creating wave decoder", "size_bytes", file.SizeInBytes())

	d := &Decoder{}
	if !d.Init(host, file, blockSize, nil) {
		return nil
	}

	if code := d.parse(); code != pcm.CodeOK {
		d.Fail(code)
		slog.Warn("wave header rejected", "code", code.String())
		return d
	}

	slog.Info("wave decoder ready",
		"channels", d.Format().Channels,
		"sample_rate", d.Format().SamplesPerSec,
		"bits_per_sample", d.header.BitsPerSample,
		"data_bytes", d.SizeInBytes())
	return d
}

func (d *Decoder) parse() pcm.ErrorCode {
	file := d.File()
	buf := d.Block()[:headerSize]

	if file.ReadNext(buf) != headerSize {
		return pcm.CodeIllegalFile
	}
	if !bytes.Equal(buf[0:4], tagRIFF) || !bytes.Equal(buf[8:12], tagWAVE) || !bytes.Equal(buf[12:16], tagFmt) {
		return pcm.CodeIllegalFile
	}

	le := binary.LittleEndian
	h := Header{
		RiffSize:       le.Uint32(buf[4:8]),
		FmtSize:        le.Uint32(buf[16:20]),
		FormatTag:      le.Uint16(buf[20:22]),
		Channels:       le.Uint16(buf[22:24]),
		SamplesPerSec:  le.Uint32(buf[24:28]),
		AvgBytesPerSec: le.Uint32(buf[28:32]),
		BlockAlign:     le.Uint16(buf[32:34]),
		BitsPerSample:  le.Uint16(buf[34:36]),
	}

	tag := pcm.FormatTag(h.FormatTag)
	if tag != pcm.TagPCM && tag != pcm.TagIEEEFloat {
		return pcm.CodeUnsupportedFormat
	}

	format := pcm.Format{
		Channels:      h.Channels,
		SamplesPerSec: h.SamplesPerSec,
		BlockAlign:    h.BlockAlign,
		Tag:           tag,
	}
	if h.FmtSize < coreFmtSize || !format.Consistent() {
		return pcm.CodeIllegalFile
	}
	// one frame is every channel's sample rounded up to whole bytes
	if h.BitsPerSample == 0 || int(h.BlockAlign) != int(h.Channels)*int((h.BitsPerSample+7)/8) {
		slog.Warn("wave block align does not match sample width",
			"block_align", h.BlockAlign,
			"channels", h.Channels,
			"bits_per_sample", h.BitsPerSample)
		return pcm.CodeIllegalFile
	}

	file.Seek(padded(h.FmtSize-coreFmtSize), stream.MoveCurrent)

	id, size, ok := d.readChunkHeader()
	if !ok {
		return pcm.CodeIllegalFile
	}
	if bytes.Equal(id, tagFact) {
		file.Seek(padded(size), stream.MoveCurrent)
		if id, size, ok = d.readChunkHeader(); !ok {
			return pcm.CodeIllegalFile
		}
	}
	if !bytes.Equal(id, tagData) {
		return pcm.CodeIllegalFile
	}

	d.anchor = stream.Tell(file)
	if avail := file.SizeInBytes() - d.anchor; size > avail {
		slog.Warn("wave data chunk truncated",
			"declared_bytes", size,
			"available_bytes", avail)
		size = avail
	}

	d.header = h
	d.SetFormat(format)
	d.SetSize(size)
	return pcm.CodeOK
}

// readChunkHeader reads an 8-byte chunk id and size into the block
func (d *Decoder) readChunkHeader() ([]byte, uint32, bool) {
	buf := d.Block()[headerSize : headerSize+chunkHeaderSize]
	if d.File().ReadNext(buf) != chunkHeaderSize {
		return nil, 0, false
	}
	return buf[0:4], binary.LittleEndian.Uint32(buf[4:8]), true
}

// padded includes the pad byte RIFF appends to odd-sized chunks
func padded(n uint32) int64 {
	return int64(n) + int64(n&1)
}

// Header returns the parsed container header
func (d *Decoder) Header() Header { return d.header }

// DataOffset returns the container offset of the first PCM byte
func (d *Decoder) DataOffset() uint32 { return d.anchor }

func (d *Decoder) position() uint32 {
	pos := stream.Tell(d.File())
	if pos < d.anchor {
		return 0
	}
	return min(pos-d.anchor, d.SizeInBytes())
}

func (d *Decoder) Seek(offset int64, move stream.Move) (uint32, error) {
	if d.File() == nil {
		return 0, nil
	}
	if move == stream.MoveCurrent && offset == 0 {
		return d.position(), nil
	}

	target := stream.Resolve(d.position(), d.SizeInBytes(), offset, move)
	got := d.File().Seek(int64(d.anchor)+int64(target), stream.MoveBegin)
	if got < d.anchor {
		return 0, nil
	}
	return got - d.anchor, nil
}

func (d *Decoder) ReadNext(p []byte) (int, error) {
	if !d.OK() {
		return 0, fmt.Errorf("wave stream unusable: %w", d.Code().Err())
	}
	if len(p) == 0 || d.File() == nil {
		return 0, nil
	}

	remaining := d.SizeInBytes() - d.position()
	if remaining == 0 {
		return 0, io.EOF
	}
	if uint32(len(p)) > remaining {
		p = p[:remaining]
	}

	n := d.File().ReadNext(p)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Recreate rebinds the decoder to file, which must hold the same layout,
// positioned at the start of the data chunk.
func (d *Decoder) Recreate(file stream.ByteStream) {
	d.Base.Recreate(file)
	if file != nil {
		file.Seek(int64(d.anchor), stream.MoveBegin)
	}
}

var _ pcm.Stream = (*Decoder)(nil)
