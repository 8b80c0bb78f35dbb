package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrapal.click/internal/mpg123"
	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

// canonicalWave builds a 16-bit PCM wave with a 44-byte header
func canonicalWave(channels uint16, rate uint32, data []byte) []byte {
	le := binary.LittleEndian
	align := channels * 2
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(36+len(data)))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, channels)
	binary.Write(&b, le, rate)
	binary.Write(&b, le, rate*uint32(align))
	binary.Write(&b, le, align)
	binary.Write(&b, le, uint16(16))
	b.WriteString("data")
	binary.Write(&b, le, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func TestUserDefinedFormatNeverConstructs(t *testing.T) {
	calls := 0
	counting := func(pcm.Host, stream.ByteStream) pcm.Stream {
		calls++
		return nil
	}
	d := NewDispatcherWithConstructors(pcm.NewBasicHost(pcm.NewPoolAllocator(0)), map[EncodingFormat]Constructor{
		FormatWave:        counting,
		FormatOggVorbis:   counting,
		FormatMpg123:      counting,
		FormatUserDefined: counting,
		0x1234:            counting,
	})

	for _, format := range []EncodingFormat{FormatUserDefined, FormatUserDefined + 1, 0x1234, 0xFFFFFFFF} {
		var info pcm.ErrorInfo
		s := d.CreateStream(format, stream.NewMemoryStream(nil), &info)
		assert.Nil(t, s)
		assert.Contains(t, info.String(), "Unsupported Format : 0x")
	}
	assert.Equal(t, 0, calls)

	var info pcm.ErrorInfo
	d.CreateStream(FormatUserDefined, stream.NewMemoryStream(nil), &info)
	assert.Equal(t, "Unsupported Format : 0x00000003", info.String())
}

func TestCreateStreamOutOfMemory(t *testing.T) {
	host := pcm.NewBasicHost(pcm.NewPoolAllocator(1))
	host.Messages[pcm.MessageOutOfMemory] = "no memory left"
	d := NewDispatcher(host, nil)

	file := stream.NewMemoryStream(canonicalWave(2, 44100, make([]byte, 16)))
	var info pcm.ErrorInfo
	s := d.CreateStream(FormatWave, file, &info)

	assert.Nil(t, s)
	assert.Equal(t, "no memory left : audio.CreateStream", info.String())
	assert.False(t, file.Closed(), "the caller keeps the stream on a nil result")
}

func TestCreateStreamReturnsBrokenInstance(t *testing.T) {
	alloc := pcm.NewPoolAllocator(0)
	d := NewDispatcher(pcm.NewBasicHost(alloc), nil)

	raw := canonicalWave(2, 44100, make([]byte, 16))
	copy(raw[8:12], "AVI ")

	var info pcm.ErrorInfo
	s := d.CreateStream(FormatWave, stream.NewMemoryStream(raw), &info)
	require.NotNil(t, s, "broken instances are returned for the caller to inspect")
	assert.Equal(t, pcm.CodeIllegalFile, s.Code())
	assert.Equal(t, "Illegal File", info.String())

	s.Release()
	assert.Equal(t, 0, alloc.Outstanding())
}

func TestCreateStreamWithoutErrorInfo(t *testing.T) {
	d := NewDispatcher(pcm.NewBasicHost(pcm.NewPoolAllocator(1)), nil)

	testCases := []struct {
		name   string
		format EncodingFormat
		raw    []byte
	}{
		{"user defined", FormatUserDefined, nil},
		{"mpg123 not loaded", FormatMpg123, nil},
		{"allocation failure", FormatWave, canonicalWave(2, 44100, make([]byte, 16))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				s := d.CreateStream(tc.format, stream.NewMemoryStream(tc.raw), nil)
				assert.Nil(t, s)
			})
		})
	}

	broken := NewDispatcher(pcm.NewBasicHost(pcm.NewPoolAllocator(0)), nil)
	raw := canonicalWave(2, 44100, make([]byte, 16))
	copy(raw[8:12], "AVI ")
	s := broken.CreateStream(FormatWave, stream.NewMemoryStream(raw), nil)
	require.NotNil(t, s)
	assert.Equal(t, pcm.CodeIllegalFile, s.Code())
	s.Release()
}

func TestCreateStreamWave(t *testing.T) {
	d := NewDispatcher(pcm.NewBasicHost(pcm.NewPoolAllocator(0)), nil)

	var info pcm.ErrorInfo
	s := d.CreateStream(FormatWave, stream.NewMemoryStream(canonicalWave(1, 22050, make([]byte, 100))), &info)
	require.NotNil(t, s)
	defer s.Release()

	assert.True(t, info.Empty())
	assert.Equal(t, pcm.CodeOK, s.Code())
	assert.Equal(t, uint32(100), s.SizeInBytes())
	assert.Equal(t, uint16(1), s.Format().Channels)
}

func TestCreateStreamMpg123WithoutLibrary(t *testing.T) {
	d := NewDispatcher(pcm.NewBasicHost(pcm.NewPoolAllocator(0)), nil)
	assert.False(t, d.Supports(FormatMpg123))

	var info pcm.ErrorInfo
	s := d.CreateStream(FormatMpg123, stream.NewMemoryStream(nil), &info)
	assert.Nil(t, s)
	assert.Equal(t, "mpg123 library not loaded", info.String())
}

func TestCreateStreamMpg123Native(t *testing.T) {
	d := NewDispatcher(pcm.NewBasicHost(pcm.NewPoolAllocator(0)), mpg123.NewNativeLibrary())
	assert.True(t, d.Supports(FormatMpg123))

	var info pcm.ErrorInfo
	s := d.CreateStream(FormatMpg123, stream.NewMemoryStream([]byte("not mpeg")), &info)
	require.NotNil(t, s)
	defer s.Release()
	assert.Equal(t, pcm.CodeIllegalFile, s.Code())
	assert.Equal(t, "Illegal File", info.String())
}

func TestCreateStreamVorbisOpenFailure(t *testing.T) {
	d := NewDispatcher(pcm.NewBasicHost(pcm.NewPoolAllocator(0)), nil)

	var info pcm.ErrorInfo
	s := d.CreateStream(FormatOggVorbis, stream.NewMemoryStream([]byte("OggS but nothing else")), &info)
	require.NotNil(t, s)
	defer s.Release()
	assert.Equal(t, pcm.CodeIllegalFile, s.Code())
}

func TestConfigureLastError(t *testing.T) {
	var sunk []string
	c := NewConfigure(Options{ErrorSink: func(msg string) { sunk = append(sunk, msg) }})

	_, ok := c.LastErrorInfo()
	assert.False(t, ok)

	s := c.CreateStream(FormatUserDefined, stream.NewMemoryStream(nil))
	assert.Nil(t, s)
	msg, ok := c.LastErrorInfo()
	assert.True(t, ok)
	assert.Equal(t, "Unsupported Format : 0x00000003", msg)

	c.OutputError(msg)
	assert.Equal(t, []string{msg}, sunk)

	s = c.CreateStream(FormatWave, stream.NewMemoryStream(canonicalWave(2, 44100, make([]byte, 8))))
	require.NotNil(t, s)
	defer s.Release()
	_, ok = c.LastErrorInfo()
	assert.False(t, ok, "a successful create clears the last error")
}

func TestConfigureMessagesAndAllocator(t *testing.T) {
	alloc := pcm.NewPoolAllocator(0)
	c := NewConfigure(Options{
		Allocator:  alloc,
		Messages:   pcm.MessageTable{pcm.MessageOutOfMemory: "Speicher voll"},
		Mpg123Path: "/opt/lib/libmpg123.so",
	})

	assert.Equal(t, "Speicher voll", c.RuntimeMessage(pcm.MessageOutOfMemory))
	assert.Equal(t, "/opt/lib/libmpg123.so", c.Libmpg123Path())

	s := c.CreateStream(FormatWave, stream.NewMemoryStream(canonicalWave(2, 44100, make([]byte, 8))))
	require.NotNil(t, s)
	assert.Greater(t, alloc.Outstanding(), 0, "backends draw from the configured allocator")
	s.Release()
	assert.Equal(t, 0, alloc.Outstanding())
}

func TestEndToEndThroughConfigure(t *testing.T) {
	data := make([]byte, 88200)
	for i := range data {
		data[i] = byte(i)
	}
	c := NewConfigure(Options{})
	s := c.CreateStream(FormatWave, stream.NewMemoryStream(canonicalWave(2, 44100, data)))
	require.NotNil(t, s)
	defer s.Release()

	assert.Equal(t, uint32(88200), s.SizeInBytes())
	assert.Equal(t, uint16(2), s.Format().Channels)
	assert.Equal(t, uint32(44100), s.Format().SamplesPerSec)

	total, reads := 0, 0
	buf := make([]byte, 4096)
	for {
		n, err := s.ReadNext(buf)
		total += n
		reads++
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 88200, total)
	assert.Equal(t, 23, reads, "21 full reads, one short read, one end-of-stream read")
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		name    string
		want    EncodingFormat
		wantErr bool
	}{
		{"wav", FormatWave, false},
		{"WAVE", FormatWave, false},
		{"ogg", FormatOggVorbis, false},
		{" vorbis ", FormatOggVorbis, false},
		{"mp3", FormatMpg123, false},
		{"mpg123", FormatMpg123, false},
		{"flac", FormatUserDefined, true},
		{"", FormatUserDefined, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseFormat(tc.name)
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
