package mpg123

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
)

// silentMP3 builds MPEG-1 Layer III frames at 128kbps/44.1kHz stereo with
// empty side information, which decode to silence.
func silentMP3(frames int) []byte {
	const frameSize = 417
	var buf bytes.Buffer
	for i := 0; i < frames; i++ {
		frame := make([]byte, frameSize)
		copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestNativeHandleContract(t *testing.T) {
	h, e := NewNativeLibrary().NewHandle()
	require.Equal(t, OK, e)
	defer h.Delete()

	assert.Equal(t, BadHandle, h.Open(), "open needs a reader")

	require.Equal(t, OK, h.ReplaceReader(stream.NewReader(stream.NewMemoryStream(silentMP3(20)))))
	require.Equal(t, OK, h.Open())

	rate, channels, encoding, e := h.GetFormat()
	require.Equal(t, OK, e)
	assert.Equal(t, int64(44100), rate)
	assert.Equal(t, 2, channels)
	assert.Equal(t, EncSigned16, encoding)

	assert.Equal(t, OK, h.FormatNone())
	assert.Equal(t, Err, h.Format(48000, 2, EncSigned16), "go-mp3 cannot resample")
	assert.Equal(t, Err, h.Format(44100, 2, EncFloat32))
	assert.Equal(t, OK, h.Format(44100, 2, EncSigned16))

	assert.Greater(t, h.Length(), int64(0))

	buf := make([]byte, 1000)
	n, e := h.Read(buf)
	assert.Equal(t, OK, e)
	assert.Equal(t, 1000, n)
	assert.Equal(t, int64(250), h.Tell())

	pos, e := h.Seek(10, SeekSet)
	assert.Equal(t, OK, e)
	assert.Equal(t, int64(10), pos)
	assert.Equal(t, int64(10), h.Tell())

	_, e = h.Seek(0, 1)
	assert.Equal(t, Err, e, "only absolute seeks are supported")
}

func TestNativeDecoderSilence(t *testing.T) {
	host, alloc := newHost()
	d := New(host, stream.NewMemoryStream(silentMP3(20)), NewNativeLibrary())
	require.NotNil(t, d)
	require.Equal(t, pcm.CodeOK, d.Code())

	f := d.Format()
	assert.Equal(t, uint16(2), f.Channels)
	assert.Equal(t, uint32(44100), f.SamplesPerSec)
	assert.Equal(t, uint16(4), f.BlockAlign)
	assert.Equal(t, pcm.TagPCM, f.Tag)
	assert.Equal(t, uint32(0), pcm.Tell(d))

	total := 0
	buf := make([]byte, 4096)
	for {
		n, err := d.ReadNext(buf)
		require.LessOrEqual(t, n, len(buf))
		for _, b := range buf[:n] {
			require.Zero(t, b)
		}
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
	assert.Greater(t, total, 0)
	assert.LessOrEqual(t, total, int(d.SizeInBytes()))

	d.Release()
	assert.Equal(t, 0, alloc.Outstanding())
}

func TestNativeDecoderRejectsGarbage(t *testing.T) {
	host, _ := newHost()
	d := New(host, stream.NewMemoryStream([]byte("RIFF....WAVEfmt not an mpeg stream at all")), NewNativeLibrary())
	require.NotNil(t, d)
	defer d.Release()
	assert.Equal(t, pcm.CodeIllegalFile, d.Code())
}

func TestLoadMissingLibrary(t *testing.T) {
	lib, err := Load("/nonexistent/libmpg123-does-not-exist.so")
	assert.Nil(t, lib)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLibraryNotFound) || errors.Is(err, ErrUnsupportedPlatform))
}
