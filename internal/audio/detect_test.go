package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrapal.click/internal/mpg123"
	"wrapal.click/internal/stream"
)

func mpegFrames(n int) []byte {
	out := make([]byte, 0, n*417)
	for i := 0; i < n; i++ {
		frame := make([]byte, 417)
		copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
		out = append(out, frame...)
	}
	return out
}

func TestDetectFormat(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want EncodingFormat
	}{
		{"wave", canonicalWave(2, 44100, make([]byte, 64)), FormatWave},
		{"ogg container", append([]byte("OggS\x00\x02"), make([]byte, 64)...), FormatOggVorbis},
		{"mpeg frames", mpegFrames(4), FormatMpg123},
		{"id3 tagged mpeg", append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), mpegFrames(2)...), FormatMpg123},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			file := stream.NewMemoryStream(tc.data)
			file.Seek(2, stream.MoveBegin)

			got, err := DetectFormat(file)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, uint32(2), stream.Tell(file), "position is restored")
		})
	}
}

func TestDetectFormatFromStart(t *testing.T) {
	file := stream.NewMemoryStream(canonicalWave(1, 8000, make([]byte, 10)))
	got, err := DetectFormat(file)
	require.NoError(t, err)
	assert.Equal(t, FormatWave, got)
	assert.Equal(t, uint32(0), stream.Tell(file))
}

func TestDetectFormatUnknown(t *testing.T) {
	_, err := DetectFormat(stream.NewMemoryStream([]byte("just some plain text that is not audio")))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = DetectFormat(stream.NewMemoryStream(nil))
	assert.ErrorIs(t, err, ErrEmptyStream)
}

func TestOpenMpg123(t *testing.T) {
	original := loadDynamic
	defer func() { loadDynamic = original }()

	loadErr := errors.New("no such library")
	loadDynamic = func(string) (mpg123.Library, error) { return nil, loadErr }

	t.Run("native", func(t *testing.T) {
		lib, err := OpenMpg123(Mpg123Native, "")
		require.NoError(t, err)
		assert.Equal(t, "go-mp3", lib.Name())
	})

	t.Run("auto falls back", func(t *testing.T) {
		lib, err := OpenMpg123(Mpg123Auto, "/missing.so")
		require.NoError(t, err)
		assert.Equal(t, "go-mp3", lib.Name())
	})

	t.Run("library is strict", func(t *testing.T) {
		lib, err := OpenMpg123(Mpg123Library, "/missing.so")
		assert.Nil(t, lib)
		assert.ErrorIs(t, err, loadErr)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := OpenMpg123("ffmpeg", "")
		assert.ErrorIs(t, err, ErrUnknownMpg123Backend)
	})

	t.Run("auto prefers the shared library", func(t *testing.T) {
		loadDynamic = func(string) (mpg123.Library, error) { return mpg123.NewNativeLibrary(), nil }
		lib, err := OpenMpg123(Mpg123Auto, "")
		require.NoError(t, err)
		assert.NotNil(t, lib)
	})
}
