package audio

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"wrapal.click/internal/stream"
)

// sniffSize matches the mimetype default read limit
const sniffSize = 3072

// Detection errors
var (
	ErrUnknownFormat = errors.New("unknown audio format")
	ErrEmptyStream   = errors.New("empty stream")
)

// DetectFormat sniffs the first bytes of file with mimetype and restores
// the stream position before returning.
func DetectFormat(file stream.ByteStream) (EncodingFormat, error) {
	start := stream.Tell(file)
	defer file.Seek(int64(start), stream.MoveBegin)

	file.Seek(0, stream.MoveBegin)
	header := make([]byte, sniffSize)
	n := file.ReadNext(header)
	if n == 0 {
		return FormatUserDefined, ErrEmptyStream
	}

	mtype := mimetype.Detect(header[:n])
	slog.Debug("magic byte detection result", "detected_mime", mtype.String(), "bytes_analyzed", n)

	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case m.Is("audio/wav"):
			return FormatWave, nil
		case m.Is("audio/ogg"), m.Is("application/ogg"):
			return FormatOggVorbis, nil
		case m.Is("audio/mpeg"):
			return FormatMpg123, nil
		}
	}

	slog.Warn("unrecognized audio content", "mime_type", mtype.String())
	return FormatUserDefined, fmt.Errorf("%w: %s", ErrUnknownFormat, mtype.String())
}
