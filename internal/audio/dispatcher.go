package audio

import (
	"fmt"
	"log/slog"
	"strings"

	"wrapal.click/internal/mpg123"
	"wrapal.click/internal/pcm"
	"wrapal.click/internal/stream"
	"wrapal.click/internal/vorbis"
	"wrapal.click/internal/wave"
)

// EncodingFormat is the declared encoding of a byte source
type EncodingFormat uint32

const (
	FormatWave EncodingFormat = iota
	FormatOggVorbis
	FormatMpg123
	// FormatUserDefined and above are reserved and never dispatched
	FormatUserDefined
)

func (f EncodingFormat) String() string {
	switch f {
	case FormatWave:
		return "wave"
	case FormatOggVorbis:
		return "ogg_vorbis"
	case FormatMpg123:
		return "mpg123"
	default:
		return fmt.Sprintf("user_defined(0x%08X)", uint32(f))
	}
}

// ParseFormat maps a user supplied format name to an EncodingFormat
func ParseFormat(name string) (EncodingFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wav", "wave":
		return FormatWave, nil
	case "ogg", "vorbis", "oggvorbis", "ogg_vorbis":
		return FormatOggVorbis, nil
	case "mp3", "mpeg", "mpg123":
		return FormatMpg123, nil
	default:
		return FormatUserDefined, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Constructor builds a backend over file; nil means the instance could not
// be allocated
type Constructor func(host pcm.Host, file stream.ByteStream) pcm.Stream

// Dispatcher selects and constructs decoder backends
type Dispatcher struct {
	host         pcm.Host
	constructors map[EncodingFormat]Constructor
}

// NewDispatcher registers the built-in backends. A nil lib leaves
// FormatMpg123 unavailable.
func NewDispatcher(host pcm.Host, lib mpg123.Library) *Dispatcher {
	constructors := map[EncodingFormat]Constructor{
		FormatWave: func(h pcm.Host, f stream.ByteStream) pcm.Stream {
			if d := wave.New(h, f); d != nil {
				return d
			}
			return nil
		},
		FormatOggVorbis: func(h pcm.Host, f stream.ByteStream) pcm.Stream {
			if d := vorbis.New(h, f); d != nil {
				return d
			}
			return nil
		},
	}
	if lib != nil {
		constructors[FormatMpg123] = func(h pcm.Host, f stream.ByteStream) pcm.Stream {
			if d := mpg123.New(h, f, lib); d != nil {
				return d
			}
			return nil
		}
	}
	return NewDispatcherWithConstructors(host, constructors)
}

// NewDispatcherWithConstructors creates a dispatcher with injected backends
func NewDispatcherWithConstructors(host pcm.Host, constructors map[EncodingFormat]Constructor) *Dispatcher {
	slog.Debug("creating stream dispatcher", "backends", len(constructors))
	return &Dispatcher{host: host, constructors: constructors}
}

// Host returns the hosting configuration passed to backends
func (d *Dispatcher) Host() pcm.Host { return d.host }

// Supports reports whether format has a registered backend
func (d *Dispatcher) Supports(format EncodingFormat) bool {
	_, ok := d.constructors[format]
	return format < FormatUserDefined && ok
}

// CreateStream constructs the backend for format over file.
//
// A nil result means no instance exists and file still belongs to the
// caller; info then holds the reason. A non-nil result owns file even when
// its Code is not OK: the decoder's message is copied into info and the
// caller must check Code before use. A nil info discards the message.
func (d *Dispatcher) CreateStream(format EncodingFormat, file stream.ByteStream, info *pcm.ErrorInfo) pcm.Stream {
	slog.Debug("creating pcm stream", "format", format.String())

	if info == nil {
		info = &pcm.ErrorInfo{}
	}

	if format >= FormatUserDefined {
		info.Setf("Unsupported Format : 0x%08X", uint32(format))
		slog.Warn("unsupported stream format requested", "format", uint32(format))
		return nil
	}

	construct, ok := d.constructors[format]
	if !ok {
		if format == FormatMpg123 {
			info.Set("mpg123 library not loaded")
		} else {
			info.Setf("Unsupported Format : 0x%08X", uint32(format))
		}
		slog.Warn("no backend registered for format", "format", format.String())
		return nil
	}

	s := construct(d.host, file)
	if s == nil {
		pcm.FormatErrorOOM(info, d.host, "audio.CreateStream")
		slog.Error("pcm stream allocation failed", "format", format.String())
		return nil
	}

	if s.Code() != pcm.CodeOK {
		if msg, ok := s.LastErrorInfo(); ok {
			info.Set(msg)
		}
		slog.Warn("pcm stream constructed with error",
			"format", format.String(),
			"code", s.Code().String())
		return s
	}

	slog.Info("pcm stream created",
		"format", format.String(),
		"pcm_format", s.Format().String(),
		"decoded_bytes", s.SizeInBytes())
	return s
}
