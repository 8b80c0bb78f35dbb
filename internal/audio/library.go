package audio

import (
	"errors"
	"fmt"
	"log/slog"

	"wrapal.click/internal/mpg123"
)

// Mpg123 backend selections
const (
	Mpg123Auto    = "auto"
	Mpg123Library = "library"
	Mpg123Native  = "native"
)

var ErrUnknownMpg123Backend = errors.New("unknown mpg123 backend")

// loadDynamic is swapped in tests
var loadDynamic = func(path string) (mpg123.Library, error) {
	lib, err := mpg123.Load(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// OpenMpg123 selects the MPEG decoding library. "library" requires the
// shared library at path, "native" uses go-mp3, and "auto" tries the shared
// library before falling back to go-mp3.
func OpenMpg123(backend, path string) (mpg123.Library, error) {
	slog.Debug("selecting mpg123 backend", "backend", backend, "path", path)

	switch backend {
	case Mpg123Native:
		return mpg123.NewNativeLibrary(), nil

	case Mpg123Library:
		lib, err := loadDynamic(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load mpg123: %w", err)
		}
		return lib, nil

	case Mpg123Auto, "":
		lib, err := loadDynamic(path)
		if err == nil {
			return lib, nil
		}
		slog.Info("mpg123 shared library unavailable, using go-mp3", "reason", err)
		return mpg123.NewNativeLibrary(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMpg123Backend, backend)
	}
}
