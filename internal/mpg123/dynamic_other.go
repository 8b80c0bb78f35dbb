//go:build !((darwin || freebsd || linux) && (amd64 || arm64))

package mpg123

import "fmt"

// DynamicLibrary is unavailable on this platform
type DynamicLibrary struct{}

// DefaultLibraryName is the soname tried when no path is configured
func DefaultLibraryName() string { return "libmpg123" }

// Load always fails on this platform
func Load(path string) (*DynamicLibrary, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, path)
}

func (d *DynamicLibrary) Name() string { return "mpg123:unsupported" }

func (d *DynamicLibrary) Close() error { return nil }

func (d *DynamicLibrary) NewHandle() (Handle, Errno) { return nil, Err }
