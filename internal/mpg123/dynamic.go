//go:build (darwin || freebsd || linux) && (amd64 || arm64)

package mpg123

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// DynamicLibrary is libmpg123 bound at runtime. C long and off_t are 64-bit
// on the supported targets.
type DynamicLibrary struct {
	path string
	lib  uintptr

	mpg123Init                func() int32
	mpg123Exit                func()
	mpg123New                 func(decoder *byte, errcode *int32) uintptr
	mpg123Delete              func(h uintptr)
	mpg123Read                func(h uintptr, out *byte, size uintptr, done *uintptr) int32
	mpg123Seek                func(h uintptr, offset int64, whence int32) int64
	mpg123Tell                func(h uintptr) int64
	mpg123Length              func(h uintptr) int64
	mpg123Format              func(h uintptr, rate int64, channels int32, encodings int32) int32
	mpg123GetFormat           func(h uintptr, rate *int64, channels *int32, encoding *int32) int32
	mpg123FormatNone          func(h uintptr) int32
	mpg123OpenHandle          func(h uintptr, iohandle uintptr) int32
	mpg123ReplaceReaderHandle func(h uintptr, read uintptr, lseek uintptr, cleanup uintptr) int32

	// callbacks are created once; purego never frees them
	readCallback uintptr
	seekCallback uintptr

	mu      sync.Mutex
	nextID  uintptr
	readers map[uintptr]io.ReadSeeker
}

// DefaultLibraryName is the soname tried when no path is configured
func DefaultLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libmpg123.dylib"
	case "freebsd":
		return "libmpg123.so"
	default:
		return "libmpg123.so.0"
	}
}

// Load opens the shared library at path, resolves every entry point and
// initializes it. An empty path uses DefaultLibraryName.
func Load(path string) (*DynamicLibrary, error) {
	if path == "" {
		path = DefaultLibraryName()
	}
	slog.Debug("loading mpg123 library", "path", path)

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		slog.Warn("mpg123 library not loadable", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrLibraryNotFound, path, err)
	}

	d := &DynamicLibrary{path: path, lib: lib, readers: make(map[uintptr]io.ReadSeeker)}

	symbols := []struct {
		name string
		fptr any
	}{
		{"mpg123_init", &d.mpg123Init},
		{"mpg123_exit", &d.mpg123Exit},
		{"mpg123_new", &d.mpg123New},
		{"mpg123_delete", &d.mpg123Delete},
		{"mpg123_read", &d.mpg123Read},
		{"mpg123_seek", &d.mpg123Seek},
		{"mpg123_tell", &d.mpg123Tell},
		{"mpg123_length", &d.mpg123Length},
		{"mpg123_format", &d.mpg123Format},
		{"mpg123_getformat", &d.mpg123GetFormat},
		{"mpg123_format_none", &d.mpg123FormatNone},
		{"mpg123_open_handle", &d.mpg123OpenHandle},
		{"mpg123_replace_reader_handle", &d.mpg123ReplaceReaderHandle},
	}

	var missing []string
	for _, sym := range symbols {
		addr := resolve(lib, sym.name)
		if addr == 0 {
			missing = append(missing, sym.name)
			continue
		}
		purego.RegisterFunc(sym.fptr, addr)
	}
	if len(missing) > 0 {
		purego.Dlclose(lib)
		slog.Error("mpg123 library incomplete", "path", path, "missing", missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingSymbols, strings.Join(missing, ", "))
	}

	if rc := Errno(d.mpg123Init()); rc != OK {
		purego.Dlclose(lib)
		return nil, fmt.Errorf("%w: %s", ErrInitFailed, rc)
	}

	d.readCallback = purego.NewCallback(d.onRead)
	d.seekCallback = purego.NewCallback(d.onSeek)

	slog.Info("mpg123 library loaded", "path", path)
	return d, nil
}

// resolve looks up name, falling back to the large-file alias
func resolve(lib uintptr, name string) uintptr {
	for _, candidate := range []string{name, name + "_64"} {
		if addr, err := purego.Dlsym(lib, candidate); err == nil && addr != 0 {
			return addr
		}
	}
	return 0
}

func (d *DynamicLibrary) Name() string { return "mpg123:" + d.path }

// Close shuts the library down. No handle may be used afterwards.
func (d *DynamicLibrary) Close() error {
	d.mpg123Exit()
	if err := purego.Dlclose(d.lib); err != nil {
		return fmt.Errorf("failed to unload mpg123: %w", err)
	}
	return nil
}

func (d *DynamicLibrary) NewHandle() (Handle, Errno) {
	var code int32
	h := d.mpg123New(nil, &code)
	if code != 0 || h == 0 {
		if code == 0 {
			code = int32(Err)
		}
		return nil, Errno(code)
	}
	return &dynamicHandle{lib: d, h: h}, OK
}

func (d *DynamicLibrary) register(r io.ReadSeeker) uintptr {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.readers[d.nextID] = r
	return d.nextID
}

func (d *DynamicLibrary) unregister(id uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.readers, id)
}

func (d *DynamicLibrary) reader(id uintptr) io.ReadSeeker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readers[id]
}

// onRead implements ssize_t (*)(void *iohandle, void *buf, size_t len)
func (d *DynamicLibrary) onRead(id uintptr, buf uintptr, size uintptr) uintptr {
	r := d.reader(id)
	if r == nil || buf == 0 {
		return ^uintptr(0)
	}
	if size == 0 {
		return 0
	}
	p := unsafe.Slice((*byte)(unsafe.Pointer(buf)), size)
	n, _ := r.Read(p)
	return uintptr(n)
}

// onSeek implements off_t (*)(void *iohandle, off_t offset, int whence)
func (d *DynamicLibrary) onSeek(id uintptr, offset uintptr, whence uintptr) uintptr {
	r := d.reader(id)
	if r == nil {
		return ^uintptr(0)
	}
	pos, err := r.Seek(int64(offset), int(int32(whence)))
	if err != nil {
		return ^uintptr(0)
	}
	return uintptr(pos)
}

type dynamicHandle struct {
	lib *DynamicLibrary
	h   uintptr
	id  uintptr
}

func (h *dynamicHandle) ReplaceReader(r io.ReadSeeker) Errno {
	if h.id != 0 {
		h.lib.unregister(h.id)
	}
	h.id = h.lib.register(r)
	return Errno(h.lib.mpg123ReplaceReaderHandle(h.h, h.lib.readCallback, h.lib.seekCallback, 0))
}

func (h *dynamicHandle) Open() Errno {
	return Errno(h.lib.mpg123OpenHandle(h.h, h.id))
}

func (h *dynamicHandle) GetFormat() (int64, int, Encoding, Errno) {
	var rate int64
	var channels, encoding int32
	code := h.lib.mpg123GetFormat(h.h, &rate, &channels, &encoding)
	return rate, int(channels), Encoding(encoding), Errno(code)
}

func (h *dynamicHandle) FormatNone() Errno {
	return Errno(h.lib.mpg123FormatNone(h.h))
}

func (h *dynamicHandle) Format(rate int64, channels int, encoding Encoding) Errno {
	return Errno(h.lib.mpg123Format(h.h, rate, int32(channels), int32(encoding)))
}

func (h *dynamicHandle) Length() int64 {
	return h.lib.mpg123Length(h.h)
}

func (h *dynamicHandle) Read(p []byte) (int, Errno) {
	if len(p) == 0 {
		return 0, OK
	}
	var done uintptr
	code := h.lib.mpg123Read(h.h, &p[0], uintptr(len(p)), &done)
	return int(done), Errno(code)
}

func (h *dynamicHandle) Seek(frame int64, whence int) (int64, Errno) {
	pos := h.lib.mpg123Seek(h.h, frame, int32(whence))
	if pos < 0 {
		return pos, Errno(pos)
	}
	return pos, OK
}

func (h *dynamicHandle) Tell() int64 {
	return h.lib.mpg123Tell(h.h)
}

func (h *dynamicHandle) Delete() {
	if h.h != 0 {
		h.lib.mpg123Delete(h.h)
		h.h = 0
	}
	if h.id != 0 {
		h.lib.unregister(h.id)
		h.id = 0
	}
}
