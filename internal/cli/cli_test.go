package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrapal.click/internal/mpg123"
)

type fakeTerminal struct{ interactive bool }

func (f fakeTerminal) IsTerminal(int) bool { return f.interactive }

// waveFile builds a 16-bit PCM wave with a 44-byte header
func waveFile(channels uint16, rate uint32, data []byte) []byte {
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

// testCLI builds a fresh CLI per run, since cobra keeps flag values
// between executions
type testCLI struct {
	memFS            afero.Fs
	terminalDetector TerminalDetector
	openMpg123       func(backend, path string) (mpg123.Library, error)
}

// newTestCLI uses one memory filesystem for config and media, with config
// at /wrapal.json. An empty cfg disables the journal.
func newTestCLI(t *testing.T, cfg string) *testCLI {
	t.Helper()
	if cfg == "" {
		cfg = `{"journal": {"enabled": false}}`
	}
	memFS := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFS, "/wrapal.json", []byte(cfg), 0644))
	return &testCLI{memFS: memFS}
}

func (tc *testCLI) file(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(tc.memFS, path, data, 0644))
}

func (tc *testCLI) build() *CLI {
	c := NewCLIWithFilesystems(tc.memFS, tc.memFS)
	if tc.terminalDetector != nil {
		c.terminalDetector = tc.terminalDetector
	}
	if tc.openMpg123 != nil {
		c.openMpg123 = tc.openMpg123
	}
	return c
}

func (tc *testCLI) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"wrapal", "--config", "/wrapal.json"}, args...)
	code := tc.build().Run(full, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func journalConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "journal.db")
	return fmt.Sprintf(`{"journal": {"enabled": true, "path": %q}}`, path)
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	code := NewCLI().Run([]string{"wrapal", "version"}, strings.NewReader(""), &stdout, &bytes.Buffer{})
	assert.Equal(t, 0, code)
	assert.Equal(t, "wrapal version "+Version+"\n", stdout.String())
}

func TestProbeWave(t *testing.T) {
	tc := newTestCLI(t, "")
	tc.file(t, "/audio/tone.wav", waveFile(2, 44100, make([]byte, 176400)))

	code, stdout, stderr := tc.run("probe", "/audio/tone.wav")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "format:      wave")
	assert.Contains(t, stdout, "channels:    2")
	assert.Contains(t, stdout, "sample_rate: 44100")
	assert.Contains(t, stdout, "block_align: 4")
	assert.Contains(t, stdout, "size_bytes:  176400")
	assert.Contains(t, stdout, "duration:    1.000s")
	assert.Contains(t, stdout, "status:      ok")
}

func TestProbeJSON(t *testing.T) {
	tc := newTestCLI(t, "")
	tc.file(t, "/tone.wav", waveFile(1, 8000, make([]byte, 4000)))

	code, stdout, _ := tc.run("probe", "--json", "/tone.wav")
	require.Equal(t, 0, code)

	var report ProbeReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, ProbeReport{
		Path: "/tone.wav", Format: "wave", Channels: 1, SampleRate: 8000, BlockAlign: 2,
		Tag: "pcm", SizeBytes: 4000, Seconds: 0.25, Code: "ok",
	}, report)
}

func TestProbeFailures(t *testing.T) {
	broken := waveFile(2, 44100, make([]byte, 16))
	copy(broken[8:12], "AVI ")

	testCases := []struct {
		name       string
		data       []byte
		args       []string
		wantStdout string
		wantStderr string
	}{
		{"unknown content", []byte("plain text, not audio at all"), nil, "", "unknown audio format"},
		{"broken wave is still reported", broken, []string{"--format", "wav"}, "status:      illegal_file", "Illegal File"},
		{"unknown format name", broken, []string{"--format", "flac"}, "", "unknown audio format"},
	}

	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			tc := newTestCLI(t, "")
			tc.file(t, "/in", c.data)

			args := append([]string{"probe"}, c.args...)
			code, stdout, stderr := tc.run(append(args, "/in")...)

			assert.Equal(t, 1, code)
			assert.Contains(t, stdout, c.wantStdout)
			assert.Contains(t, stderr, c.wantStderr)
		})
	}
}

func TestProbeMissingFile(t *testing.T) {
	tc := newTestCLI(t, "")
	code, _, stderr := tc.run("probe", "/nope.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

func TestProbeMpegWithNativeBackend(t *testing.T) {
	tc := newTestCLI(t, `{"journal": {"enabled": false}, "mpg123": {"backend": "native"}}`)
	tc.file(t, "/bad.mp3", []byte("definitely not an mpeg stream"))

	code, stdout, stderr := tc.run("probe", "--format", "mp3", "/bad.mp3")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "format:      mpg123")
	assert.Contains(t, stderr, "Illegal File")
}

func TestProbeMpegLibraryUnavailable(t *testing.T) {
	tc := newTestCLI(t, `{"journal": {"enabled": false}, "mpg123": {"backend": "library"}}`)
	tc.openMpg123 = func(string, string) (mpg123.Library, error) { return nil, mpg123.ErrLibraryNotFound }
	tc.file(t, "/a.mp3", []byte("ID3"))

	code, _, stderr := tc.run("probe", "--format", "mp3", "/a.mp3")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, mpg123.ErrLibraryNotFound.Error())
}

func TestDecodeWave(t *testing.T) {
	tc := newTestCLI(t, `{"journal": {"enabled": false}, "read_chunk_bytes": 1000}`)
	tc.file(t, "/tone.wav", waveFile(2, 44100, make([]byte, 10000)))

	code, stdout, stderr := tc.run("decode", "/tone.wav")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "decoded:  10000 of 10000 bytes in 11 reads")
	assert.Contains(t, stdout, "status:   ok")
}

func TestDecodeChunkAndOffset(t *testing.T) {
	tc := newTestCLI(t, "")
	tc.file(t, "/tone.wav", waveFile(1, 8000, make([]byte, 4096)))

	code, stdout, _ := tc.run("decode", "--chunk", "1024", "--offset", "1024", "/tone.wav")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "decoded:  3072 of 3072 bytes in 4 reads")

	code, _, stderr := tc.run("decode", "--chunk", "-1", "/tone.wav")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "chunk must be >= 0")
}

func TestDecodeProgressOnTerminal(t *testing.T) {
	tc := newTestCLI(t, "")
	tc.file(t, "/tone.wav", waveFile(1, 8000, make([]byte, 2048)))
	tc.terminalDetector = fakeTerminal{interactive: true}

	stderr, err := os.CreateTemp(t.TempDir(), "stderr")
	require.NoError(t, err)
	defer stderr.Close()

	var stdout bytes.Buffer
	code := tc.build().Run([]string{"wrapal", "--config", "/wrapal.json", "decode", "--chunk", "1024", "/tone.wav"},
		strings.NewReader(""), &stdout, stderr)
	require.Equal(t, 0, code)

	progress, err := os.ReadFile(stderr.Name())
	require.NoError(t, err)
	assert.Contains(t, string(progress), "decoding:  50%")
	assert.Contains(t, string(progress), "decoding: 100%")
}

func TestDecodeNoProgressWithoutTerminal(t *testing.T) {
	tc := newTestCLI(t, "")
	tc.file(t, "/tone.wav", waveFile(1, 8000, make([]byte, 2048)))
	tc.terminalDetector = fakeTerminal{interactive: false}

	code, _, stderr := tc.run("decode", "/tone.wav")
	require.Equal(t, 0, code)
	assert.NotContains(t, stderr, "decoding:")
}

func TestHistoryRecordsRuns(t *testing.T) {
	tc := newTestCLI(t, journalConfig(t))
	tc.file(t, "/tone.wav", waveFile(2, 44100, make([]byte, 400)))
	tc.file(t, "/junk.bin", []byte("nothing to see here, friend"))

	code, _, _ := tc.run("probe", "/tone.wav")
	require.Equal(t, 0, code)
	code, _, _ = tc.run("decode", "/tone.wav")
	require.Equal(t, 0, code)
	code, _, _ = tc.run("probe", "/junk.bin")
	require.Equal(t, 1, code)

	code, stdout, stderr := tc.run("history")
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4, stdout)
	assert.Contains(t, lines[0], "COMMAND")
	assert.Contains(t, stdout, "400/400")
	assert.Contains(t, stdout, "unsupported_format")

	code, stdout, _ = tc.run("history", "--failed")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "/junk.bin")
	assert.NotContains(t, stdout, "/tone.wav")

	code, stdout, _ = tc.run("history", "--command", "decode", "--since", "today")
	require.Equal(t, 0, code)
	assert.Equal(t, 2, len(strings.Split(strings.TrimSpace(stdout), "\n")))

	code, stdout, _ = tc.run("history", "--summary")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "FORMAT")
	assert.Contains(t, stdout, "wave")
}

func TestHistoryEmptyAndDisabled(t *testing.T) {
	tc := newTestCLI(t, journalConfig(t))
	code, stdout, _ := tc.run("history")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "No runs recorded.")

	disabled := newTestCLI(t, "")
	code, _, stderr := disabled.run("history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, ErrJournalUnavailable.Error())
}

func TestHistoryBlankSince(t *testing.T) {
	tc := newTestCLI(t, journalConfig(t))
	code, _, stderr := tc.run("history", "--since", "")
	assert.Equal(t, 0, code, stderr)
}

func TestInvalidConfiguration(t *testing.T) {
	tc := newTestCLI(t, "")
	code, _, stderr := tc.run("--log-level", "loud", "probe", "/x")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid configuration")

	bad := newTestCLI(t, `{"mpg123": {"backend": "ffmpeg"}}`)
	code, _, stderr = bad.run("probe", "/x")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error loading config")
}

func TestFileLogging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "wrapal.log")
	tc := newTestCLI(t, fmt.Sprintf(`{
		"log_level": "debug",
		"journal": {"enabled": false},
		"file_logging": {"enabled": true, "filename": %q, "max_size_mb": 1}
	}`, logPath))
	tc.file(t, "/tone.wav", waveFile(1, 8000, make([]byte, 16)))

	code, _, stderr := tc.run("probe", "/tone.wav")
	require.Equal(t, 0, code)
	assert.NotContains(t, stderr, "level=DEBUG", "stderr is capped at warn when a log file is attached")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=DEBUG")
	assert.Contains(t, string(data), "audio session opened")
}
