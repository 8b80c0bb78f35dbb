package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// ProbeReport describes an opened stream
type ProbeReport struct {
	Path       string  `json:"path"`
	Format     string  `json:"format"`
	Channels   int     `json:"channels"`
	SampleRate int     `json:"sample_rate"`
	BlockAlign int     `json:"block_align"`
	Tag        string  `json:"tag"`
	SizeBytes  int64   `json:"size_bytes"`
	Seconds    float64 `json:"duration_seconds"`
	Code       string  `json:"code"`
	Error      string  `json:"error,omitempty"`
}

func newProbeCommand(c *CLI) *cobra.Command {
	var format string
	var asJSON bool

	probeCmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Show the PCM format of an audio file",
		Long: `Open an audio file as a PCM stream and print its decoded format.

The encoding is detected from the file content unless --format names it.

Examples:
  wrapal probe track.wav
  wrapal probe --format mp3 track.bin
  wrapal probe --json track.ogg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProbe(cmd, args[0], format, asJSON)
		},
	}

	probeCmd.Flags().StringVar(&format, "format", "auto", "Encoding (auto, wav, ogg, mp3)")
	probeCmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return probeCmd
}

func (c *CLI) runProbe(cmd *cobra.Command, path, format string, asJSON bool) error {
	slog.Debug("running probe command", "path", path, "format", format)

	s, err := c.openSession(path, format, cmd.ErrOrStderr())
	defer s.close()
	if s == nil {
		c.record(cmd.Context(), failureEntry("probe", path, err))
		return err
	}

	entry := s.entry("probe")
	c.record(cmd.Context(), entry)

	report := ProbeReport{
		Path:       entry.Path,
		Format:     entry.Format,
		Channels:   entry.Channels,
		SampleRate: entry.SampleRate,
		BlockAlign: entry.BlockAlign,
		Tag:        entry.Tag,
		SizeBytes:  entry.SizeBytes,
		Code:       entry.Code,
		Error:      entry.Message,
	}
	if s.stream != nil {
		report.Seconds = duration(s.stream.Format(), s.stream.SizeInBytes()).Seconds()
	}

	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		writeProbeReport(cmd.OutOrStdout(), report)
	}
	return err
}

func writeProbeReport(w io.Writer, r ProbeReport) {
	fmt.Fprintf(w, "path:        %s\n", r.Path)
	fmt.Fprintf(w, "format:      %s\n", r.Format)
	fmt.Fprintf(w, "channels:    %d\n", r.Channels)
	fmt.Fprintf(w, "sample_rate: %d\n", r.SampleRate)
	fmt.Fprintf(w, "block_align: %d\n", r.BlockAlign)
	fmt.Fprintf(w, "tag:         %s\n", r.Tag)
	fmt.Fprintf(w, "size_bytes:  %d\n", r.SizeBytes)
	fmt.Fprintf(w, "duration:    %.3fs\n", r.Seconds)
	fmt.Fprintf(w, "status:      %s\n", r.Code)
	if r.Error != "" {
		fmt.Fprintf(w, "error:       %s\n", r.Error)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
