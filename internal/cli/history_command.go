package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"wrapal.click/internal/journal"
)

var ErrJournalUnavailable = errors.New("journal is not enabled or could not be opened")

func newHistoryCommand(c *CLI) *cobra.Command {
	var filter journal.QueryFilter
	var since string
	var summary bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded probe and decode runs",
		Long: `List recorded probe and decode runs from the journal, newest first.

--since accepts a preset (today, yesterday, week, last-week, month,
last-month, all) or a natural language date such as "3 days ago".

Examples:
  wrapal history
  wrapal history --since yesterday --failed
  wrapal history --format mpg123 --limit 5
  wrapal history --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := filter.ApplySince(since, time.Now()); err != nil {
				return err
			}
			return c.runHistory(cmd, filter, summary)
		},
	}

	historyCmd.Flags().IntVar(&filter.Limit, "limit", journal.DefaultLimit, "Maximum number of entries to show")
	historyCmd.Flags().StringVar(&since, "since", "", "Only show runs since a preset or natural language date")
	historyCmd.Flags().StringVar(&filter.Format, "format", "", "Filter by format (wave, ogg_vorbis, mpg123)")
	historyCmd.Flags().StringVar(&filter.Command, "command", "", "Filter by command (probe, decode)")
	historyCmd.Flags().BoolVar(&filter.FailedOnly, "failed", false, "Only show failed runs")
	historyCmd.Flags().BoolVar(&summary, "summary", false, "Show run counts per format instead of entries")

	return historyCmd
}

func (c *CLI) runHistory(cmd *cobra.Command, filter journal.QueryFilter, summary bool) error {
	slog.Debug("running history command", "limit", filter.Limit, "format", filter.Format, "summary", summary)

	j := c.openJournal()
	if j == nil {
		return ErrJournalUnavailable
	}

	if summary {
		counts, err := j.CountByFormat(cmd.Context(), filter)
		if err != nil {
			return err
		}
		writeSummary(cmd.OutOrStdout(), counts)
		return nil
	}

	entries, err := j.Recent(cmd.Context(), filter)
	if err != nil {
		return err
	}
	writeHistory(cmd.OutOrStdout(), entries)
	return nil
}

func writeHistory(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCOMMAND\tFORMAT\tSTATUS\tPCM\tBYTES\tPATH")
	for _, e := range entries {
		pcmDesc := "-"
		if e.Channels > 0 {
			pcmDesc = fmt.Sprintf("%s %dch %dHz", e.Tag, e.Channels, e.SampleRate)
		}
		bytes := fmt.Sprintf("%d", e.SizeBytes)
		if e.Command == "decode" {
			bytes = fmt.Sprintf("%d/%d", e.BytesRead, e.SizeBytes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.DateTime), e.Command, e.Format, e.Code, pcmDesc, bytes, e.Path)
	}
	tw.Flush()
}

func writeSummary(w io.Writer, counts []journal.FormatCount) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tRUNS\tFAILED")
	for _, fc := range counts {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", fc.Format, fc.Total, fc.Failed)
	}
	tw.Flush()
}
