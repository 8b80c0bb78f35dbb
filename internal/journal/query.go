package journal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/tj/go-naturaldate"
)

// DefaultLimit caps Recent when the filter sets no limit
const DefaultLimit = 20

// QueryFilter selects journal entries
type QueryFilter struct {
	// Time filters; DatePreset wins over Since
	Since      *time.Time
	DatePreset string // "today", "yesterday", "week", "last-week", "month", "last-month", "all"

	Format     string // Filter by encoding format name
	Command    string // Filter by "probe" or "decode"
	FailedOnly bool   // Only entries whose code is not ok

	Limit int
}

// ApplyTimeFilter converts the time options to Unix timestamps. A zero
// start means no lower bound.
func (q *QueryFilter) ApplyTimeFilter(now time.Time) (startUnix, endUnix int64) {
	endUnix = now.Unix()

	if q.DatePreset != "" {
		start, end, err := ParseDatePreset(q.DatePreset, now)
		if err != nil {
			slog.Warn("invalid date preset, using no time filter", "preset", q.DatePreset, "error", err)
			return 0, endUnix
		}
		return start.Unix(), end.Unix()
	}

	if q.Since != nil {
		return q.Since.Unix(), endUnix
	}

	return 0, endUnix
}

// Where adds the filter's conditions to sb
func (q *QueryFilter) Where(sb *sqlbuilder.SelectBuilder, now time.Time) {
	var exprs []string

	if q.Since != nil || q.DatePreset != "" {
		startUnix, endUnix := q.ApplyTimeFilter(now)
		if startUnix > 0 {
			exprs = append(exprs, sb.GreaterEqualThan("timestamp", startUnix))
		}
		exprs = append(exprs, sb.LessEqualThan("timestamp", endUnix))
	}

	if q.Format != "" {
		exprs = append(exprs, sb.Equal("format", q.Format))
	}

	if q.Command != "" {
		exprs = append(exprs, sb.Equal("command", q.Command))
	}

	if q.FailedOnly {
		exprs = append(exprs, sb.NotEqual("code", "ok"))
	}

	if len(exprs) > 0 {
		sb.Where(exprs...)
	}
	slog.Debug("applied journal filter", "conditions", len(exprs))
}

func (q *QueryFilter) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// ParseDatePreset converts date preset strings to time ranges
func ParseDatePreset(preset string, now time.Time) (start, end time.Time, err error) {
	switch preset {
	case "today":
		start = beginningOfDay(now)
		end = now
	case "yesterday":
		start = beginningOfDay(now.AddDate(0, 0, -1))
		end = beginningOfDay(now)
	case "week", "this-week":
		start = beginningOfWeek(now)
		end = now
	case "last-week":
		start = beginningOfWeek(now).AddDate(0, 0, -7)
		end = beginningOfWeek(now)
	case "month", "this-month":
		start = beginningOfMonth(now)
		end = now
	case "last-month":
		start = beginningOfMonth(now).AddDate(0, -1, 0)
		end = beginningOfMonth(now)
	case "all", "all-time":
		start = time.Time{}
		end = now
	default:
		err = fmt.Errorf("unknown preset: %s", preset)
		return
	}

	slog.Debug("parsed date preset", "preset", preset, "start", start, "end", end)
	return
}

// IsDatePreset reports whether s names a preset
func IsDatePreset(s string) bool {
	_, _, err := ParseDatePreset(s, time.Now())
	return err == nil
}

// ParseNaturalDate parses natural language dates such as "3 days ago"
func ParseNaturalDate(naturalDate string, now time.Time) (time.Time, error) {
	result, err := naturaldate.Parse(naturalDate, now)
	if err != nil {
		slog.Warn("failed to parse natural language date", "input", naturalDate, "error", err)
		return time.Time{}, fmt.Errorf("failed to parse natural date '%s': %w", naturalDate, err)
	}

	slog.Debug("parsed natural language date", "input", naturalDate, "result", result)
	return result, nil
}

// ApplySince fills the time filter from user input: a preset name or a
// natural language date.
func (q *QueryFilter) ApplySince(input string, now time.Time) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if IsDatePreset(input) {
		q.DatePreset = input
		return nil
	}
	since, err := ParseNaturalDate(input, now)
	if err != nil {
		return err
	}
	q.Since = &since
	return nil
}

func beginningOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// beginningOfWeek returns Monday 00:00:00 of t's week
func beginningOfWeek(t time.Time) time.Time {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	return beginningOfDay(t.AddDate(0, 0, -int(weekday-1)))
}

func beginningOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
