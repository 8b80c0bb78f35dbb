package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

var ErrNilDatabase = errors.New("journal database is nil")

// Entry is one recorded probe or decode run
type Entry struct {
	ID         int64
	Timestamp  time.Time
	Command    string // "probe" or "decode"
	Path       string
	Format     string
	Code       string
	Message    string
	Channels   int
	SampleRate int
	BlockAlign int
	Tag        string
	SizeBytes  int64
	BytesRead  int64
}

var entryColumns = []string{
	"id", "timestamp", "command", "path", "format", "code", "message",
	"channels", "sample_rate", "block_align", "tag", "size_bytes", "bytes_read",
}

// Failed reports whether the run ended with a non-ok code
func (e Entry) Failed() bool { return e.Code != "ok" }

// Journal records probe results in SQLite
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps an open database created by NewDatabase
func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Open opens the database at path and wraps it
func Open(path string) (*Journal, error) {
	db, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Close closes the underlying database
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts e and returns its id. A zero Timestamp is stamped with
// the current time.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if j.db == nil {
		return 0, ErrNilDatabase
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = j.now()
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("probes").
		Cols(entryColumns[1:]...).
		Values(e.Timestamp.Unix(), e.Command, e.Path, e.Format, e.Code, e.Message,
			e.Channels, e.SampleRate, e.BlockAlign, e.Tag, e.SizeBytes, e.BytesRead)
	query, args := ib.Build()

	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to record journal entry", "path", e.Path, "error", err)
		return 0, fmt.Errorf("failed to record journal entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get journal entry id: %w", err)
	}

	slog.Debug("journal entry recorded", "id", id, "command", e.Command, "path", e.Path, "code", e.Code)
	return id, nil
}

// Recent returns entries matching filter, newest first
func (j *Journal) Recent(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if j.db == nil {
		return nil, ErrNilDatabase
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(entryColumns...).From("probes")
	filter.Where(sb, j.now())
	sb.OrderBy("timestamp DESC", "id DESC").Limit(filter.limit())
	query, args := sb.Build()

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Command, &e.Path, &e.Format, &e.Code, &e.Message,
			&e.Channels, &e.SampleRate, &e.BlockAlign, &e.Tag, &e.SizeBytes, &e.BytesRead); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}

	slog.Debug("journal query completed", "entries", len(entries))
	return entries, nil
}

// FormatCount is the number of runs per format
type FormatCount struct {
	Format string
	Total  int
	Failed int
}

// CountByFormat summarises entries matching filter per format
func (j *Journal) CountByFormat(ctx context.Context, filter QueryFilter) ([]FormatCount, error) {
	if j.db == nil {
		return nil, ErrNilDatabase
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("format", "COUNT(*)", "SUM(CASE WHEN code != 'ok' THEN 1 ELSE 0 END)").From("probes")
	filter.Where(sb, j.now())
	sb.GroupBy("format").OrderBy("COUNT(*) DESC", "format")
	query, args := sb.Build()

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count journal entries: %w", err)
	}
	defer rows.Close()

	var counts []FormatCount
	for rows.Next() {
		var c FormatCount
		if err := rows.Scan(&c.Format, &c.Total, &c.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan format count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
