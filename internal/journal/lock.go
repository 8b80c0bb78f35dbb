package journal

import (
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
)

// schemaLock serialises schema setup between processes sharing one journal
type schemaLock struct {
	path  string
	flock *flock.Flock
}

func newSchemaLock(dbPath string) *schemaLock {
	path := dbPath + ".lock"
	return &schemaLock{path: path, flock: flock.New(path)}
}

// acquire blocks until the lock is held
func (l *schemaLock) acquire() error {
	slog.Debug("acquiring journal schema lock", "lock_path", l.path)
	if err := l.flock.Lock(); err != nil {
		slog.Error("failed to acquire journal schema lock", "lock_path", l.path, "error", err)
		return fmt.Errorf("failed to lock %s: %w", l.path, err)
	}
	return nil
}

func (l *schemaLock) release() {
	if err := l.flock.Unlock(); err != nil {
		slog.Warn("failed to release journal schema lock", "lock_path", l.path, "error", err)
	}
}
