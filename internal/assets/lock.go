package assets

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/juju/fslock"
)

// withDirLock runs action while holding the lock file at lockPath,
// waiting for concurrent holders until ctx is done.
func withDirLock(ctx context.Context, lockPath string, action func() error) error {
	lock := fslock.New(lockPath)
	for {
		err := lock.TryLock()
		if err == nil {
			break
		}
		if !errors.Is(err, fslock.ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release upload lock", "file", lockPath, "err", err)
		}
	}()
	return action()
}
