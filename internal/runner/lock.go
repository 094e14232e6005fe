package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrLocked indicates another invocation currently holds the run lock.
// Expected under overlapping cron triggers; callers log and exit cleanly.
var ErrLocked = errors.New("another run is active")

// Lock is a simple lock-file guard against concurrent runs racing on seen-set
// persistence and double-notifying.
type Lock struct {
	path string
}

// AcquireLock creates the lock file exclusively, writing the holder PID. A
// lock file older than stale is assumed abandoned (crashed run) and broken.
func AcquireLock(path string, stale time.Duration) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock file %s: %w", path, errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file %s: %w", path, err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			// Holder released between our attempts; retry once.
			continue
		}
		if stale > 0 && time.Since(info.ModTime()) > stale {
			// Abandoned by a crashed run: break it and retry.
			_ = os.Remove(path)
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	return os.Remove(l.path)
}
