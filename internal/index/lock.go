package index

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ragerr "github.com/DrNightingales/Custom-RAG/internal/errors"
)

const lockFileName = "index.lock"

// AcquireLock takes an exclusive file lock on the data directory so
// only one index run writes to it at a time. The caller must invoke
// the returned release function.
func AcquireLock(dataDir string) (func(), error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, ragerr.StoreUnavailable("create data dir", err)
	}
	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ragerr.StoreUnavailable("acquire index lock", err)
	}
	if !locked {
		return nil, ragerr.New(ragerr.ErrCodeIndexLocked,
			"another index run holds the lock on "+dataDir, nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
