package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// lockFileName lives in the install root while a session runs. Two
// simultaneous installs over the same tree would corrupt it, so the lock is
// taken before the first destructive step.
const lockFileName = ".lapisup.lock"

// acquireLock creates the lock file, failing with ErrUpdateInProgress when it
// already exists. The returned release func removes it.
func acquireLock(installRoot, sessionID string) (func(), error) {
	path := filepath.Join(installRoot, lockFileName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w (remove %s if no update is running)", ErrUpdateInProgress, path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	fmt.Fprintf(f, "pid=%d session=%s\n", os.Getpid(), sessionID)
	_ = f.Close()

	return func() { _ = os.Remove(path) }, nil
}
