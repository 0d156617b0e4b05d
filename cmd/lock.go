package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/tomefetch/tomefetch/internal/config"
	"github.com/tomefetch/tomefetch/internal/utils"
)

var errAlreadyRunning = errors.New("tomefetch is already running")

func lockPath() string {
	return filepath.Join(config.GetRuntimeDir(), "tomefetch.lock")
}

// acquireInstanceLock takes the single-instance lock without blocking.
func acquireInstanceLock() (*flock.Flock, error) {
	if err := os.MkdirAll(config.GetRuntimeDir(), 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(lockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, errAlreadyRunning
	}
	return lock, nil
}

func releaseInstanceLock(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		utils.Debug("Error releasing lock: %v", err)
	}
}
