package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	leaseFilePermissions = 0o644
	leaseDirPermissions  = 0o755
)

// Lease is a mutual-exclusion lock held for the duration of one run
// against a given destination. spec.md §5 requires that two concurrent
// runs against the same destination never be allowed; Lease enforces
// this with an exclusive, non-blocking flock on a file under the local
// cache directory, keyed by config ID.
type Lease struct {
	path string
	file *os.File
}

// AcquireLease opens (creating if necessary) the lease file at
// <cacheDir>/<configID>.lock and takes a non-blocking exclusive flock on
// it. It returns an error immediately if another run already holds the
// lease, rather than blocking — a second concurrent `dfb backup` should
// fail fast, not queue silently behind the first.
func AcquireLease(cacheDir, configID string) (*Lease, error) {
	path := filepath.Join(cacheDir, configID+".lock")

	if err := os.MkdirAll(cacheDir, leaseDirPermissions); err != nil {
		return nil, fmt.Errorf("core: lease: creating cache directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, leaseFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("core: lease: opening %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("core: lease: another run already holds %s: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("core: lease: truncating %s: %w", path, err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("core: lease: writing pid to %s: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("core: lease: syncing %s: %w", path, err)
	}

	return &Lease{path: path, file: f}, nil
}

// Release unlocks and closes the lease file, leaving it on disk for the
// next run to reacquire.
func (l *Lease) Release() error {
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()

		return fmt.Errorf("core: lease: unlocking %s: %w", l.path, err)
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("core: lease: closing %s: %w", l.path, err)
	}

	return nil
}

// HolderPID reads the PID recorded in the lease file at path, for
// diagnostics when AcquireLease fails (e.g. to report which process
// holds it). Returns 0 if the file is absent or unparsable.
func HolderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}

	return pid
}
