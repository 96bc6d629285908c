package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// CacheLock guards a storage root together with its manifest. Commands that
// read or fill the cache share it; clearing the cache takes it exclusively.
// The lock file sits next to the root so removing the root leaves it alone.
type CacheLock struct {
	lock *flock.Flock
	root string
}

// NewCacheLock creates the lock for an absolute storage root.
func NewCacheLock(root string) *CacheLock {
	return &CacheLock{
		lock: flock.New(filepath.Clean(root) + lockFileSuffix),
		root: root,
	}
}

// Share takes the lock alongside other users of the cache. It waits while the
// cache is being cleared.
func (l *CacheLock) Share() error {
	ok, err := l.lock.TryRLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.root, err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "The cache at %s is being cleared, waiting...\n", l.root)
		if err := l.lock.RLock(); err != nil {
			return fmt.Errorf("failed to lock %s after waiting: %w", l.root, err)
		}
	}
	return nil
}

// Exclusive takes the lock for this process alone, waiting for every running
// browse, timeline or fetch on the same root to exit.
func (l *CacheLock) Exclusive() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.root, err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Another graduate process is using the cache at %s, waiting for it to exit...\n", l.root)
		if err := l.lock.Lock(); err != nil {
			return fmt.Errorf("failed to lock %s after waiting: %w", l.root, err)
		}
	}
	return nil
}

// Unlock releases the lock in either mode.
func (l *CacheLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock on %s: %w", l.root, err)
	}
	return nil
}

// CheckRemovable refuses storage roots whose removal would take more than the
// cache with it: the filesystem root, the home directory or any of its parents.
func CheckRemovable(root string) error {
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		return fmt.Errorf("refusing to remove relative path %q", root)
	}
	if root == filepath.Dir(root) {
		return fmt.Errorf("refusing to remove filesystem root %s", root)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	home = filepath.Clean(home)
	if root == home || strings.HasPrefix(home, root+string(filepath.Separator)) {
		return errors.New("refusing to remove " + root + ": it contains the home directory")
	}
	return nil
}

// GetAbsDBPath resolves the cache manifest path.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".graduate", "graduate.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}

// GetAbsStorageRoot resolves the directory cached assets are written to.
func GetAbsStorageRoot(root string) (string, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".graduate", "data"), nil
	}
	return filepath.Abs(root)
}
