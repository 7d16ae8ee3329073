package store

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
)

// dirLock is an exclusive advisory lock on a template directory. The lock
// file sits next to the directory so it survives the directory being
// swapped out by a save-as.
type dirLock struct {
	file *os.File
	path string
}

func lockPath(root string) string {
	return filepath.Join(filepath.Dir(root), "."+filepath.Base(root)+".lock")
}

// acquireLock takes the lock without blocking. Contention is a LockFailure.
func acquireLock(root string) (*dirLock, error) {
	path := lockPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, serrors.IOFailure(root, fmt.Errorf("creating parent directory: %w", err))
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, serrors.IOFailure(root, fmt.Errorf("opening lock file: %w", err))
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, serrors.LockFailure(root, err)
	}

	return &dirLock{file: file, path: path}, nil
}

// release drops the lock. The lock file stays so that every writer locks
// the same inode.
func (l *dirLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}

// isLocked reports whether another writer holds the lock on root.
func isLocked(root string) bool {
	file, err := os.OpenFile(lockPath(root), os.O_RDWR, 0644)
	if err != nil {
		return false
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return true
	}
	syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	return false
}
