package keystore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	lockTimeout  = 10 * time.Second
	lockPoll     = 100 * time.Millisecond
	lockStaleAge = 5 * time.Minute
)

// fileLock is an advisory lock file holding the owner's pid. It serializes
// key generation across processes sharing one data directory.
type fileLock struct {
	path string
}

func acquireLock(path string, timeout time.Duration) (*fileLock, error) {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &fileLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if lockIsStale(path) {
			os.Remove(path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock %s", path)
		}
		time.Sleep(lockPoll)
	}
}

func (l *fileLock) Release() {
	os.Remove(l.path)
}

// lockIsStale reports whether the lock holder is gone: the pid is dead or
// unparsable, or the lock outlived the hard age cap.
func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		// Holder may have released between our create attempt and now
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return true
	}
	if !pidAlive(pid) {
		return true
	}

	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) > lockStaleAge {
		return true
	}
	return false
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else
	return errors.Is(err, syscall.EPERM)
}
