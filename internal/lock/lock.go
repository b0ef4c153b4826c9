// Package lock guards a session directory so that only one long-lived
// backend session runs per account.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// LockHeldError is returned when another process holds the session lock.
type LockHeldError struct {
	PID  int
	Path string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("session lock held by PID %d (%s)", e.PID, e.Path)
}

// Lock represents an acquired session lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock on sessionDir, recording the owner's
// PID in the lock file. Returns *LockHeldError if another process owns it.
func Acquire(sessionDir string) (*Lock, error) {
	f, path, err := open(sessionDir)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, &LockHeldError{PID: readPID(path), Path: path}
	}

	owner := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := rewrite(f, owner); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock owner: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Probe reports whether another process holds the lock on sessionDir
// without keeping it. A held lock is reported as *LockHeldError.
func Probe(sessionDir string) error {
	l, err := Acquire(sessionDir)
	if err != nil {
		return err
	}
	return l.Release()
}

// Held reports whether err says the session is owned by another process.
func Held(err error) bool {
	var held *LockHeldError
	return errors.As(err, &held)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func open(sessionDir string) (*os.File, string, error) {
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, "", fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(sessionDir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, "", fmt.Errorf("open lock file: %w", err)
	}
	return f, path, nil
}

func rewrite(f *os.File, content string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(content)
	return err
}

func readPID(path string) int {
	data, _ := os.ReadFile(path)
	for _, line := range strings.Split(string(data), "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ := strconv.Atoi(after)
			return pid
		}
	}
	return 0
}
