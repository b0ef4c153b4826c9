package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "LOCK"))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.Contains(string(data), "pid="+strconv.Itoa(os.Getpid())) {
		t.Errorf("lock file = %q, want own pid", data)
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Error("lock file left behind after Release")
	}
}

func TestDoubleAcquireFails(t *testing.T) {
	dir := t.TempDir()

	l1, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(dir)
	var lockErr *LockHeldError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockHeldError, got %T: %v", err, err)
	}
	if lockErr.PID != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", lockErr.PID, os.Getpid())
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()

	if err := Probe(dir); err != nil {
		t.Fatalf("Probe() on free dir = %v", err)
	}
	// Probing must not leave the lock held.
	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() after Probe = %v", err)
	}
	defer func() { _ = l.Release() }()

	if err := Probe(dir); !Held(err) {
		t.Errorf("Probe() on held dir = %v, want held", err)
	}
}

func TestReleaseNilAndIdempotent(t *testing.T) {
	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}

	l, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
