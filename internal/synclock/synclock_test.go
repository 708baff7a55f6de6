package synclock

import (
	"errors"
	"testing"

	syncpkg "github.com/greeddj/msync/internal/sync"
)

func TestTryAcquireBlocksConcurrentRun(t *testing.T) {
	dir := t.TempDir()

	first := New(dir, "acct1")
	if err := first.TryAcquire(); err != nil {
		t.Fatalf("first TryAcquire: %v", err)
	}
	defer func() { _ = first.Release() }()

	second := New(dir, "acct1")
	err := second.TryAcquire()
	if err == nil {
		t.Fatalf("expected second TryAcquire to fail while the first holds the lock")
	}
	if !errors.Is(err, syncpkg.ErrLock) {
		t.Fatalf("expected ErrLock, got %v", err)
	}
}

func TestTryAcquireSucceedsAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first := New(dir, "acct1")
	if err := first.TryAcquire(); err != nil {
		t.Fatalf("first TryAcquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	second := New(dir, "acct1")
	if err := second.TryAcquire(); err != nil {
		t.Fatalf("expected TryAcquire to succeed after release, got %v", err)
	}
	_ = second.Release()
}

func TestDifferentAccountsDoNotContend(t *testing.T) {
	dir := t.TempDir()

	a := New(dir, "acct1")
	b := New(dir, "acct2")

	if err := a.TryAcquire(); err != nil {
		t.Fatalf("acct1 TryAcquire: %v", err)
	}
	defer func() { _ = a.Release() }()

	if err := b.TryAcquire(); err != nil {
		t.Fatalf("expected acct2's lock to be independent, got %v", err)
	}
	_ = b.Release()
}
