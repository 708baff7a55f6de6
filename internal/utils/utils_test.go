package utils

import (
	"context"
	"os"
	"testing"
)

// withStdin redirects os.Stdin to a pipe fed with input for the
// duration of the test, restoring it on cleanup.
func withStdin(t *testing.T, input string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = orig })

	go func() {
		_, _ = w.WriteString(input)
		_ = w.Close()
	}()
}

func TestAskConfirmYes(t *testing.T) {
	withStdin(t, "y\n")
	ok, err := AskConfirm(context.Background(), "proceed?")
	if err != nil {
		t.Fatalf("AskConfirm: %v", err)
	}
	if !ok {
		t.Fatalf("expected 'y' to confirm")
	}
}

func TestAskConfirmNo(t *testing.T) {
	withStdin(t, "n\n")
	ok, err := AskConfirm(context.Background(), "proceed?")
	if err != nil {
		t.Fatalf("AskConfirm: %v", err)
	}
	if ok {
		t.Fatalf("expected 'n' to decline")
	}
}

func TestAskConfirmEmptyDefaultsToNo(t *testing.T) {
	withStdin(t, "\n")
	ok, err := AskConfirm(context.Background(), "proceed?")
	if err != nil {
		t.Fatalf("AskConfirm: %v", err)
	}
	if ok {
		t.Fatalf("expected an empty answer to default to no")
	}
}

func TestAskConfirmRetriesOnGarbage(t *testing.T) {
	withStdin(t, "maybe\nyes\n")
	ok, err := AskConfirm(context.Background(), "proceed?")
	if err != nil {
		t.Fatalf("AskConfirm: %v", err)
	}
	if !ok {
		t.Fatalf("expected the second, valid answer to confirm")
	}
}

func TestAskConfirmCancelledContext(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = orig; _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := AskConfirm(ctx, "proceed?")
	if err == nil {
		t.Fatalf("expected an error for an already-cancelled context")
	}
	if ok {
		t.Fatalf("expected false alongside the error")
	}
}
