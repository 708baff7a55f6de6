package synclog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/greeddj/msync/internal/domain"
	syncpkg "github.com/greeddj/msync/internal/sync"
)

func TestLogHunkIncludesCoreFields(t *testing.T) {
	var buf bytes.Buffer
	run := NewRun(&buf, "acct1")

	hunk := syncpkg.RemoveEmail("INBOX", "42", syncpkg.RoleLocalCache)
	run.LogHunk(syncpkg.HunkResult{Hunk: hunk, Outcome: syncpkg.OutcomeApplied})

	out := buf.String()
	for _, want := range []string{`"account":"acct1"`, `"folder":"INBOX"`, `"hunk":"remove-email"`, `"role":"local-cache"`, `"internal_id":"42"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log line to contain %q, got %s", want, out)
		}
	}
}

func TestLogHunkUsesSourceTargetForCopyEmail(t *testing.T) {
	var buf bytes.Buffer
	run := NewRun(&buf, "acct1")

	env := domain.Envelope{InternalID: "1", MessageID: "<m@x>", Subject: "hi"}
	hunk := syncpkg.CopyEmail("INBOX", env, syncpkg.RoleRemote, syncpkg.RoleLocal)
	run.LogHunk(syncpkg.HunkResult{Hunk: hunk, Outcome: syncpkg.OutcomeApplied})

	out := buf.String()
	for _, want := range []string{`"source":"remote"`, `"target":"local"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log line to contain %q, got %s", want, out)
		}
	}
	if strings.Contains(out, `"role":`) {
		t.Fatalf("copy-email hunks should log source/target, not role: %s", out)
	}
}

func TestLogHunkSeveritySkippedUsesWarnLevel(t *testing.T) {
	var buf bytes.Buffer
	run := NewRun(&buf, "acct1")

	hunk := syncpkg.RemoveEmail("INBOX", "42", syncpkg.RoleLocalCache)
	run.LogHunk(syncpkg.HunkResult{Hunk: hunk, Outcome: syncpkg.OutcomeSkipped})

	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("expected a warn-level line for a skipped hunk, got %s", buf.String())
	}
}
