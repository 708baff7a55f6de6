package sync

import (
	"testing"
	"time"

	"github.com/greeddj/msync/internal/domain"
)

func snap(folder string, envs ...domain.Envelope) Snapshot {
	return BuildSnapshot(folder, envs)
}

func newEnvelope(internalID string, date time.Time, flags ...domain.Flag) domain.Envelope {
	return domain.Envelope{
		InternalID: internalID,
		MessageID:  "<shared@x>",
		Subject:    "hi",
		From:       domain.Mailbox{Address: "a@b.com"},
		Date:       date,
		Flags:      domain.NewFlagSet(flags...),
	}
}

func TestReconcileEnvelopesNewOnRemoteCopiesToLocal(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newEnvelope("r1", date, seen)

	patch := ReconcileEnvelopes("INBOX", nil, nil, nil, snap("INBOX", r))
	hunks := allHunks(patch)

	foundCache, foundCopy := false, false
	for _, h := range hunks {
		if h.Kind == HunkCacheEnvelope && h.Role == RoleRemote {
			foundCache = true
		}
		if h.Kind == HunkCopyEmail && h.Source == RoleRemote && h.Target == RoleLocal {
			foundCopy = true
		}
	}
	if !foundCache || !foundCopy {
		t.Fatalf("expected cache-envelope(remote) + copy-email(remote->local), got %+v", hunks)
	}
}

func TestReconcileEnvelopesPresentEverywhereNoDriftIsNoOp(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lc := newEnvelope("lc1", date, seen)
	l := newEnvelope("l1", date, seen)
	rc := newEnvelope("rc1", date, seen)
	r := newEnvelope("r1", date, seen)

	patch := ReconcileEnvelopes("INBOX",
		snap("INBOX", lc), snap("INBOX", l), snap("INBOX", rc), snap("INBOX", r))
	if patch.HunkCount() != 0 {
		t.Fatalf("expected no hunks when flags already agree, got %d", patch.HunkCount())
	}
}

func TestReconcileEnvelopesGoneFromBothLiveSidesRemovesCaches(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lc := newEnvelope("lc1", date, seen)
	rc := newEnvelope("rc1", date, seen)

	patch := ReconcileEnvelopes("INBOX", snap("INBOX", lc), nil, snap("INBOX", rc), nil)
	hunks := allHunks(patch)

	if len(hunks) != 2 {
		t.Fatalf("expected exactly 2 remove-email hunks, got %d: %+v", len(hunks), hunks)
	}
	for _, h := range hunks {
		if h.Kind != HunkRemoveEmail {
			t.Fatalf("expected only remove-email hunks, got %v", h.Kind)
		}
	}
}

func TestReconcileEnvelopesTieBreakPrefersNewerDate(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	l := newEnvelope("local-id", older, seen)
	r := newEnvelope("remote-id", newer, seen)

	patch := ReconcileEnvelopes("INBOX", nil, snap("INBOX", l), nil, snap("INBOX", r))

	if len(patch.Stages) != 1 || !patch.Stages[0].Ordered {
		t.Fatalf("expected a single ordered tie-break stage, got %+v", patch.Stages)
	}
	hunks := patch.Stages[0].Hunks
	if len(hunks) != 3 {
		t.Fatalf("expected 3 ordered hunks, got %d", len(hunks))
	}
	if hunks[0].Kind != HunkRemoveEmail || hunks[0].Role != RoleLocal {
		t.Fatalf("expected the older (local) side removed first, got %+v", hunks[0])
	}
	if hunks[1].Kind != HunkCopyEmail || hunks[1].Source != RoleRemote || hunks[1].Target != RoleLocal {
		t.Fatalf("expected remote copied over the removed local side, got %+v", hunks[1])
	}
}

func TestReconcileEnvelopesFlagDriftEmitsSetFlagsOnlyWhereNeeded(t *testing.T) {
	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lc := newEnvelope("lc1", date, seen)
	l := newEnvelope("l1", date, seen, domain.Flag{Kind: domain.FlagFlagged})
	rc := newEnvelope("rc1", date, seen)
	r := newEnvelope("r1", date, seen)

	patch := ReconcileEnvelopes("INBOX",
		snap("INBOX", lc), snap("INBOX", l), snap("INBOX", rc), snap("INBOX", r))
	hunks := allHunks(patch)

	roles := map[Role]bool{}
	for _, h := range hunks {
		if h.Kind != HunkSetFlags {
			t.Fatalf("expected only set-flags hunks, got %v", h.Kind)
		}
		roles[h.Role] = true
		if !h.Envelope.Flags.Has(domain.Flag{Kind: domain.FlagFlagged}) {
			t.Fatalf("expected merged flags to include Flagged")
		}
	}
	if roles[RoleLocal] {
		t.Fatalf("local already carries the merged flags, should not be touched")
	}
	for _, want := range []Role{RoleLocalCache, RoleRemoteCache, RoleRemote} {
		if !roles[want] {
			t.Fatalf("expected set-flags on %s", want)
		}
	}
}
