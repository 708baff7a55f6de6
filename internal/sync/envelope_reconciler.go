package sync

import (
	"github.com/greeddj/msync/internal/domain"
)

// ReconcileEnvelopes implements the §4.D envelope reconciler for one
// folder: given the four per-role snapshots already listed by the
// caller, it unions their fingerprint sets and applies the same
// 16-case presence matrix as the folder reconciler, but producing a
// *staged* patch because envelope operations have dependencies (cache
// an envelope before copying it; delete before creating).
func ReconcileEnvelopes(folder string, localCache, local, remoteCache, remote Snapshot) Patch {
	var patch Patch

	fingerprints := unionFingerprints(localCache, local, remoteCache, remote)
	for _, fp := range fingerprints {
		lcEnv, hasLC := localCache[fp]
		lEnv, hasL := local[fp]
		rcEnv, hasRC := remoteCache[fp]
		rEnv, hasR := remote[fp]

		var lcPtr, lPtr, rcPtr, rPtr *domain.Envelope
		if hasLC {
			lcPtr = &lcEnv
		}
		if hasL {
			lPtr = &lEnv
		}
		if hasRC {
			rcPtr = &rcEnv
		}
		if hasR {
			rPtr = &rEnv
		}

		envelopeCase(&patch, folder, lcPtr, lPtr, rcPtr, rPtr)
	}

	return patch
}

func unionFingerprints(snaps ...Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range snaps {
		for fp := range s {
			if !seen[fp] {
				seen[fp] = true
				out = append(out, fp)
			}
		}
	}
	return out
}

// envelopeCase appends the stages for one fingerprint's presence matrix
// (LC, L, RC, R) to patch, per spec.md §4.D's table.
func envelopeCase(patch *Patch, folder string, lc, l, rc, r *domain.Envelope) {
	present := [4]bool{lc != nil, l != nil, rc != nil, r != nil}

	switch present {
	case [4]bool{false, false, false, false}:
		// 0000 — nothing anywhere, nothing to do.

	case [4]bool{false, false, false, true}:
		patch.Append(CacheEnvelope(folder, r.InternalID, RoleRemote))
		patch.Append(CopyEmail(folder, *r, RoleRemote, RoleLocal))

	case [4]bool{false, false, true, false}:
		patch.Append(RemoveEmail(folder, rc.InternalID, RoleRemoteCache))

	case [4]bool{false, false, true, true}:
		patch.Append(CopyEmail(folder, *r, RoleRemote, RoleLocal))
		if !rc.Flags.Equal(r.Flags) {
			env := *rc
			env.Flags = r.Flags
			patch.Append(SetFlags(folder, env, RoleRemoteCache))
		}

	case [4]bool{false, true, false, false}:
		patch.Append(CacheEnvelope(folder, l.InternalID, RoleLocal))
		patch.Append(CopyEmail(folder, *l, RoleLocal, RoleRemote))

	case [4]bool{false, true, false, true}:
		tieBreak(patch, folder, l, r)

	case [4]bool{false, true, true, false}:
		patch.Append(
			RemoveEmail(folder, rc.InternalID, RoleRemoteCache),
			CacheEnvelope(folder, l.InternalID, RoleLocal),
			CopyEmail(folder, *l, RoleLocal, RoleRemote),
		)

	case [4]bool{false, true, true, true}:
		patch.Append(CacheEnvelope(folder, l.InternalID, RoleLocal))
		appendFlagDrift(patch, folder, nil, l, rc, r)

	case [4]bool{true, false, false, false}:
		patch.Append(RemoveEmail(folder, lc.InternalID, RoleLocalCache))

	case [4]bool{true, false, false, true}:
		patch.Append(
			RemoveEmail(folder, lc.InternalID, RoleLocalCache),
			CacheEnvelope(folder, r.InternalID, RoleRemote),
			CopyEmail(folder, *r, RoleRemote, RoleLocal),
		)

	case [4]bool{true, false, true, false}:
		patch.Append(RemoveEmail(folder, lc.InternalID, RoleLocalCache))
		patch.Append(RemoveEmail(folder, rc.InternalID, RoleRemoteCache))

	case [4]bool{true, false, true, true}:
		patch.Append(RemoveEmail(folder, lc.InternalID, RoleLocalCache))
		patch.Append(RemoveEmail(folder, rc.InternalID, RoleRemoteCache))
		patch.Append(RemoveEmail(folder, r.InternalID, RoleRemote))

	case [4]bool{true, true, false, false}:
		patch.Append(CopyEmail(folder, *l, RoleLocal, RoleRemote))
		if !lc.Flags.Equal(l.Flags) {
			env := *lc
			env.Flags = l.Flags
			patch.Append(SetFlags(folder, env, RoleLocalCache))
		}

	case [4]bool{true, true, false, true}:
		appendFlagDrift(patch, folder, lc, l, nil, r)
		patch.Append(CacheEnvelope(folder, r.InternalID, RoleRemote))

	case [4]bool{true, true, true, false}:
		patch.Append(RemoveEmail(folder, lc.InternalID, RoleLocalCache))
		patch.Append(RemoveEmail(folder, l.InternalID, RoleLocal))
		patch.Append(RemoveEmail(folder, rc.InternalID, RoleRemoteCache))

	default: // 1111
		appendFlagDrift(patch, folder, lc, l, rc, r)
	}
}

// tieBreak implements the case-0101 policy from spec.md §4.D: both
// Local and Remote have a new email with a matching fingerprint but
// distinct internal_ids. The winner is kept and propagated to the
// loser side; the loser is removed first so stores that reject
// duplicate internal_ids never see both at once (spec open question
// 4) — hence a single Ordered stage.
func tieBreak(patch *Patch, folder string, l, r *domain.Envelope) {
	keepLocal := false
	switch {
	case l.HasDate() && !r.HasDate():
		keepLocal = true
	case l.HasDate() && r.HasDate() && l.Date.After(r.Date):
		keepLocal = true
	}

	if keepLocal {
		patch.AppendOrdered(
			RemoveEmail(folder, r.InternalID, RoleRemote),
			CopyEmail(folder, *l, RoleLocal, RoleRemote),
			CacheEnvelope(folder, l.InternalID, RoleLocal),
		)
		return
	}

	patch.AppendOrdered(
		RemoveEmail(folder, l.InternalID, RoleLocal),
		CopyEmail(folder, *r, RoleRemote, RoleLocal),
		CacheEnvelope(folder, r.InternalID, RoleRemote),
	)
}

// appendFlagDrift emits one SetFlags stage per role whose flags differ
// from flagsMerge(lc, l, rc, r), as required by cases 0111, 1101 and
// 1111 of spec.md §4.D.
func appendFlagDrift(patch *Patch, folder string, lc, l, rc, r *domain.Envelope) {
	merged := flagsMerge(lc, l, rc, r)

	type roled struct {
		env  *domain.Envelope
		role Role
	}
	for _, c := range []roled{{lc, RoleLocalCache}, {l, RoleLocal}, {rc, RoleRemoteCache}, {r, RoleRemote}} {
		if c.env == nil {
			continue
		}
		if c.env.Flags.Equal(merged) {
			continue
		}
		env := *c.env
		env.Flags = merged
		patch.Append(SetFlags(folder, env, c.role))
	}
}
