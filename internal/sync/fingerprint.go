package sync

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/greeddj/msync/internal/domain"
)

// Fingerprint computes the cross-store identity of an email within a
// folder: a stable digest of folder || message_id || subject ||
// from.address || date.to_rfc3339(). It is pure, deterministic, and
// independent of flags, internal_id and id.
//
// SHA-256 is used for its width (well over the 128-bit floor the spec
// requires) and because it needs no external dependency beyond the
// standard library; the digest never crosses a process boundary (it
// only ever lives inside the cache DB and in-memory snapshots) so no
// third-party hash package is warranted here — see DESIGN.md.
func Fingerprint(folder string, env domain.Envelope) string {
	h := sha256.New()
	h.Write([]byte(folder))
	h.Write([]byte{0})
	h.Write([]byte(env.MessageID))
	h.Write([]byte{0})
	h.Write([]byte(env.Subject))
	h.Write([]byte{0})
	h.Write([]byte(env.From.Address))
	h.Write([]byte{0})
	if env.HasDate() {
		h.Write([]byte(env.Date.UTC().Format("2006-01-02T15:04:05Z07:00")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// BuildSnapshot folds a list of envelopes (as returned by Store.ListEnvelopes,
// or the per-row aggregation in internal/cache) into a fingerprint-keyed
// snapshot for one (source, folder) pair.
func BuildSnapshot(folder string, envs []domain.Envelope) Snapshot {
	snap := make(Snapshot, len(envs))
	for _, e := range envs {
		snap[Fingerprint(folder, e)] = e
	}
	return snap
}
