package sync

import "github.com/greeddj/msync/internal/domain"

// flagsMerge implements spec.md §4.D's flags_merge(lc, l, rc, r): the
// union of flags actually present on the four (possibly absent)
// envelopes, each flag included or omitted by a 16-way matrix on
// (f in lc, f in l, f in rc, f in r).
//
// Deleted is asymmetric (favors removal, never resurrected by a stale
// cache); every other flag follows the symmetric add-wins rule: a flag
// survives when either live side added it since the last sync, and is
// dropped when either live side removed it since the last sync.
func flagsMerge(lc, l, rc, r *domain.Envelope) domain.FlagSet {
	all := []domain.FlagSet{}
	for _, e := range []*domain.Envelope{lc, l, rc, r} {
		if e != nil {
			all = append(all, e.Flags)
		}
	}
	union := domain.Union(all...)

	merged := domain.NewFlagSet()
	for _, f := range union.Slice() {
		inLC := lc != nil && lc.Flags.Has(f)
		inL := l != nil && l.Flags.Has(f)
		inRC := rc != nil && rc.Flags.Has(f)
		inR := r != nil && r.Flags.Has(f)

		if f.Kind == domain.FlagDeleted {
			if deletedSurvives(inLC, inL, inRC, inR) {
				merged.Add(f)
			}
			continue
		}

		if symmetricSurvives(inLC, inL, inRC, inR) {
			merged.Add(f)
		}
	}
	return merged
}

// symmetricSurvives is the add-wins rule shared by every non-Deleted
// flag: f is in the merged set iff
//
//	(!inLC && inL) || (!inRC && inR) || (inLC && inL && inRC && inR)
func symmetricSurvives(inLC, inL, inRC, inR bool) bool {
	return (!inLC && inL) || (!inRC && inR) || (inLC && inL && inRC && inR)
}

// deletedSurvives implements Deleted's asymmetric rule: Deleted is
// omitted whenever it appears in at least one cached side but not both
// live sides (never resurrect a deletion); otherwise it follows the
// same add-wins shape as every other flag.
func deletedSurvives(inLC, inL, inRC, inR bool) bool {
	if (inLC || inRC) && !(inL && inR) {
		return false
	}
	return symmetricSurvives(inLC, inL, inRC, inR)
}
