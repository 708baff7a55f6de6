// Package domain holds the mail entities the sync core reconciles:
// folders, envelopes and flags. It has no I/O of its own.
package domain

import "sort"

// Flag is one of the fixed set of message flags the core understands.
// Custom flags (keywords not in the standard set) are represented by
// CustomFlag with Name holding the raw keyword.
type Flag struct {
	Kind FlagKind
	Name string // only meaningful when Kind == FlagCustom
}

// FlagKind enumerates the closed set of flag kinds.
type FlagKind int

const (
	FlagSeen FlagKind = iota
	FlagAnswered
	FlagFlagged
	FlagDeleted
	FlagDraft
	FlagRecent
	FlagCustom
)

// String renders the flag the way it is compared and logged.
func (f Flag) String() string {
	if f.Kind == FlagCustom {
		return f.Name
	}
	switch f.Kind {
	case FlagSeen:
		return "Seen"
	case FlagAnswered:
		return "Answered"
	case FlagFlagged:
		return "Flagged"
	case FlagDeleted:
		return "Deleted"
	case FlagDraft:
		return "Draft"
	case FlagRecent:
		return "Recent"
	default:
		return "Custom()"
	}
}

// CustomFlag builds a Flag for a keyword not part of the standard set.
func CustomFlag(name string) Flag {
	return Flag{Kind: FlagCustom, Name: name}
}

// Equal compares two flags by kind, and by name when both are custom.
func (f Flag) Equal(other Flag) bool {
	if f.Kind != other.Kind {
		return false
	}
	if f.Kind == FlagCustom {
		return f.Name == other.Name
	}
	return true
}

// FlagSet is an unordered set of Flag with no duplicates.
type FlagSet struct {
	m map[string]Flag
}

// NewFlagSet builds a set from the given flags, deduplicating by String().
func NewFlagSet(flags ...Flag) FlagSet {
	fs := FlagSet{m: make(map[string]Flag, len(flags))}
	for _, f := range flags {
		fs.m[f.String()] = f
	}
	return fs
}

// Add inserts a flag into the set.
func (fs *FlagSet) Add(f Flag) {
	if fs.m == nil {
		fs.m = make(map[string]Flag)
	}
	fs.m[f.String()] = f
}

// Remove deletes a flag from the set, if present.
func (fs *FlagSet) Remove(f Flag) {
	delete(fs.m, f.String())
}

// Has reports whether the set contains the given flag.
func (fs FlagSet) Has(f Flag) bool {
	_, ok := fs.m[f.String()]
	return ok
}

// Len returns the number of flags in the set.
func (fs FlagSet) Len() int {
	return len(fs.m)
}

// Slice returns the flags in the set, sorted by String() for determinism.
func (fs FlagSet) Slice() []Flag {
	out := make([]Flag, 0, len(fs.m))
	for _, f := range fs.m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Equal reports whether two flag sets contain exactly the same flags.
func (fs FlagSet) Equal(other FlagSet) bool {
	if fs.Len() != other.Len() {
		return false
	}
	for k := range fs.m {
		if _, ok := other.m[k]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (fs FlagSet) Clone() FlagSet {
	out := NewFlagSet()
	for _, f := range fs.Slice() {
		out.Add(f)
	}
	return out
}

// Union returns a new set containing every flag present in any of sets.
func Union(sets ...FlagSet) FlagSet {
	out := NewFlagSet()
	for _, s := range sets {
		for _, f := range s.Slice() {
			out.Add(f)
		}
	}
	return out
}
