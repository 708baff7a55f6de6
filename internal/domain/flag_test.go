package domain

import "testing"

func TestFlagSetAddRemoveHas(t *testing.T) {
	fs := NewFlagSet()
	if fs.Len() != 0 {
		t.Fatalf("expected empty set, got len %d", fs.Len())
	}

	seen := Flag{Kind: FlagSeen}
	fs.Add(seen)
	if !fs.Has(seen) || fs.Len() != 1 {
		t.Fatalf("expected Seen present after Add")
	}

	fs.Remove(seen)
	if fs.Has(seen) || fs.Len() != 0 {
		t.Fatalf("expected Seen gone after Remove")
	}
}

func TestFlagSetDeduplicatesCustomFlagsByName(t *testing.T) {
	fs := NewFlagSet(CustomFlag("foo"), CustomFlag("foo"), CustomFlag("bar"))
	if fs.Len() != 2 {
		t.Fatalf("expected 2 distinct custom flags, got %d", fs.Len())
	}
}

func TestFlagSetEqual(t *testing.T) {
	a := NewFlagSet(Flag{Kind: FlagSeen}, Flag{Kind: FlagFlagged})
	b := NewFlagSet(Flag{Kind: FlagFlagged}, Flag{Kind: FlagSeen})
	c := NewFlagSet(Flag{Kind: FlagSeen})

	if !a.Equal(b) {
		t.Fatalf("expected sets with the same members in different order to be equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected sets with different members to not be equal")
	}
}

func TestFlagSetCloneIsIndependent(t *testing.T) {
	a := NewFlagSet(Flag{Kind: FlagSeen})
	b := a.Clone()
	b.Add(Flag{Kind: FlagFlagged})

	if a.Has(Flag{Kind: FlagFlagged}) {
		t.Fatalf("mutating the clone must not affect the original")
	}
	if !b.Has(Flag{Kind: FlagSeen}) || !b.Has(Flag{Kind: FlagFlagged}) {
		t.Fatalf("expected the clone to carry both flags")
	}
}

func TestUnion(t *testing.T) {
	a := NewFlagSet(Flag{Kind: FlagSeen})
	b := NewFlagSet(Flag{Kind: FlagFlagged})

	u := Union(a, b)
	if u.Len() != 2 || !u.Has(Flag{Kind: FlagSeen}) || !u.Has(Flag{Kind: FlagFlagged}) {
		t.Fatalf("expected the union of both sets, got %v", u.Slice())
	}
}

func TestFlagEqual(t *testing.T) {
	if !(Flag{Kind: FlagSeen}).Equal(Flag{Kind: FlagSeen}) {
		t.Fatalf("expected identical standard flags to be equal")
	}
	if (Flag{Kind: FlagSeen}).Equal(Flag{Kind: FlagFlagged}) {
		t.Fatalf("expected different standard flags to not be equal")
	}
	if !CustomFlag("foo").Equal(CustomFlag("foo")) {
		t.Fatalf("expected identical custom flags to be equal")
	}
	if CustomFlag("foo").Equal(CustomFlag("bar")) {
		t.Fatalf("expected different custom flags to not be equal")
	}
}
