package idmap

import (
	"path/filepath"
	"testing"
)

func TestRegisterPersistsInternalID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folder.idmap")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	long := "aaaaaaaaaaaaaaaaaaaa"
	if err := m.Register(long, "1234.host:2,S"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	id, ok := m.InternalID(long)
	if !ok || id != "1234.host:2,S" {
		t.Fatalf("InternalID(%q) = %q, %v; want the registered internal id", long, id, ok)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, ok := reloaded.InternalID(long)
	if !ok || got != "1234.host:2,S" {
		t.Fatalf("expected persisted internal id, got %q, %v", got, ok)
	}
}

func TestRegisterIsNoOpForSameMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folder.idmap")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	long := "deadbeefdeadbeefdead"
	if err := m.Register(long, "key-1"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := m.Register(long, "key-1"); err != nil {
		t.Fatalf("repeat Register: %v", err)
	}
	if got, ok := m.InternalID(long); !ok || got != "key-1" {
		t.Fatalf("expected mapping to stay key-1, got %q, %v", got, ok)
	}
}

func TestRegisterMovesMappingOnRedelivery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folder.idmap")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	long := "cafebabecafebabecafe"
	if err := m.Register(long, "key-old"); err != nil {
		t.Fatalf("Register key-old: %v", err)
	}
	if err := m.Register(long, "key-new"); err != nil {
		t.Fatalf("Register key-new: %v", err)
	}

	if got, ok := m.InternalID(long); !ok || got != "key-new" {
		t.Fatalf("expected mapping to move to key-new, got %q, %v", got, ok)
	}
	if _, ok := m.LongHash("key-old"); ok {
		t.Fatalf("expected the stale internal id to no longer resolve")
	}
	if gotLong, ok := m.LongHash("key-new"); !ok || gotLong != long {
		t.Fatalf("LongHash(key-new) = %q, %v; want %q, true", gotLong, ok, long)
	}
}

func TestShortIDLengthensOnCollidingPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folder.idmap")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	a := "aaxxxxxxxxxxxxxxxxxx"
	b := "aayyyyyyyyyyyyyyyyyy" // shares a 2-char prefix with a

	if err := m.Register(a, "key-a"); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if err := m.Register(b, "key-b"); err != nil {
		t.Fatalf("Register b: %v", err)
	}

	idA := m.ShortID(a)
	idB := m.ShortID(b)
	if idA == idB {
		t.Fatalf("expected distinct short ids for colliding prefixes, got %q for both", idA)
	}
}

func TestForgetRemovesMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folder.idmap")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	long := "deadbeefdeadbeefdead"
	if err := m.Register(long, "key-1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Forget(long); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok := m.InternalID(long); ok {
		t.Fatalf("expected InternalID to fail after Forget")
	}
	if _, ok := m.LongHash("key-1"); ok {
		t.Fatalf("expected LongHash to fail after Forget")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := reloaded.InternalID(long); ok {
		t.Fatalf("expected the forgotten mapping to not survive reload")
	}
}

func TestLoadMissingFileIsEmptyMap(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "does-not-exist.idmap"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := m.InternalID("anything"); ok {
		t.Fatalf("expected an empty map for a missing file")
	}
}
