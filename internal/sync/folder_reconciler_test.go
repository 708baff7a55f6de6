package sync

import "testing"

func hasHunk(hunks []Hunk, kind HunkKind, role Role, folder string) bool {
	for _, h := range hunks {
		if h.Kind == kind && h.Role == role && h.FolderName == folder {
			return true
		}
	}
	return false
}

func allHunks(p Patch) []Hunk {
	var out []Hunk
	for _, s := range p.Stages {
		out = append(out, s.Hunks...)
	}
	return out
}

func TestReconcileFoldersNewOnRemoteCreatesEverywhere(t *testing.T) {
	patch, survivors := ReconcileFolders(nil, nil, nil, []string{"INBOX"})
	hunks := allHunks(patch)

	for _, role := range []Role{RoleLocalCache, RoleLocal, RoleRemoteCache} {
		if !hasHunk(hunks, HunkCreateFolder, role, "INBOX") {
			t.Errorf("expected create-folder on %s", role)
		}
	}
	if hasHunk(hunks, HunkCreateFolder, RoleRemote, "INBOX") {
		t.Errorf("remote already has the folder, should not get a create")
	}
	if len(survivors) != 1 || survivors[0] != "INBOX" {
		t.Fatalf("expected survivors [INBOX], got %v", survivors)
	}
}

func TestReconcileFoldersRemoteCacheOnlyMeansDeletedRemotely(t *testing.T) {
	// 0010: only remote-cache remembers it -> remote deleted it, drop the memory.
	patch, survivors := ReconcileFolders(nil, nil, []string{"Old"}, nil)
	hunks := allHunks(patch)

	if !hasHunk(hunks, HunkDeleteFolder, RoleRemoteCache, "Old") {
		t.Fatalf("expected delete-folder on remote-cache")
	}
	if len(survivors) != 0 {
		t.Fatalf("a folder gone from every live side should not survive, got %v", survivors)
	}
}

func TestReconcileFoldersPresentEverywhereIsNoOp(t *testing.T) {
	all := []string{"INBOX"}
	patch, survivors := ReconcileFolders(all, all, all, all)
	if patch.HunkCount() != 0 {
		t.Fatalf("expected no hunks, got %d", patch.HunkCount())
	}
	if len(survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %v", survivors)
	}
}

func TestReconcileFoldersLocalDeletedPropagatesRemoval(t *testing.T) {
	// 1011: LC, RC, R all remember/have it, only L deleted it -> drop everywhere.
	patch, survivors := ReconcileFolders([]string{"Trash"}, nil, []string{"Trash"}, []string{"Trash"})
	hunks := allHunks(patch)

	for _, role := range []Role{RoleLocalCache, RoleRemoteCache, RoleRemote} {
		if !hasHunk(hunks, HunkDeleteFolder, role, "Trash") {
			t.Errorf("expected delete-folder on %s", role)
		}
	}
	if len(survivors) != 0 {
		t.Fatalf("expected no survivors, got %v", survivors)
	}
}

func TestReconcileFoldersOnlyLocalIsNewFolder(t *testing.T) {
	// 0100: a brand new local folder, propagate to every other side.
	patch, _ := ReconcileFolders(nil, []string{"Drafts"}, nil, nil)
	hunks := allHunks(patch)

	for _, role := range []Role{RoleLocalCache, RoleRemoteCache, RoleRemote} {
		if !hasHunk(hunks, HunkCreateFolder, role, "Drafts") {
			t.Errorf("expected create-folder on %s", role)
		}
	}
}
