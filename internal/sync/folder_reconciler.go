package sync

// ReconcileFolders implements the §4.C folder reconciler: a 4-way diff
// over folder-name sets. It returns a flat patch (folder operations are
// independent and never need staging) plus the union of the four input
// sets, which becomes the folder list for envelope reconciliation.
//
// The 16-case presence matrix below is copied verbatim from spec.md
// §4.C; cases where both cached sides diverged (1100, 0011) resolve in
// favor of the addition, never silently destroying folders.
func ReconcileFolders(localCache, local, remoteCache, remote []string) (Patch, []string) {
	lc := toSet(localCache)
	l := toSet(local)
	rc := toSet(remoteCache)
	r := toSet(remote)

	union := unionSets(lc, l, rc, r)
	names := make([]string, 0, len(union))
	for name := range union {
		names = append(names, name)
	}

	var patch Patch
	for name := range union {
		present := [4]bool{lc[name], l[name], rc[name], r[name]}
		for _, h := range folderCase(name, present) {
			patch.Append(h)
		}
	}

	return patch, names
}

// folderCase returns the hunks for one folder name given presence
// (LC, L, RC, R), per spec.md §4.C's table.
func folderCase(name string, p [4]bool) []Hunk {
	lc, l, rc, r := p[0], p[1], p[2], p[3]

	switch {
	case !lc && !l && !rc && !r:
		return nil
	case !lc && !l && !rc && r:
		return createIn(name, RoleLocalCache, RoleLocal, RoleRemoteCache)
	case !lc && !l && rc && !r:
		return deleteFrom(name, RoleRemoteCache)
	case !lc && !l && rc && r:
		return createIn(name, RoleLocalCache, RoleLocal)
	case !lc && l && !rc && !r:
		return createIn(name, RoleLocalCache, RoleRemoteCache, RoleRemote)
	case !lc && l && !rc && r:
		return createIn(name, RoleLocalCache, RoleRemoteCache)
	case !lc && l && rc && !r:
		return createIn(name, RoleLocalCache, RoleRemote)
	case !lc && l && rc && r:
		return createIn(name, RoleLocalCache)
	case lc && !l && !rc && !r:
		return deleteFrom(name, RoleLocalCache)
	case lc && !l && !rc && r:
		return createIn(name, RoleLocal, RoleRemoteCache)
	case lc && !l && rc && !r:
		return deleteFrom(name, RoleLocalCache, RoleRemoteCache)
	case lc && !l && rc && r:
		return deleteFrom(name, RoleLocalCache, RoleRemoteCache, RoleRemote)
	case lc && l && !rc && !r:
		return createIn(name, RoleRemoteCache, RoleRemote)
	case lc && l && !rc && r:
		return createIn(name, RoleRemoteCache)
	case lc && l && rc && !r:
		return deleteFrom(name, RoleLocalCache, RoleLocal, RoleRemoteCache)
	default: // lc && l && rc && r
		return nil
	}
}

func createIn(name string, roles ...Role) []Hunk {
	hunks := make([]Hunk, len(roles))
	for i, role := range roles {
		hunks[i] = CreateFolder(name, role)
	}
	return hunks
}

func deleteFrom(name string, roles ...Role) []Hunk {
	hunks := make([]Hunk, len(roles))
	for i, role := range roles {
		hunks[i] = DeleteFolder(name, role)
	}
	return hunks
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func unionSets(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}
