package sync

import "github.com/greeddj/msync/internal/domain"

// HunkKind enumerates the closed set of reconciliation actions.
type HunkKind int

const (
	HunkCacheEnvelope HunkKind = iota
	HunkCopyEmail
	HunkRemoveEmail
	HunkSetFlags
	HunkCreateFolder
	HunkDeleteFolder
)

func (k HunkKind) String() string {
	switch k {
	case HunkCacheEnvelope:
		return "cache-envelope"
	case HunkCopyEmail:
		return "copy-email"
	case HunkRemoveEmail:
		return "remove-email"
	case HunkSetFlags:
		return "set-flags"
	case HunkCreateFolder:
		return "create-folder"
	case HunkDeleteFolder:
		return "delete-folder"
	default:
		return "unknown"
	}
}

// Hunk is one atomic reconciliation action. Not every field is
// meaningful for every Kind; see the constructors below.
type Hunk struct {
	Kind HunkKind

	Folder string

	// Role is the target of the action for every kind except CopyEmail,
	// which uses Source/Target instead.
	Role Role

	// InternalID addresses an email within its store. Used by
	// CacheEnvelope and RemoveEmail; CopyEmail leaves it empty.
	InternalID string

	// Envelope carries full metadata for hunks that need it: CopyEmail
	// (source envelope, used for its InternalID and Flags) and SetFlags
	// (the desired flag set to apply).
	Envelope domain.Envelope

	// Source/Target are only set for CopyEmail.
	Source Role
	Target Role

	// FolderName is only set for CreateFolder/DeleteFolder (Folder is
	// left empty for those since they operate on the name itself).
	FolderName string
}

func CacheEnvelope(folder, internalID string, role Role) Hunk {
	return Hunk{Kind: HunkCacheEnvelope, Folder: folder, InternalID: internalID, Role: role}
}

func CopyEmail(folder string, env domain.Envelope, src, dst Role) Hunk {
	return Hunk{Kind: HunkCopyEmail, Folder: folder, Envelope: env, Source: src, Target: dst}
}

func RemoveEmail(folder, internalID string, role Role) Hunk {
	return Hunk{Kind: HunkRemoveEmail, Folder: folder, InternalID: internalID, Role: role}
}

func SetFlags(folder string, env domain.Envelope, role Role) Hunk {
	return Hunk{Kind: HunkSetFlags, Folder: folder, Envelope: env, Role: role}
}

func CreateFolder(name string, role Role) Hunk {
	return Hunk{Kind: HunkCreateFolder, FolderName: name, Role: role}
}

func DeleteFolder(name string, role Role) Hunk {
	return Hunk{Kind: HunkDeleteFolder, FolderName: name, Role: role}
}

// Stage is an unordered set of hunks that may be applied in parallel.
// The one documented exception is the case-0101 tie-break stage, which
// the executor runs as an ordered micro-sequence (see executor.go).
type Stage struct {
	Hunks []Hunk

	// Ordered marks a stage whose hunks must run in slice order on a
	// single worker rather than fanned out — used only for the
	// case-0101 tie-break's three-hunk stage (spec open question 4).
	Ordered bool
}

// Patch is the full ordered sequence of stages for one scope (folders
// or envelopes). Stages are totally ordered; hunks within a
// non-Ordered stage have no relative ordering guarantee.
type Patch struct {
	Stages []Stage
}

// Append adds a new unordered stage made of the given hunks, skipping
// empty stages so callers can build patches without nil-checking.
func (p *Patch) Append(hunks ...Hunk) {
	if len(hunks) == 0 {
		return
	}
	p.Stages = append(p.Stages, Stage{Hunks: hunks})
}

// AppendOrdered adds a new ordered (sequential) stage.
func (p *Patch) AppendOrdered(hunks ...Hunk) {
	if len(hunks) == 0 {
		return
	}
	p.Stages = append(p.Stages, Stage{Hunks: hunks, Ordered: true})
}

// Extend appends another patch's stages in order after this one's.
func (p *Patch) Extend(other Patch) {
	p.Stages = append(p.Stages, other.Stages...)
}

// HunkCount returns the total number of hunks across all stages.
func (p Patch) HunkCount() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s.Hunks)
	}
	return n
}
