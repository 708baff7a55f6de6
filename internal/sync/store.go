// Package sync implements the four-way reconciliation core: fingerprint
// hashing, the folder and envelope reconcilers, the staged patch model
// and its concurrent executor. It consumes stores through the Store
// interface and never speaks a wire protocol itself.
package sync

import (
	"context"

	"github.com/greeddj/msync/internal/domain"
)

// Role identifies one of the four sources the reconciler diffs over.
type Role int

const (
	RoleLocalCache Role = iota
	RoleLocal
	RoleRemoteCache
	RoleRemote
)

// String renders the role the way it is logged (internal/synclog).
func (r Role) String() string {
	switch r {
	case RoleLocalCache:
		return "local-cache"
	case RoleLocal:
		return "local"
	case RoleRemoteCache:
		return "remote-cache"
	case RoleRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// IsCache reports whether the role is one of the two persisted caches.
func (r Role) IsCache() bool {
	return r == RoleLocalCache || r == RoleRemoteCache
}

// RawEmail is the raw message bytes returned by GetEmails.
type RawEmail struct {
	InternalID string
	Raw        []byte
}

// Store is the external-collaborator interface the reconciliation core
// applies hunks against. Local and Remote are backed by concrete
// drivers (internal/store/imap, internal/store/maildir). LocalCache
// and RemoteCache do not implement Store: they are backed by
// internal/cache's AccountSide through the narrower CacheStore
// interface (executor.go).
//
// Remote MAY return ErrNotImplemented for PurgeFolder, CopyEmails and
// MoveEmails — the executor never calls these on the remote path
// during normal sync.
type Store interface {
	Name() string

	ListFolders(ctx context.Context) ([]string, error)
	AddFolder(ctx context.Context, name string) error
	DeleteFolder(ctx context.Context, name string) error
	PurgeFolder(ctx context.Context, name string) error

	// ListEnvelopes returns envelopes in store order. pageSize == 0 means
	// "all"; otherwise page is a zero-based page index of pageSize items.
	ListEnvelopes(ctx context.Context, folder string, pageSize, page int) ([]domain.Envelope, error)
	GetEnvelope(ctx context.Context, folder, internalID string) (domain.Envelope, error)

	AddEmail(ctx context.Context, folder string, raw []byte, flags domain.FlagSet) (internalID string, err error)
	GetEmails(ctx context.Context, folder string, internalIDs []string) ([]RawEmail, error)
	CopyEmails(ctx context.Context, srcFolder, dstFolder string, internalIDs []string) error
	MoveEmails(ctx context.Context, srcFolder, dstFolder string, internalIDs []string) error
	DeleteEmails(ctx context.Context, folder string, internalIDs []string) error

	AddFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error
	SetFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error
	RemoveFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error
}

// Snapshot maps a folder-scoped fingerprint to the envelope observed
// for it in one (source, folder) pair.
type Snapshot map[string]domain.Envelope
