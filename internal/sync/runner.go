package sync

import (
	"context"
	"fmt"

	"github.com/greeddj/msync/internal/domain"
)

// listPageSize bounds how many envelopes ListEnvelopes returns per
// page while listAll pages through a full folder.
const listPageSize = 500

// Stats summarizes one full run across both the folder and envelope
// reconciliation passes, per folder.
type Stats struct {
	Account string
	Folders []FolderStats
}

// FolderStats is one folder's envelope-reconciliation summary. The
// folder pass itself (creates/deletes) is folded into the run-level
// Summary returned alongside Stats.
type FolderStats struct {
	Folder  string
	Summary Summary
}

// ProgressHook receives lifecycle callbacks as Run works through a
// folder's envelope reconciliation, letting a caller drive a progress
// renderer without Run depending on any particular one.
type ProgressHook interface {
	// FoldersFound is called once with every folder surviving the
	// folder-reconciliation pass, before any of them are processed.
	FoldersFound(folders []string)
	// FolderStarted is called right before a folder's envelopes are
	// listed and reconciled.
	FolderStarted(folder string)
	// FolderDone is called once a folder's patch has been applied.
	FolderDone(folder string, summary Summary)
}

// NopProgress discards every callback; the default when RunOptions
// leaves Progress unset.
type NopProgress struct{}

func (NopProgress) FoldersFound(folders []string)             {}
func (NopProgress) FolderStarted(folder string)               {}
func (NopProgress) FolderDone(folder string, summary Summary) {}

// RunOptions configures one Run call.
type RunOptions struct {
	Account  string
	Stores   Stores
	Exec     Options
	Progress ProgressHook
}

// Run performs one full bidirectional sync for an account: reconcile
// folders, apply that patch, then for every surviving folder reconcile
// envelopes and apply that patch too (spec.md §5). Callers are
// expected to already hold the account's advisory lock
// (internal/synclock) before calling Run.
func Run(ctx context.Context, opts RunOptions) (Stats, error) {
	stats := Stats{Account: opts.Account}
	exec := NewExecutor(opts.Stores, opts.Exec)
	progress := opts.Progress
	if progress == nil {
		progress = NopProgress{}
	}

	lcFolders, err := opts.Stores.LocalCache.ListFolders(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: list local-cache folders: %v", ErrCache, err)
	}
	localFolders, err := opts.Stores.Local.ListFolders(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: list local folders: %v", ErrStore, err)
	}
	rcFolders, err := opts.Stores.RemoteCache.ListFolders(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: list remote-cache folders: %v", ErrCache, err)
	}
	remoteFolders, err := opts.Stores.Remote.ListFolders(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: list remote folders: %v", ErrStore, err)
	}

	folderPatch, survivors := ReconcileFolders(lcFolders, localFolders, rcFolders, remoteFolders)
	if _, err := exec.Apply(ctx, folderPatch); err != nil {
		return stats, err
	}

	progress.FoldersFound(survivors)

	for _, folder := range survivors {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		progress.FolderStarted(folder)

		lc, err := opts.Stores.LocalCache.List(ctx, folder)
		if err != nil {
			return stats, fmt.Errorf("%w: list local-cache envelopes for %s: %v", ErrCache, folder, err)
		}
		l, err := listAll(ctx, opts.Stores.Local, folder)
		if err != nil {
			return stats, fmt.Errorf("%w: list local envelopes for %s: %v", ErrStore, folder, err)
		}
		rc, err := opts.Stores.RemoteCache.List(ctx, folder)
		if err != nil {
			return stats, fmt.Errorf("%w: list remote-cache envelopes for %s: %v", ErrCache, folder, err)
		}
		r, err := listAll(ctx, opts.Stores.Remote, folder)
		if err != nil {
			return stats, fmt.Errorf("%w: list remote envelopes for %s: %v", ErrStore, folder, err)
		}

		patch := ReconcileEnvelopes(folder, Snapshot(lc), BuildSnapshot(folder, l), Snapshot(rc), BuildSnapshot(folder, r))
		summary, err := exec.Apply(ctx, patch)
		if err != nil {
			return stats, err
		}
		stats.Folders = append(stats.Folders, FolderStats{Folder: folder, Summary: summary})
		progress.FolderDone(folder, summary)
	}

	return stats, nil
}

// listAll pages through a live store's full envelope listing.
func listAll(ctx context.Context, store Store, folder string) ([]domain.Envelope, error) {
	var all []domain.Envelope
	for page := 0; ; page++ {
		envs, err := store.ListEnvelopes(ctx, folder, listPageSize, page)
		if err != nil {
			return nil, err
		}
		all = append(all, envs...)
		if len(envs) < listPageSize {
			return all, nil
		}
	}
}
