package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/greeddj/msync/internal/domain"
)

// CacheStore is the narrower interface the executor needs for a
// LocalCache/RemoteCache role — list/insert/delete of envelopes plus
// folder bookkeeping (spec.md §4.B). internal/cache.AccountSide
// implements this directly.
type CacheStore interface {
	ListFolders(ctx context.Context) ([]string, error)
	AddFolder(ctx context.Context, name string) error
	DeleteFolder(ctx context.Context, name string) error
	List(ctx context.Context, folder string) (map[string]domain.Envelope, error)
	Insert(ctx context.Context, folder, hash string, env domain.Envelope) error
	Delete(ctx context.Context, folder, internalID string) error
}

// Stores binds all four roles the executor applies hunks against.
type Stores struct {
	Local       Store
	Remote      Store
	LocalCache  CacheStore
	RemoteCache CacheStore
}

func (s Stores) store(role Role) Store {
	switch role {
	case RoleLocal:
		return s.Local
	case RoleRemote:
		return s.Remote
	default:
		return nil
	}
}

func (s Stores) cache(role Role) CacheStore {
	switch role {
	case RoleLocalCache:
		return s.LocalCache
	case RoleRemoteCache:
		return s.RemoteCache
	default:
		return nil
	}
}

// cacheFor returns the cache paired with a live role (Local ->
// LocalCache, Remote -> RemoteCache), used by CacheEnvelope and by the
// executor's implicit post-copy caching.
func (s Stores) cacheFor(liveRole Role) CacheStore {
	switch liveRole {
	case RoleLocal:
		return s.LocalCache
	case RoleRemote:
		return s.RemoteCache
	default:
		return nil
	}
}

// Outcome is the per-hunk result the executor records.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeSkipped
	OutcomeErrored
)

// HunkResult is one hunk's outcome, handed to the Logger.
type HunkResult struct {
	Hunk    Hunk
	Outcome Outcome
	Err     error
}

// Logger receives one call per hunk result, whether applied, skipped
// or errored. internal/synclog's Run adapts this into structured
// zerolog fields.
type Logger interface {
	LogHunk(HunkResult)
}

// NopLogger discards every result.
type NopLogger struct{}

func (NopLogger) LogHunk(HunkResult) {}

// Summary aggregates a patch's hunk outcomes.
type Summary struct {
	Applied int
	Skipped int
	Errored int
}

// HasErrors reports whether the run should be reported as "completed
// with errors" per spec.md §4.E/§7.
func (s Summary) HasErrors() bool {
	return s.Errored > 0
}

// Options configures one Apply call.
type Options struct {
	// Workers bounds parallelism within a stage. Defaults to 4 if <= 0.
	Workers int
	// DryRun makes Apply a no-op: the patch is not executed, only
	// counted as if every hunk were skipped. Mandatory per spec.md §5.
	DryRun bool
	Logger Logger
}

// Executor applies patches against a set of stores, per spec.md §4.E.
type Executor struct {
	stores Stores
	opts   Options

	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

func NewExecutor(stores Stores, opts Options) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger{}
	}
	return &Executor{stores: stores, opts: opts, keys: make(map[string]*sync.Mutex)}
}

// Apply runs every stage of patch in order, stopping before the next
// stage if ctx is cancelled (cooperative cancellation at stage
// boundaries per spec.md §5). A stage with failed hunks does not abort
// the patch — subsequent stages proceed, since hunks within a stage
// and across stages are commutative with respect to the (role,
// folder, internal_id) keys they touch.
func (e *Executor) Apply(ctx context.Context, patch Patch) (Summary, error) {
	var summary Summary

	for _, stage := range patch.Stages {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		results := e.applyStage(ctx, stage)
		for _, r := range results {
			e.opts.Logger.LogHunk(r)
			switch r.Outcome {
			case OutcomeApplied:
				summary.Applied++
			case OutcomeSkipped:
				summary.Skipped++
			case OutcomeErrored:
				summary.Errored++
			}
		}
	}

	return summary, nil
}

func (e *Executor) applyStage(ctx context.Context, stage Stage) []HunkResult {
	if e.opts.DryRun {
		results := make([]HunkResult, len(stage.Hunks))
		for i, h := range stage.Hunks {
			results[i] = HunkResult{Hunk: h, Outcome: OutcomeSkipped}
		}
		return results
	}

	if stage.Ordered {
		results := make([]HunkResult, len(stage.Hunks))
		for i, h := range stage.Hunks {
			results[i] = e.applyHunk(ctx, h)
		}
		return results
	}

	// A plain (non-WithContext) errgroup.Group: SetLimit bounds
	// concurrency exactly like the teacher's buffered-channel worker
	// pools elsewhere, but none of these goroutines ever return a
	// non-nil error, so Wait never cancels a sibling mid-stage — every
	// hunk in the stage runs to completion and is recorded in results
	// regardless of its neighbors' outcomes (spec.md §4.E: hunks are
	// commutative and independently logged, win or lose).
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	results := make([]HunkResult, len(stage.Hunks))
	for i, h := range stage.Hunks {
		i, h := i, h
		g.Go(func() error {
			results[i] = e.applyHunk(ctx, h)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// keyLock returns a mutex for one (role, folder, id) key so that no
// two concurrent hunks act on overlapping state (spec.md §5). The
// reconciler already guarantees commutativity within a stage; this is
// a correctness belt, not the scheduling mechanism.
func (e *Executor) keyLock(key string) *sync.Mutex {
	e.keysMu.Lock()
	defer e.keysMu.Unlock()
	if m, ok := e.keys[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	e.keys[key] = m
	return m
}

func hunkKey(h Hunk) string {
	switch h.Kind {
	case HunkCreateFolder, HunkDeleteFolder:
		return fmt.Sprintf("%s|%s", h.Role, h.FolderName)
	case HunkCopyEmail:
		return fmt.Sprintf("%s|%s|%s", h.Target, h.Folder, h.Envelope.InternalID)
	default:
		return fmt.Sprintf("%s|%s|%s", h.Role, h.Folder, h.InternalID)
	}
}

func (e *Executor) applyHunk(ctx context.Context, h Hunk) HunkResult {
	lock := e.keyLock(hunkKey(h))
	lock.Lock()
	defer lock.Unlock()

	var err error
	switch h.Kind {
	case HunkCacheEnvelope:
		err = e.applyCacheEnvelope(ctx, h)
	case HunkCopyEmail:
		err = e.applyCopyEmail(ctx, h)
	case HunkRemoveEmail:
		err = e.applyRemoveEmail(ctx, h)
	case HunkSetFlags:
		err = e.applySetFlags(ctx, h)
	case HunkCreateFolder:
		err = e.applyCreateFolder(ctx, h)
	case HunkDeleteFolder:
		err = e.applyDeleteFolder(ctx, h)
	default:
		err = fmt.Errorf("unknown hunk kind %v", h.Kind)
	}

	if err == nil {
		return HunkResult{Hunk: h, Outcome: OutcomeApplied}
	}
	if errors.Is(err, ErrData) {
		return HunkResult{Hunk: h, Outcome: OutcomeSkipped, Err: err}
	}
	return HunkResult{Hunk: h, Outcome: OutcomeErrored, Err: err}
}

// applyCacheEnvelope fetches the envelope from the live store of
// h.Role (Local or Remote) and inserts it into that role's cache.
func (e *Executor) applyCacheEnvelope(ctx context.Context, h Hunk) error {
	store := e.stores.store(h.Role)
	if store == nil {
		return fmt.Errorf("%w: cache-envelope targets non-live role %s", ErrStore, h.Role)
	}
	env, err := store.GetEnvelope(ctx, h.Folder, h.InternalID)
	if err != nil {
		return fmt.Errorf("%w: fetch %s/%s from %s: %v", ErrData, h.Folder, h.InternalID, h.Role, err)
	}
	return e.cacheInsert(ctx, h.Role, h.Folder, env)
}

func (e *Executor) cacheInsert(ctx context.Context, liveRole Role, folder string, env domain.Envelope) error {
	c := e.stores.cacheFor(liveRole)
	if c == nil {
		return fmt.Errorf("%w: no cache bound for role %s", ErrCache, liveRole)
	}
	hash := Fingerprint(folder, env)
	if err := c.Insert(ctx, folder, hash, env); err != nil {
		return fmt.Errorf("%w: insert %s/%s: %v", ErrCache, folder, hash, err)
	}
	return nil
}

// applyCopyEmail reads raw bytes from the source store and writes them
// to the destination in the same folder with the source envelope's
// flags, then implicitly caches the newly assigned destination
// internal_id — the chained CacheEnvelope spec.md §4.E describes so
// callers never need a second stage for it.
func (e *Executor) applyCopyEmail(ctx context.Context, h Hunk) error {
	src := e.stores.store(h.Source)
	dst := e.stores.store(h.Target)
	if src == nil || dst == nil {
		return fmt.Errorf("%w: copy-email needs two live roles, got %s->%s", ErrStore, h.Source, h.Target)
	}

	raws, err := src.GetEmails(ctx, h.Folder, []string{h.Envelope.InternalID})
	if err != nil {
		return fmt.Errorf("%w: read %s/%s from %s: %v", ErrStore, h.Folder, h.Envelope.InternalID, h.Source, err)
	}
	if len(raws) == 0 {
		return fmt.Errorf("%w: %s/%s vanished from %s before copy", ErrData, h.Folder, h.Envelope.InternalID, h.Source)
	}

	newID, err := dst.AddEmail(ctx, h.Folder, raws[0].Raw, h.Envelope.Flags)
	if err != nil {
		return fmt.Errorf("%w: write %s/%s to %s: %v", ErrStore, h.Folder, h.Envelope.InternalID, h.Target, err)
	}

	newEnv, err := dst.GetEnvelope(ctx, h.Folder, newID)
	if err != nil {
		return fmt.Errorf("%w: re-read copied %s/%s from %s: %v", ErrData, h.Folder, newID, h.Target, err)
	}
	return e.cacheInsert(ctx, h.Target, h.Folder, newEnv)
}

// applyRemoveEmail deletes one email's state for one role. Idempotent:
// removing an already-absent internal_id is not an error.
func (e *Executor) applyRemoveEmail(ctx context.Context, h Hunk) error {
	if h.Role.IsCache() {
		c := e.stores.cache(h.Role)
		if err := c.Delete(ctx, h.Folder, h.InternalID); err != nil {
			return fmt.Errorf("%w: cache-delete %s/%s: %v", ErrCache, h.Folder, h.InternalID, err)
		}
		return nil
	}

	store := e.stores.store(h.Role)
	if err := store.DeleteEmails(ctx, h.Folder, []string{h.InternalID}); err != nil {
		return fmt.Errorf("%w: delete %s/%s on %s: %v", ErrStore, h.Folder, h.InternalID, h.Role, err)
	}
	return nil
}

// applySetFlags replaces an email's flag set for one role. Cache roles
// are replaced by delete-then-reinsert; live roles get a direct SET
// when the store supports it, falling back to a computed
// add/remove difference against a fresh read when it doesn't.
func (e *Executor) applySetFlags(ctx context.Context, h Hunk) error {
	if h.Role.IsCache() {
		c := e.stores.cache(h.Role)
		if err := c.Delete(ctx, h.Folder, h.Envelope.InternalID); err != nil {
			return fmt.Errorf("%w: replace-delete %s/%s: %v", ErrCache, h.Folder, h.Envelope.InternalID, err)
		}
		hash := Fingerprint(h.Folder, h.Envelope)
		if err := c.Insert(ctx, h.Folder, hash, h.Envelope); err != nil {
			return fmt.Errorf("%w: replace-insert %s/%s: %v", ErrCache, h.Folder, hash, err)
		}
		return nil
	}

	store := e.stores.store(h.Role)
	err := store.SetFlags(ctx, h.Folder, []string{h.Envelope.InternalID}, h.Envelope.Flags)
	if errors.Is(err, ErrNotImplemented) {
		return e.setFlagsByDiff(ctx, store, h.Folder, h.Envelope)
	}
	if err != nil {
		return fmt.Errorf("%w: set-flags %s/%s on %s: %v", ErrStore, h.Folder, h.Envelope.InternalID, h.Role, err)
	}
	return nil
}

// setFlagsByDiff computes the symmetric difference between the
// desired flag set and a fresh read, then issues AddFlags/RemoveFlags
// for the two halves — the fallback spec.md §4.E requires when a
// store only offers ADD/REMOVE, not SET.
func (e *Executor) setFlagsByDiff(ctx context.Context, store Store, folder string, env domain.Envelope) error {
	current, err := store.GetEnvelope(ctx, folder, env.InternalID)
	if err != nil {
		return fmt.Errorf("%w: re-read %s/%s for flag diff: %v", ErrData, folder, env.InternalID, err)
	}

	toAdd := domain.NewFlagSet()
	for _, f := range env.Flags.Slice() {
		if !current.Flags.Has(f) {
			toAdd.Add(f)
		}
	}
	toRemove := domain.NewFlagSet()
	for _, f := range current.Flags.Slice() {
		if !env.Flags.Has(f) {
			toRemove.Add(f)
		}
	}

	if toAdd.Len() > 0 {
		if err := store.AddFlags(ctx, folder, []string{env.InternalID}, toAdd); err != nil {
			return fmt.Errorf("%w: add-flags %s/%s: %v", ErrStore, folder, env.InternalID, err)
		}
	}
	if toRemove.Len() > 0 {
		if err := store.RemoveFlags(ctx, folder, []string{env.InternalID}, toRemove); err != nil {
			return fmt.Errorf("%w: remove-flags %s/%s: %v", ErrStore, folder, env.InternalID, err)
		}
	}
	return nil
}

func (e *Executor) applyCreateFolder(ctx context.Context, h Hunk) error {
	if h.Role.IsCache() {
		c := e.stores.cache(h.Role)
		if err := c.AddFolder(ctx, h.FolderName); err != nil {
			return fmt.Errorf("%w: cache-create-folder %s: %v", ErrCache, h.FolderName, err)
		}
		return nil
	}
	store := e.stores.store(h.Role)
	if err := store.AddFolder(ctx, h.FolderName); err != nil {
		return fmt.Errorf("%w: create-folder %s on %s: %v", ErrStore, h.FolderName, h.Role, err)
	}
	return nil
}

// applyDeleteFolder removes a folder for one role. Cache roles cascade
// to their cached envelope rows automatically (internal/cache.DeleteFolder).
func (e *Executor) applyDeleteFolder(ctx context.Context, h Hunk) error {
	if h.Role.IsCache() {
		c := e.stores.cache(h.Role)
		if err := c.DeleteFolder(ctx, h.FolderName); err != nil {
			return fmt.Errorf("%w: cache-delete-folder %s: %v", ErrCache, h.FolderName, err)
		}
		return nil
	}
	store := e.stores.store(h.Role)
	if err := store.DeleteFolder(ctx, h.FolderName); err != nil {
		return fmt.Errorf("%w: delete-folder %s on %s: %v", ErrStore, h.FolderName, h.Role, err)
	}
	return nil
}
