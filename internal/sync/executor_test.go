package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/greeddj/msync/internal/domain"
)

// fakeStore is an in-memory Store keyed by (folder, internalID).
type fakeStore struct {
	mu      sync.Mutex
	name    string
	nextID  int
	emails  map[string]map[string][]byte
	envs    map[string]map[string]domain.Envelope
	folders map[string]bool
	noSet   bool // SetFlags returns ErrNotImplemented
}

func newFakeStore(name string) *fakeStore {
	return &fakeStore{
		name:    name,
		emails:  make(map[string]map[string][]byte),
		envs:    make(map[string]map[string]domain.Envelope),
		folders: make(map[string]bool),
	}
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) ListFolders(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.folders {
		out = append(out, name)
	}
	return out, nil
}

func (f *fakeStore) AddFolder(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[name] = true
	return nil
}

func (f *fakeStore) DeleteFolder(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.folders, name)
	delete(f.emails, name)
	delete(f.envs, name)
	return nil
}

func (f *fakeStore) PurgeFolder(ctx context.Context, name string) error {
	return ErrNotImplemented
}

func (f *fakeStore) ListEnvelopes(ctx context.Context, folder string, pageSize, page int) ([]domain.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Envelope
	for _, e := range f.envs[folder] {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) GetEnvelope(ctx context.Context, folder, internalID string) (domain.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.envs[folder][internalID]
	if !ok {
		return domain.Envelope{}, fmt.Errorf("%w: no such envelope", ErrData)
	}
	return e, nil
}

func (f *fakeStore) AddEmail(ctx context.Context, folder string, raw []byte, flags domain.FlagSet) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("%s-%d", f.name, f.nextID)
	if f.emails[folder] == nil {
		f.emails[folder] = make(map[string][]byte)
		f.envs[folder] = make(map[string]domain.Envelope)
	}
	f.emails[folder][id] = raw
	f.envs[folder][id] = domain.Envelope{InternalID: id, ID: id, Flags: flags.Clone()}
	return id, nil
}

func (f *fakeStore) GetEmails(ctx context.Context, folder string, ids []string) ([]RawEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RawEmail
	for _, id := range ids {
		raw, ok := f.emails[folder][id]
		if !ok {
			continue
		}
		out = append(out, RawEmail{InternalID: id, Raw: raw})
	}
	return out, nil
}

func (f *fakeStore) CopyEmails(ctx context.Context, src, dst string, ids []string) error {
	return ErrNotImplemented
}

func (f *fakeStore) MoveEmails(ctx context.Context, src, dst string, ids []string) error {
	return ErrNotImplemented
}

func (f *fakeStore) DeleteEmails(ctx context.Context, folder string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.emails[folder], id)
		delete(f.envs[folder], id)
	}
	return nil
}

func (f *fakeStore) AddFlags(ctx context.Context, folder string, ids []string, flags domain.FlagSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		e := f.envs[folder][id]
		for _, fl := range flags.Slice() {
			e.Flags.Add(fl)
		}
		f.envs[folder][id] = e
	}
	return nil
}

func (f *fakeStore) SetFlags(ctx context.Context, folder string, ids []string, flags domain.FlagSet) error {
	if f.noSet {
		return ErrNotImplemented
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		e := f.envs[folder][id]
		e.Flags = flags.Clone()
		f.envs[folder][id] = e
	}
	return nil
}

func (f *fakeStore) RemoveFlags(ctx context.Context, folder string, ids []string, flags domain.FlagSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		e := f.envs[folder][id]
		for _, fl := range flags.Slice() {
			e.Flags.Remove(fl)
		}
		f.envs[folder][id] = e
	}
	return nil
}

// fakeCache is an in-memory CacheStore.
type fakeCache struct {
	mu      sync.Mutex
	folders map[string]bool
	byHash  map[string]map[string]domain.Envelope // folder -> hash -> envelope
}

func newFakeCache() *fakeCache {
	return &fakeCache{folders: make(map[string]bool), byHash: make(map[string]map[string]domain.Envelope)}
}

func (c *fakeCache) ListFolders(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for name := range c.folders {
		out = append(out, name)
	}
	return out, nil
}

func (c *fakeCache) AddFolder(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders[name] = true
	return nil
}

func (c *fakeCache) DeleteFolder(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.folders, name)
	delete(c.byHash, name)
	return nil
}

func (c *fakeCache) List(ctx context.Context, folder string) (map[string]domain.Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.Envelope, len(c.byHash[folder]))
	for h, e := range c.byHash[folder] {
		out[h] = e
	}
	return out, nil
}

func (c *fakeCache) Insert(ctx context.Context, folder, hash string, env domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byHash[folder] == nil {
		c.byHash[folder] = make(map[string]domain.Envelope)
	}
	c.byHash[folder][hash] = env
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, folder, internalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, e := range c.byHash[folder] {
		if e.InternalID == internalID {
			delete(c.byHash[folder], h)
		}
	}
	return nil
}

func newTestStores() (Stores, *fakeStore, *fakeStore, *fakeCache, *fakeCache) {
	local := newFakeStore("local")
	remote := newFakeStore("remote")
	lc := newFakeCache()
	rc := newFakeCache()
	return Stores{Local: local, Remote: remote, LocalCache: lc, RemoteCache: rc}, local, remote, lc, rc
}

func TestExecutorCopyEmailCachesDestinationImplicitly(t *testing.T) {
	ctx := context.Background()
	stores, local, remote, lc, rc := newTestStores()
	_ = local

	id, err := remote.AddEmail(ctx, "INBOX", []byte("hello"), domain.NewFlagSet(seen))
	if err != nil {
		t.Fatalf("seed AddEmail: %v", err)
	}
	env, _ := remote.GetEnvelope(ctx, "INBOX", id)
	env.MessageID = "<m@x>"
	env.Subject = "hi"

	exec := NewExecutor(stores, Options{})
	var patch Patch
	patch.Append(CopyEmail("INBOX", env, RoleRemote, RoleLocal))

	summary, err := exec.Apply(ctx, patch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if summary.Applied != 1 || summary.HasErrors() {
		t.Fatalf("expected 1 applied hunk with no errors, got %+v", summary)
	}

	localEnvs, _ := stores.Local.ListEnvelopes(ctx, "INBOX", 0, 0)
	if len(localEnvs) != 1 {
		t.Fatalf("expected email copied into local, got %d entries", len(localEnvs))
	}

	cached, _ := rc.List(ctx, "INBOX")
	if len(cached) != 0 {
		t.Fatalf("copy remote->local should cache on the destination's paired cache (local-cache), not remote-cache")
	}
	localCached, _ := lc.List(ctx, "INBOX")
	if len(localCached) != 1 {
		t.Fatalf("expected the copied envelope cached under local-cache, got %d entries", len(localCached))
	}
}

func TestExecutorSetFlagsFallsBackToDiffWhenStoreLacksSet(t *testing.T) {
	ctx := context.Background()
	stores, local, _, _, _ := newTestStores()
	local.noSet = true

	id, err := local.AddEmail(ctx, "INBOX", []byte("x"), domain.NewFlagSet(seen))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	desired := domain.Envelope{InternalID: id, Flags: domain.NewFlagSet(domain.Flag{Kind: domain.FlagFlagged})}

	exec := NewExecutor(stores, Options{})
	var patch Patch
	patch.Append(SetFlags("INBOX", desired, RoleLocal))

	summary, err := exec.Apply(ctx, patch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if summary.Errored != 0 {
		t.Fatalf("expected the diff fallback to succeed, got %+v", summary)
	}

	got, _ := local.GetEnvelope(ctx, "INBOX", id)
	if got.Flags.Has(seen) {
		t.Fatalf("Seen should have been removed by the diff fallback")
	}
	if !got.Flags.Has(domain.Flag{Kind: domain.FlagFlagged}) {
		t.Fatalf("Flagged should have been added by the diff fallback")
	}
}

func TestExecutorCreateAndDeleteFolder(t *testing.T) {
	ctx := context.Background()
	stores, local, _, lc, _ := newTestStores()

	exec := NewExecutor(stores, Options{})
	var create Patch
	create.Append(CreateFolder("Archive", RoleLocal), CreateFolder("Archive", RoleLocalCache))
	if _, err := exec.Apply(ctx, create); err != nil {
		t.Fatalf("Apply create: %v", err)
	}

	folders, _ := local.ListFolders(ctx)
	if len(folders) != 1 || folders[0] != "Archive" {
		t.Fatalf("expected Archive on local, got %v", folders)
	}
	cfolders, _ := lc.ListFolders(ctx)
	if len(cfolders) != 1 {
		t.Fatalf("expected Archive on local-cache, got %v", cfolders)
	}

	var del Patch
	del.Append(DeleteFolder("Archive", RoleLocal), DeleteFolder("Archive", RoleLocalCache))
	if _, err := exec.Apply(ctx, del); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}

	folders, _ = local.ListFolders(ctx)
	if len(folders) != 0 {
		t.Fatalf("expected Archive gone from local, got %v", folders)
	}
}

func TestExecutorDryRunSkipsEveryHunk(t *testing.T) {
	ctx := context.Background()
	stores, local, _, _, _ := newTestStores()

	exec := NewExecutor(stores, Options{DryRun: true})
	var patch Patch
	patch.Append(CreateFolder("Archive", RoleLocal))

	summary, err := exec.Apply(ctx, patch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if summary.Skipped != 1 || summary.Applied != 0 {
		t.Fatalf("expected the hunk counted as skipped, got %+v", summary)
	}
	folders, _ := local.ListFolders(ctx)
	if len(folders) != 0 {
		t.Fatalf("dry run must not touch the store, got folders %v", folders)
	}
}

func TestExecutorCancelledContextStopsBeforeNextStage(t *testing.T) {
	stores, _, _, _, _ := newTestStores()
	exec := NewExecutor(stores, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var patch Patch
	patch.Append(CreateFolder("Archive", RoleLocal))

	_, err := exec.Apply(ctx, patch)
	if err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestExecutorMissingEnvelopeIsSkippedNotErrored(t *testing.T) {
	ctx := context.Background()
	stores, _, _, _, _ := newTestStores()
	exec := NewExecutor(stores, Options{})

	var patch Patch
	patch.Append(CacheEnvelope("INBOX", "ghost", RoleLocal))

	summary, err := exec.Apply(ctx, patch)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if summary.Skipped != 1 || summary.Errored != 0 {
		t.Fatalf("expected a skip (ErrData), got %+v", summary)
	}
}
