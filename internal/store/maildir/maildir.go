// Package maildir implements internal/sync.Store over a tree of
// per-folder Maildir directories (spec.md §4.F). Each folder maps to
// one maildir.Dir under root; flags map onto the maildir info letters
// R/S/T/D/F (P, "passed", is not mapped) with Recent always absent,
// since maildir has no analogue for IMAP's session-scoped \Recent.
//
// Maildir keys are long, opaque and filesystem-specific
// (time.pid_seq.hostname style), so they are used directly as
// InternalID, but the short, human-typeable Envelope.ID the rest of
// the module surfaces to users is derived through internal/idmap,
// keyed by the envelope's fingerprint rather than by key — a key is
// reassigned whenever a message is re-delivered, but its fingerprint
// is stable across that.
package maildir

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-maildir"
	"github.com/emersion/go-message/mail"

	"github.com/greeddj/msync/internal/domain"
	"github.com/greeddj/msync/internal/idmap"
	syncpkg "github.com/greeddj/msync/internal/sync"
)

// Store is a filesystem-backed sync.Store rooted at one directory,
// with one maildir.Dir subdirectory per synced folder.
type Store struct {
	name string
	root string

	mu     sync.Mutex
	idmaps map[string]*idmap.Map // folder -> id-map, loaded lazily
}

// New opens (without yet creating) a maildir-backed store rooted at
// root. Folder subdirectories are created on demand by AddFolder or
// the first AddEmail into them.
func New(name, root string) *Store {
	return &Store{name: name, root: root, idmaps: make(map[string]*idmap.Map)}
}

func (s *Store) Name() string { return s.name }

func (s *Store) folderPath(folder string) string {
	return filepath.Join(s.root, sanitizeFolder(folder))
}

// sanitizeFolder maps a folder's hierarchical name (slash-separated,
// matching the IMAP side's convention) onto a single filesystem path
// segment, since maildir++ subfolder nesting is not needed here.
func sanitizeFolder(folder string) string {
	return strings.ReplaceAll(folder, "/", ".")
}

func (s *Store) dir(folder string) maildir.Dir {
	return maildir.Dir(s.folderPath(folder))
}

func (s *Store) idmapPath(folder string) string {
	return filepath.Join(s.folderPath(folder), ".msync-idmap")
}

func (s *Store) idmapFor(folder string) (*idmap.Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.idmaps[folder]; ok {
		return m, nil
	}
	m, err := idmap.Load(s.idmapPath(folder))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syncpkg.ErrIDMap, err)
	}
	s.idmaps[folder] = m
	return m, nil
}

func (s *Store) ListFolders(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", syncpkg.ErrStore, s.root, err)
	}

	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folders = append(folders, strings.ReplaceAll(e.Name(), ".", "/"))
	}
	sort.Strings(folders)
	return folders, nil
}

func (s *Store) AddFolder(ctx context.Context, name string) error {
	if err := s.dir(name).Init(); err != nil {
		return fmt.Errorf("%w: init maildir %s: %v", syncpkg.ErrStore, name, err)
	}
	return nil
}

func (s *Store) DeleteFolder(ctx context.Context, name string) error {
	if err := os.RemoveAll(s.folderPath(name)); err != nil {
		return fmt.Errorf("%w: remove %s: %v", syncpkg.ErrStore, name, err)
	}
	s.mu.Lock()
	delete(s.idmaps, name)
	s.mu.Unlock()
	return nil
}

// PurgeFolder is not meaningful for a maildir root: every folder is
// already its own subdirectory with no other state to purge.
func (s *Store) PurgeFolder(ctx context.Context, name string) error {
	return fmt.Errorf("%w: maildir PurgeFolder", syncpkg.ErrNotImplemented)
}

func (s *Store) ListEnvelopes(ctx context.Context, folder string, pageSize, page int) ([]domain.Envelope, error) {
	keys, err := s.dir(folder).Keys()
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", syncpkg.ErrStore, folder, err)
	}
	sort.Strings(keys)

	if pageSize > 0 {
		start := page * pageSize
		if start >= len(keys) {
			return nil, nil
		}
		end := start + pageSize
		if end > len(keys) {
			end = len(keys)
		}
		keys = keys[start:end]
	}

	envs := make([]domain.Envelope, 0, len(keys))
	for _, key := range keys {
		env, err := s.envelopeForKey(folder, key)
		if err != nil {
			continue // message vanished between Keys() and read; skip, not fatal
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func (s *Store) GetEnvelope(ctx context.Context, folder, internalID string) (domain.Envelope, error) {
	return s.envelopeForKey(folder, internalID)
}

func (s *Store) envelopeForKey(folder, key string) (domain.Envelope, error) {
	d := s.dir(folder)

	f, err := d.Open(key)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: open %s/%s: %v", syncpkg.ErrStore, folder, key, err)
	}
	defer func() { _ = f.Close() }()

	env, err := parseHeader(f)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: parse %s/%s: %v", syncpkg.ErrData, folder, key, err)
	}
	env.InternalID = key

	flags, err := d.Flags(key)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: flags %s/%s: %v", syncpkg.ErrStore, folder, key, err)
	}
	env.Flags = fromMaildirFlags(flags)

	m, err := s.idmapFor(folder)
	if err != nil {
		return domain.Envelope{}, err
	}
	fp := syncpkg.Fingerprint(folder, env)
	if err := m.Register(fp, key); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %v", syncpkg.ErrIDMap, err)
	}
	env.ID = m.ShortID(fp)

	return env, nil
}

func parseHeader(r io.Reader) (domain.Envelope, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return domain.Envelope{}, err
	}
	header := mr.Header

	var env domain.Envelope
	if messageID, err := header.MessageID(); err == nil {
		env.MessageID = messageID
	}
	if subject, err := header.Subject(); err == nil {
		env.Subject = subject
	}
	if date, err := header.Date(); err == nil {
		env.Date = date
	}
	if froms, err := header.AddressList("From"); err == nil && len(froms) > 0 {
		env.From = domain.Mailbox{Name: froms[0].Name, Address: froms[0].Address}
	}
	return env, nil
}

func (s *Store) AddEmail(ctx context.Context, folder string, raw []byte, flags domain.FlagSet) (string, error) {
	d := s.dir(folder)
	if err := d.Init(); err != nil {
		return "", fmt.Errorf("%w: init maildir %s: %v", syncpkg.ErrStore, folder, err)
	}

	key, w, err := d.Create(toMaildirFlags(flags))
	if err != nil {
		return "", fmt.Errorf("%w: create in %s: %v", syncpkg.ErrStore, folder, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(raw)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("%w: write %s/%s: %v", syncpkg.ErrStore, folder, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s/%s: %v", syncpkg.ErrStore, folder, key, err)
	}
	return key, nil
}

func (s *Store) GetEmails(ctx context.Context, folder string, internalIDs []string) ([]syncpkg.RawEmail, error) {
	d := s.dir(folder)
	out := make([]syncpkg.RawEmail, 0, len(internalIDs))
	for _, id := range internalIDs {
		f, err := d.Open(id)
		if err != nil {
			continue // idempotent: a vanished message is simply omitted
		}
		raw, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s/%s: %v", syncpkg.ErrStore, folder, id, err)
		}
		out = append(out, syncpkg.RawEmail{InternalID: id, Raw: raw})
	}
	return out, nil
}

// CopyEmails is not used by the executor (it always goes through
// GetEmails+AddEmail so the destination's internal_id can be learned
// and cached), but is provided for completeness against the Store
// interface using a plain read-then-create.
func (s *Store) CopyEmails(ctx context.Context, srcFolder, dstFolder string, internalIDs []string) error {
	raws, err := s.GetEmails(ctx, srcFolder, internalIDs)
	if err != nil {
		return err
	}
	for _, raw := range raws {
		env, err := s.envelopeForKey(srcFolder, raw.InternalID)
		if err != nil {
			continue
		}
		if _, err := s.AddEmail(ctx, dstFolder, raw.Raw, env.Flags); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) MoveEmails(ctx context.Context, srcFolder, dstFolder string, internalIDs []string) error {
	src := s.dir(srcFolder)
	dst := s.dir(dstFolder)
	if err := dst.Init(); err != nil {
		return fmt.Errorf("%w: init maildir %s: %v", syncpkg.ErrStore, dstFolder, err)
	}
	for _, id := range internalIDs {
		if _, err := src.Move(dst, id); err != nil {
			return fmt.Errorf("%w: move %s/%s -> %s: %v", syncpkg.ErrStore, srcFolder, id, dstFolder, err)
		}
	}
	return nil
}

func (s *Store) DeleteEmails(ctx context.Context, folder string, internalIDs []string) error {
	d := s.dir(folder)
	m, err := s.idmapFor(folder)
	if err != nil {
		return err
	}
	for _, id := range internalIDs {
		if err := d.Remove(id); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove %s/%s: %v", syncpkg.ErrStore, folder, id, err)
		}
		if long, ok := m.LongHash(id); ok {
			if err := m.Forget(long); err != nil {
				return fmt.Errorf("%w: forget %s/%s: %v", syncpkg.ErrIDMap, folder, id, err)
			}
		}
	}
	return nil
}

func (s *Store) AddFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error {
	return s.mutateFlags(folder, internalIDs, func(existing domain.FlagSet) domain.FlagSet {
		for _, f := range flags.Slice() {
			existing.Add(f)
		}
		return existing
	})
}

func (s *Store) RemoveFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error {
	return s.mutateFlags(folder, internalIDs, func(existing domain.FlagSet) domain.FlagSet {
		for _, f := range flags.Slice() {
			existing.Remove(f)
		}
		return existing
	})
}

func (s *Store) SetFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error {
	return s.mutateFlags(folder, internalIDs, func(domain.FlagSet) domain.FlagSet {
		return flags
	})
}

func (s *Store) mutateFlags(folder string, internalIDs []string, mutate func(domain.FlagSet) domain.FlagSet) error {
	d := s.dir(folder)
	for _, id := range internalIDs {
		current, err := d.Flags(id)
		if err != nil {
			return fmt.Errorf("%w: flags %s/%s: %v", syncpkg.ErrStore, folder, id, err)
		}
		next := mutate(fromMaildirFlags(current))
		if err := d.SetFlags(id, toMaildirFlags(next)); err != nil {
			return fmt.Errorf("%w: set-flags %s/%s: %v", syncpkg.ErrStore, folder, id, err)
		}
	}
	return nil
}

func fromMaildirFlags(flags []maildir.Flag) domain.FlagSet {
	fs := domain.NewFlagSet()
	for _, f := range flags {
		switch f {
		case maildir.FlagSeen:
			fs.Add(domain.Flag{Kind: domain.FlagSeen})
		case maildir.FlagReplied:
			fs.Add(domain.Flag{Kind: domain.FlagAnswered})
		case maildir.FlagFlagged:
			fs.Add(domain.Flag{Kind: domain.FlagFlagged})
		case maildir.FlagTrashed:
			fs.Add(domain.Flag{Kind: domain.FlagDeleted})
		case maildir.FlagDraft:
			fs.Add(domain.Flag{Kind: domain.FlagDraft})
		}
	}
	return fs
}

func toMaildirFlags(fs domain.FlagSet) []maildir.Flag {
	var out []maildir.Flag
	for _, f := range fs.Slice() {
		switch f.Kind {
		case domain.FlagSeen:
			out = append(out, maildir.FlagSeen)
		case domain.FlagAnswered:
			out = append(out, maildir.FlagReplied)
		case domain.FlagFlagged:
			out = append(out, maildir.FlagFlagged)
		case domain.FlagDeleted:
			out = append(out, maildir.FlagTrashed)
		case domain.FlagDraft:
			out = append(out, maildir.FlagDraft)
		// FlagRecent and custom keywords have no maildir info-letter
		// representation and are silently dropped, matching maildir's
		// closed flag set.
		}
	}
	return out
}
