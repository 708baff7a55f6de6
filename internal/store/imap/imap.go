// Package imap implements internal/sync.Store over a single IMAP
// account, wrapping github.com/emersion/go-imap/client the way
// internal/client did in the teacher repo: a persistent connection
// with reconnect/backoff on transient network errors, a per-path lock
// around mailbox creation, and hierarchy-aware parent folder creation.
// UIDs are used directly as InternalID and as Envelope.ID — IMAP UIDs
// are already short and stable within one UIDVALIDITY epoch, so unlike
// internal/store/maildir no id-map is needed here (spec.md §4.G).
package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/greeddj/msync/internal/domain"
	syncpkg "github.com/greeddj/msync/internal/sync"
)

const (
	mailboxChanBuffer   = 10
	messageChanBuffer   = 20
	initialBackoff      = 2 * time.Second
	reconnectInterval   = 10 * time.Second
	maxReconnectAttempt = 5
)

// Store is an IMAP-backed sync.Store for one account.
type Store struct {
	name string

	addr     string
	useTLS   bool
	tlsConf  *tls.Config
	username string
	password string

	mu            sync.Mutex
	conn          *client.Client
	backoff       time.Duration
	lastReconnect time.Time
	delimiter     string

	foldersMu sync.Mutex
	folderMu  map[string]*sync.Mutex
}

// Config is the connection info one account's IMAP side needs.
type Config struct {
	Addr     string
	UseTLS   bool
	TLSConf  *tls.Config
	Username string
	Password string
}

// New dials and authenticates against an IMAP server.
func New(name string, cfg Config) (*Store, error) {
	s := &Store{
		name:     name,
		addr:     cfg.Addr,
		useTLS:   cfg.UseTLS,
		tlsConf:  cfg.TLSConf,
		username: cfg.Username,
		password: cfg.Password,
		backoff:  initialBackoff,
		folderMu: make(map[string]*sync.Mutex),
	}
	if err := s.connectAndLogin(); err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", syncpkg.ErrStore, name, err)
	}
	if _, err := s.getDelimiter(); err != nil {
		_ = s.conn.Logout()
		return nil, fmt.Errorf("%w: delimiter: %v", syncpkg.ErrStore, err)
	}
	return s, nil
}

func (s *Store) Name() string { return s.name }

func (s *Store) dial() (net.Conn, error) {
	if s.useTLS {
		return tls.Dial("tcp", s.addr, s.tlsConf)
	}
	return net.Dial("tcp", s.addr)
}

func (s *Store) connectAndLogin() error {
	conn, err := s.dial()
	if err != nil {
		return err
	}
	c, err := client.New(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := c.Login(s.username, s.password); err != nil {
		_ = c.Logout()
		return err
	}
	s.conn = c
	return nil
}

func (s *Store) reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	since := time.Since(s.lastReconnect)
	if since < reconnectInterval {
		time.Sleep(reconnectInterval - since)
	}
	if s.conn != nil {
		_ = s.conn.Logout()
	}

	delay := s.backoff
	var err error
	for i := 0; i < maxReconnectAttempt; i++ {
		if err = s.connectAndLogin(); err == nil {
			s.lastReconnect = time.Now()
			s.backoff = initialBackoff
			return nil
		}
		time.Sleep(delay)
		delay *= 2
	}
	s.lastReconnect = time.Now()
	return fmt.Errorf("reconnect to %s failed after retries: %w", s.name, err)
}

func isConnError(err error) bool {
	var netErr net.Error
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.As(err, &netErr)
}

func (s *Store) safeCall(fn func() error) error {
	if err := fn(); err != nil {
		if isConnError(err) {
			if rerr := s.reconnect(); rerr != nil {
				return rerr
			}
			return fn()
		}
		return err
	}
	return nil
}

func (s *Store) folderLock(name string) *sync.Mutex {
	s.foldersMu.Lock()
	defer s.foldersMu.Unlock()
	if l, ok := s.folderMu[name]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.folderMu[name] = l
	return l
}

func (s *Store) getDelimiter() (string, error) {
	if s.delimiter != "" {
		return s.delimiter, nil
	}
	mailboxes := make(chan *goimap.MailboxInfo, 1)
	done := make(chan error, 1)
	go func() { done <- s.conn.List("", "", mailboxes) }()
	delim := "/"
	for mbox := range mailboxes {
		if mbox.Delimiter != "" {
			delim = mbox.Delimiter
		}
	}
	if err := <-done; err != nil {
		return "", err
	}
	s.delimiter = delim
	return delim, nil
}

func (s *Store) mailboxExists(name string) (bool, error) {
	mailboxes := make(chan *goimap.MailboxInfo, mailboxChanBuffer)
	done := make(chan error, 1)
	go func() { done <- s.conn.List("", name, mailboxes) }()
	exists := false
	for range mailboxes {
		exists = true
	}
	if err := <-done; err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListFolders(ctx context.Context) ([]string, error) {
	mailboxes := make(chan *goimap.MailboxInfo, mailboxChanBuffer)
	done := make(chan error, 1)
	err := s.safeCall(func() error {
		go func() { done <- s.conn.List("", "*", mailboxes) }()
		return <-done
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list folders on %s: %v", syncpkg.ErrStore, s.name, err)
	}

	var names []string
	for m := range mailboxes {
		skip := false
		for _, attr := range m.Attributes {
			if attr == goimap.NoSelectAttr {
				skip = true
			}
		}
		if !skip {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) AddFolder(ctx context.Context, name string) error {
	lock := s.folderLock(name)
	lock.Lock()
	defer lock.Unlock()

	exists, err := s.mailboxExists(name)
	if err != nil {
		return fmt.Errorf("%w: check %s: %v", syncpkg.ErrStore, name, err)
	}
	if exists {
		return nil
	}

	delim, err := s.getDelimiter()
	if err != nil {
		return fmt.Errorf("%w: delimiter: %v", syncpkg.ErrStore, err)
	}
	if delim != "" && strings.Contains(name, delim) {
		if err := s.createParents(name, delim); err != nil {
			return err
		}
	}

	err = s.safeCall(func() error { return s.conn.Create(name) })
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", syncpkg.ErrStore, name, err)
	}
	return nil
}

func (s *Store) createParents(name, delim string) error {
	parts := strings.Split(name, delim)
	for i := 1; i < len(parts); i++ {
		parent := strings.Join(parts[:i], delim)
		lock := s.folderLock(parent)
		lock.Lock()
		exists, err := s.mailboxExists(parent)
		if err != nil {
			lock.Unlock()
			return fmt.Errorf("%w: check parent %s: %v", syncpkg.ErrStore, parent, err)
		}
		if !exists {
			err = s.safeCall(func() error { return s.conn.Create(parent) })
			if err != nil {
				lock.Unlock()
				return fmt.Errorf("%w: create parent %s: %v", syncpkg.ErrStore, parent, err)
			}
		}
		lock.Unlock()
	}
	return nil
}

func (s *Store) DeleteFolder(ctx context.Context, name string) error {
	err := s.safeCall(func() error { return s.conn.Delete(name) })
	if err != nil {
		return fmt.Errorf("%w: delete folder %s: %v", syncpkg.ErrStore, name, err)
	}
	return nil
}

// PurgeFolder expunges every message marked \Deleted in the folder —
// the one IMAP-specific maintenance operation the reconciler itself
// never calls, offered for operators running a periodic mailbox GC.
func (s *Store) PurgeFolder(ctx context.Context, name string) error {
	err := s.safeCall(func() error {
		if _, err := s.conn.Select(name, false); err != nil {
			return err
		}
		return s.conn.Expunge(nil)
	})
	if err != nil {
		return fmt.Errorf("%w: purge %s: %v", syncpkg.ErrStore, name, err)
	}
	return nil
}

func (s *Store) ListEnvelopes(ctx context.Context, folder string, pageSize, page int) ([]domain.Envelope, error) {
	var mbox *goimap.MailboxStatus
	err := s.safeCall(func() error {
		var e error
		mbox, e = s.conn.Select(folder, true)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", syncpkg.ErrStore, folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqset := new(goimap.SeqSet)
	if pageSize <= 0 {
		seqset.AddRange(1, mbox.Messages)
	} else {
		start := uint32(page*pageSize) + 1
		if start > mbox.Messages {
			return nil, nil
		}
		end := start + uint32(pageSize) - 1
		if end > mbox.Messages {
			end = mbox.Messages
		}
		seqset.AddRange(start, end)
	}

	items := []goimap.FetchItem{goimap.FetchEnvelope, goimap.FetchUid, goimap.FetchFlags}
	return s.fetchEnvelopes(folder, seqset, items)
}

// fetchEnvelopes performs the actual FETCH and collects results; split
// out from ListEnvelopes so a reconnect-triggered retry re-issues the
// whole fetch cleanly rather than reusing a half-drained channel.
func (s *Store) fetchEnvelopes(folder string, seqset *goimap.SeqSet, items []goimap.FetchItem) ([]domain.Envelope, error) {
	var envs []domain.Envelope
	err := s.safeCall(func() error {
		envs = envs[:0]
		messages := make(chan *goimap.Message, messageChanBuffer)
		done := make(chan error, 1)
		go func() { done <- s.conn.Fetch(seqset, items, messages) }()
		for msg := range messages {
			envs = append(envs, toEnvelope(msg))
		}
		return <-done
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", syncpkg.ErrStore, folder, err)
	}
	return envs, nil
}

func (s *Store) GetEnvelope(ctx context.Context, folder, internalID string) (domain.Envelope, error) {
	uid, err := parseUID(internalID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %v", syncpkg.ErrData, err)
	}

	err = s.safeCall(func() error {
		_, e := s.conn.Select(folder, true)
		return e
	})
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: select %s: %v", syncpkg.ErrStore, folder, err)
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uid)
	items := []goimap.FetchItem{goimap.FetchEnvelope, goimap.FetchUid, goimap.FetchFlags}

	var env domain.Envelope
	found := false
	err = s.safeCall(func() error {
		messages := make(chan *goimap.Message, 1)
		done := make(chan error, 1)
		go func() { done <- s.conn.UidFetch(seqset, items, messages) }()
		for msg := range messages {
			env = toEnvelope(msg)
			found = true
		}
		return <-done
	})
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: uid-fetch %s/%d: %v", syncpkg.ErrStore, folder, uid, err)
	}
	if !found {
		return domain.Envelope{}, fmt.Errorf("%w: %s/%d not found", syncpkg.ErrData, folder, uid)
	}
	return env, nil
}

func toEnvelope(msg *goimap.Message) domain.Envelope {
	env := domain.Envelope{
		InternalID: formatUID(msg.Uid),
		ID:         formatUID(msg.Uid),
		Flags:      fromIMAPFlags(msg.Flags),
	}
	if msg.Envelope != nil {
		env.MessageID = strings.Trim(msg.Envelope.MessageId, "<>")
		env.Subject = msg.Envelope.Subject
		env.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			env.From = domain.Mailbox{
				Name:    from.PersonalName,
				Address: from.MailboxName + "@" + from.HostName,
			}
		}
	}
	return env
}

func (s *Store) AddEmail(ctx context.Context, folder string, raw []byte, flags domain.FlagSet) (string, error) {
	// go-imap's Append does not return the assigned UID; it is read back
	// as the mailbox's UIDNEXT - 1. The per-folder lock that also covers
	// folder creation is held across both the append and that read, so
	// two AddEmail calls into the same folder cannot interleave between
	// them.
	lock := s.folderLock(folder)
	lock.Lock()
	defer lock.Unlock()

	imapFlags := toIMAPFlags(flags)
	err := s.safeCall(func() error {
		return s.conn.Append(folder, imapFlags, time.Now(), bytes.NewReader(raw))
	})
	if err != nil {
		return "", fmt.Errorf("%w: append to %s: %v", syncpkg.ErrStore, folder, err)
	}

	var mbox *goimap.MailboxStatus
	err = s.safeCall(func() error {
		var e error
		mbox, e = s.conn.Select(folder, false)
		return e
	})
	if err != nil {
		return "", fmt.Errorf("%w: select %s after append: %v", syncpkg.ErrStore, folder, err)
	}
	if mbox.UidNext == 0 {
		return "", fmt.Errorf("%w: %s reports no UIDNEXT after append", syncpkg.ErrStore, folder)
	}
	return formatUID(mbox.UidNext - 1), nil
}

func (s *Store) GetEmails(ctx context.Context, folder string, internalIDs []string) ([]syncpkg.RawEmail, error) {
	if len(internalIDs) == 0 {
		return nil, nil
	}

	err := s.safeCall(func() error {
		_, e := s.conn.Select(folder, true)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", syncpkg.ErrStore, folder, err)
	}

	seqset := new(goimap.SeqSet)
	idByUID := make(map[uint32]string, len(internalIDs))
	for _, id := range internalIDs {
		uid, err := parseUID(id)
		if err != nil {
			continue
		}
		seqset.AddNum(uid)
		idByUID[uid] = id
	}

	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{section.FetchItem(), goimap.FetchUid}

	var out []syncpkg.RawEmail
	err = s.safeCall(func() error {
		out = out[:0]
		messages := make(chan *goimap.Message, messageChanBuffer)
		done := make(chan error, 1)
		go func() { done <- s.conn.UidFetch(seqset, items, messages) }()
		for msg := range messages {
			body := msg.GetBody(section)
			if body == nil {
				continue
			}
			raw, err := io.ReadAll(body)
			if err != nil {
				continue
			}
			out = append(out, syncpkg.RawEmail{InternalID: idByUID[msg.Uid], Raw: raw})
		}
		return <-done
	})
	if err != nil {
		return nil, fmt.Errorf("%w: uid-fetch bodies %s: %v", syncpkg.ErrStore, folder, err)
	}
	return out, nil
}

func (s *Store) CopyEmails(ctx context.Context, srcFolder, dstFolder string, internalIDs []string) error {
	seqset, err := uidSeqSet(internalIDs)
	if err != nil {
		return fmt.Errorf("%w: %v", syncpkg.ErrData, err)
	}
	err = s.safeCall(func() error {
		if _, e := s.conn.Select(srcFolder, false); e != nil {
			return e
		}
		return s.conn.UidCopy(seqset, dstFolder)
	})
	if err != nil {
		return fmt.Errorf("%w: copy %s->%s: %v", syncpkg.ErrStore, srcFolder, dstFolder, err)
	}
	return nil
}

func (s *Store) MoveEmails(ctx context.Context, srcFolder, dstFolder string, internalIDs []string) error {
	if err := s.CopyEmails(ctx, srcFolder, dstFolder, internalIDs); err != nil {
		return err
	}
	return s.DeleteEmails(ctx, srcFolder, internalIDs)
}

func (s *Store) DeleteEmails(ctx context.Context, folder string, internalIDs []string) error {
	if len(internalIDs) == 0 {
		return nil
	}
	deleted := domain.NewFlagSet(domain.Flag{Kind: domain.FlagDeleted})
	if err := s.AddFlags(ctx, folder, internalIDs, deleted); err != nil {
		return err
	}
	err := s.safeCall(func() error {
		if _, e := s.conn.Select(folder, false); e != nil {
			return e
		}
		return s.conn.Expunge(nil)
	})
	if err != nil {
		return fmt.Errorf("%w: expunge %s: %v", syncpkg.ErrStore, folder, err)
	}
	return nil
}

func (s *Store) AddFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error {
	return s.storeFlags(folder, internalIDs, goimap.AddFlags, flags)
}

func (s *Store) RemoveFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error {
	return s.storeFlags(folder, internalIDs, goimap.RemoveFlags, flags)
}

func (s *Store) SetFlags(ctx context.Context, folder string, internalIDs []string, flags domain.FlagSet) error {
	return s.storeFlags(folder, internalIDs, goimap.SetFlags, flags)
}

func (s *Store) storeFlags(folder string, internalIDs []string, op goimap.FlagsOp, flags domain.FlagSet) error {
	if len(internalIDs) == 0 {
		return nil
	}
	seqset, err := uidSeqSet(internalIDs)
	if err != nil {
		return fmt.Errorf("%w: %v", syncpkg.ErrData, err)
	}
	item := goimap.FormatFlagsOp(op, true)
	imapFlags := toIMAPFlags(flags)
	flagsIface := make([]interface{}, len(imapFlags))
	for i, f := range imapFlags {
		flagsIface[i] = f
	}

	err = s.safeCall(func() error {
		if _, e := s.conn.Select(folder, false); e != nil {
			return e
		}
		return s.conn.UidStore(seqset, item, flagsIface, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: uid-store %s: %v", syncpkg.ErrStore, folder, err)
	}
	return nil
}

func fromIMAPFlags(flags []string) domain.FlagSet {
	fs := domain.NewFlagSet()
	for _, f := range flags {
		switch f {
		case goimap.SeenFlag:
			fs.Add(domain.Flag{Kind: domain.FlagSeen})
		case goimap.AnsweredFlag:
			fs.Add(domain.Flag{Kind: domain.FlagAnswered})
		case goimap.FlaggedFlag:
			fs.Add(domain.Flag{Kind: domain.FlagFlagged})
		case goimap.DeletedFlag:
			fs.Add(domain.Flag{Kind: domain.FlagDeleted})
		case goimap.DraftFlag:
			fs.Add(domain.Flag{Kind: domain.FlagDraft})
		case goimap.RecentFlag:
			fs.Add(domain.Flag{Kind: domain.FlagRecent})
		default:
			fs.Add(domain.CustomFlag(strings.TrimPrefix(f, "\\")))
		}
	}
	return fs
}

func toIMAPFlags(fs domain.FlagSet) []string {
	out := make([]string, 0, fs.Len())
	for _, f := range fs.Slice() {
		switch f.Kind {
		case domain.FlagSeen:
			out = append(out, goimap.SeenFlag)
		case domain.FlagAnswered:
			out = append(out, goimap.AnsweredFlag)
		case domain.FlagFlagged:
			out = append(out, goimap.FlaggedFlag)
		case domain.FlagDeleted:
			out = append(out, goimap.DeletedFlag)
		case domain.FlagDraft:
			out = append(out, goimap.DraftFlag)
		case domain.FlagRecent:
			out = append(out, goimap.RecentFlag)
		default:
			out = append(out, f.Name)
		}
	}
	return out
}

func formatUID(uid uint32) string {
	return fmt.Sprintf("%d", uid)
}

func parseUID(id string) (uint32, error) {
	var uid uint32
	_, err := fmt.Sscanf(id, "%d", &uid)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %q: %w", id, err)
	}
	return uid, nil
}

func uidSeqSet(internalIDs []string) (*goimap.SeqSet, error) {
	seqset := new(goimap.SeqSet)
	for _, id := range internalIDs {
		uid, err := parseUID(id)
		if err != nil {
			return nil, err
		}
		seqset.AddNum(uid)
	}
	return seqset, nil
}
