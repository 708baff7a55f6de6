// Package cache persists the {account, folder, envelope} and
// {account, folder} snapshots the reconciler needs between runs
// (spec.md §4.B). It is the only component that touches the cache
// database; its schema is bit-exact with spec.md §6 so independent
// implementations can interoperate against the same database file.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/greeddj/msync/internal/domain"
)

// Side distinguishes the two cache roles the same schema backs. There
// is no `side` column in the bit-exact schema of spec.md §6, so a side
// is encoded as a suffix on the `account` column value instead
// ("<account>:<side>") — the two caches never need to be joined
// against each other, only listed independently per folder.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// row mirrors one row of the envelopes table.
type row struct {
	ID         string    `db:"id"`
	InternalID string    `db:"internal_id"`
	Hash       string    `db:"hash"`
	Account    string    `db:"account"`
	Folder     string    `db:"folder"`
	Flag       string    `db:"flag"`
	MessageID  string    `db:"message_id"`
	Sender     string    `db:"sender"`
	Subject    string    `db:"subject"`
	Date       time.Time `db:"date"`
}

// aggregated is the result of grouping rows by hash with
// GROUP_CONCAT(flag, ' ') as spec.md §6 mandates.
type aggregated struct {
	ID         string    `db:"id"`
	InternalID string    `db:"internal_id"`
	Hash       string    `db:"hash"`
	Flags      string    `db:"flags"`
	MessageID  string    `db:"message_id"`
	Sender     string    `db:"sender"`
	Subject    string    `db:"subject"`
	Date       time.Time `db:"date"`
}

// DB is the persisted snapshot cache, backed by one database file. The
// CLI commands open one DB per cache side under an account's sync
// directory (local-cache.db and remote-cache.db); the two sides do not
// share a file. Reads use the pooled *sqlx.DB directly, writes serialize
// through mu so SQLITE_BUSY retries don't dominate latency under the
// executor's bounded parallelism (go-sqlite3 already serializes at the
// driver level, but holding our own mutex keeps write batches fair
// across goroutines instead of racing on SQLite's internal lock).
type DB struct {
	db *sqlx.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS envelopes (
	id TEXT,
	internal_id TEXT,
	hash TEXT,
	account TEXT,
	folder TEXT,
	flag TEXT,
	message_id TEXT,
	sender TEXT,
	subject TEXT,
	date DATETIME NOT NULL,
	UNIQUE(internal_id, hash, account, folder, flag)
);
CREATE TABLE IF NOT EXISTS folders (
	account TEXT,
	name TEXT,
	UNIQUE(name, account)
);
`

// Open creates or opens the cache database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	sdb, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrOpen, path, err)
	}
	if _, err := sdb.ExecContext(ctx, schema); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("%w: migrate schema: %v", ErrOpen, err)
	}
	return &DB{db: sdb}, nil
}

// Close releases the underlying database connection.
func (c *DB) Close() error {
	return c.db.Close()
}

// AccountSide binds a DB to one (account, side) pair, exposing just
// the folder/envelope operations internal/sync's executor needs for a
// LocalCache or RemoteCache role — a thin view, not a second store.
type AccountSide struct {
	db      *DB
	account string
	side    Side
}

// For returns the view for one account and side.
func (c *DB) For(account string, side Side) *AccountSide {
	return &AccountSide{db: c, account: account, side: side}
}

func (a *AccountSide) ListFolders(ctx context.Context) ([]string, error) {
	return a.db.ListFolders(ctx, a.account, a.side)
}

func (a *AccountSide) AddFolder(ctx context.Context, name string) error {
	return a.db.AddFolder(ctx, a.account, a.side, name)
}

func (a *AccountSide) DeleteFolder(ctx context.Context, name string) error {
	return a.db.DeleteFolder(ctx, a.account, a.side, name)
}

func (a *AccountSide) List(ctx context.Context, folder string) (map[string]domain.Envelope, error) {
	return a.db.List(ctx, a.account, a.side, folder)
}

func (a *AccountSide) Insert(ctx context.Context, folder, hash string, env domain.Envelope) error {
	return a.db.Insert(ctx, a.account, a.side, folder, hash, env)
}

func (a *AccountSide) Delete(ctx context.Context, folder, internalID string) error {
	return a.db.Delete(ctx, a.account, a.side, folder, internalID)
}

func accountKey(account string, side Side) string {
	return account + ":" + string(side)
}

// ListFolders returns the cached folder-name set for one side.
func (c *DB) ListFolders(ctx context.Context, account string, side Side) ([]string, error) {
	var names []string
	err := c.db.SelectContext(ctx, &names,
		`SELECT name FROM folders WHERE account = ?`, accountKey(account, side))
	if err != nil {
		return nil, fmt.Errorf("%w: list folders: %v", ErrQuery, err)
	}
	return names, nil
}

// AddFolder records a folder as present for one side. Idempotent.
func (c *DB) AddFolder(ctx context.Context, account string, side Side, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO folders (account, name) VALUES (?, ?)`, accountKey(account, side), name)
	if err != nil {
		return fmt.Errorf("%w: add folder %s: %v", ErrQuery, name, err)
	}
	return nil
}

// DeleteFolder removes a folder's row and cascades to every envelope
// row cached under it, per spec.md §4.E's DeleteFolder semantics.
func (c *DB) DeleteFolder(ctx context.Context, account string, side Side, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: delete folder %s: %v", ErrQuery, name, err)
	}
	defer func() { _ = tx.Rollback() }()

	key := accountKey(account, side)
	if _, err := tx.ExecContext(ctx, `DELETE FROM envelopes WHERE account = ? AND folder = ?`, key, name); err != nil {
		return fmt.Errorf("%w: cascade delete envelopes for folder %s: %v", ErrQuery, name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE account = ? AND name = ?`, key, name); err != nil {
		return fmt.Errorf("%w: delete folder %s: %v", ErrQuery, name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete folder %s: %v", ErrQuery, name, err)
	}
	return nil
}

// List returns {fingerprint -> envelope} for one (account, side, folder),
// aggregating each fingerprint's flag rows into a merged flag set via
// GROUP_CONCAT(flag, ' '), ordered by date DESC as spec.md §6 mandates.
func (c *DB) List(ctx context.Context, account string, side Side, folder string) (map[string]domain.Envelope, error) {
	var rows []aggregated
	err := c.db.SelectContext(ctx, &rows, `
		SELECT id, internal_id, hash,
		       COALESCE(GROUP_CONCAT(flag, ' '), '') AS flags,
		       message_id, sender, subject, date
		FROM envelopes
		WHERE account = ? AND folder = ?
		GROUP BY hash
		ORDER BY date DESC
	`, accountKey(account, side), folder)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s/%s: %v", ErrQuery, account, folder, err)
	}

	out := make(map[string]domain.Envelope, len(rows))
	for _, r := range rows {
		env := domain.Envelope{
			ID:         r.ID,
			InternalID: r.InternalID,
			Flags:      parseFlags(r.Flags),
			MessageID:  r.MessageID,
			From:       domain.Mailbox{Address: r.Sender},
			Subject:    r.Subject,
			Date:       r.Date,
		}
		out[r.Hash] = env
	}
	return out, nil
}

// Insert writes one row per flag for the envelope. Per spec.md §4.B,
// an envelope with no flags writes no rows and will not reappear in a
// later List — callers must ensure at least one flag before inserting
// (e.g. a freshly copied email always carries Seen, see §4.E).
func (c *DB) Insert(ctx context.Context, account string, side Side, folder, hash string, env domain.Envelope) error {
	flags := env.Flags.Slice()
	if len(flags) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: insert %s: %v", ErrQuery, hash, err)
	}
	defer func() { _ = tx.Rollback() }()

	key := accountKey(account, side)
	for _, f := range flags {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO envelopes
				(id, internal_id, hash, account, folder, flag, message_id, sender, subject, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, env.ID, env.InternalID, hash, key, folder, f.String(), env.MessageID, env.From.Address, env.Subject, env.Date)
		if err != nil {
			return fmt.Errorf("%w: insert %s flag %s: %v", ErrQuery, hash, f, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit insert %s: %v", ErrQuery, hash, err)
	}
	return nil
}

// Delete removes every row for (account, side, folder, internal_id).
// Idempotent: deleting an internal_id with no rows is not an error.
func (c *DB) Delete(ctx context.Context, account string, side Side, folder, internalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`DELETE FROM envelopes WHERE account = ? AND folder = ? AND internal_id = ?`,
		accountKey(account, side), folder, internalID)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrQuery, internalID, err)
	}
	return nil
}

func parseFlags(concatenated string) domain.FlagSet {
	fs := domain.NewFlagSet()
	if concatenated == "" {
		return fs
	}
	for _, name := range strings.Fields(concatenated) {
		fs.Add(flagFromString(name))
	}
	return fs
}

func flagFromString(s string) domain.Flag {
	switch s {
	case "Seen":
		return domain.Flag{Kind: domain.FlagSeen}
	case "Answered":
		return domain.Flag{Kind: domain.FlagAnswered}
	case "Flagged":
		return domain.Flag{Kind: domain.FlagFlagged}
	case "Deleted":
		return domain.Flag{Kind: domain.FlagDeleted}
	case "Draft":
		return domain.Flag{Kind: domain.FlagDraft}
	case "Recent":
		return domain.Flag{Kind: domain.FlagRecent}
	default:
		return domain.CustomFlag(s)
	}
}
