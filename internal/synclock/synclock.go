// Package synclock provides per-account advisory locking so two
// concurrent runs never reconcile the same account at once (spec.md
// §5, §9 open question 5: the lock is a single advisory lock file, not a
// timestamped window).
package synclock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	syncpkg "github.com/greeddj/msync/internal/sync"
)

// Lock guards one account's sync directory.
type Lock struct {
	account string
	path    string
	fl      *flock.Flock
}

// New builds a lock for account rooted at dir (the account's sync
// directory). The lock file itself lives alongside the cache database
// rather than in a shared location, so removing an account's
// directory also removes its lock.
func New(dir, account string) *Lock {
	path := filepath.Join(dir, fmt.Sprintf("msync-%s.lock", account))
	return &Lock{account: account, path: path, fl: flock.New(path)}
}

// TryAcquire attempts a non-blocking exclusive lock. It returns
// sync.ErrLock if another run already holds it.
func (l *Lock) TryAcquire() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("%w: lock %s: %v", syncpkg.ErrLock, l.path, err)
	}
	if !ok {
		return fmt.Errorf("%w: account %s", syncpkg.ErrLock, l.account)
	}
	return nil
}

// Release gives up the lock. Safe to call even if TryAcquire failed.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
