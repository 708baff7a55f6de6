package cache

import "errors"

// ErrOpen wraps failures opening or migrating the cache database.
var ErrOpen = errors.New("cache open error")

// ErrQuery wraps failures executing a statement against an open
// database. Both map onto spec.md §7's CacheError kind; internal/sync
// does not test for either one, it wraps any error from a cache call
// in its own ErrCache.
var ErrQuery = errors.New("cache query error")
