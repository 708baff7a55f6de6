// Package idmap persists the long-hash <-> internal-id mapping used by
// stores that address messages by a filesystem key with no inherent
// short, human-typeable form (spec.md §3, §4.G) — concretely,
// internal/store/maildir, which must remember which maildir key a
// given message's fingerprint currently lives under, since redelivery
// reassigns the key but leaves the fingerprint unchanged. The short id
// surfaced to users is never stored: it is a prefix of the long hash,
// recomputed on demand once enough of the prefix is known to be
// collision-free among every currently registered hash.
package idmap

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// maxShortLen caps the short-hash length regardless of collisions.
const maxShortLen = 32

// minShortLen is the smallest prefix length ever handed out.
const minShortLen = 2

// Map is one folder's id-map file: long (fingerprint) hash -> the
// store's internal_id, plus the current short-hash length used to
// derive short, human-typeable ids from long hashes.
type Map struct {
	path             string
	shortLen         int
	longToInternalID map[string]string
	internalIDToLong map[string]string
}

// Load reads the id-map file at path, or returns an empty Map if it
// does not exist yet (a brand new folder).
func Load(path string) (*Map, error) {
	m := &Map{
		path:             path,
		shortLen:         minShortLen,
		longToInternalID: make(map[string]string),
		internalIDToLong: make(map[string]string),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: %s: missing header line", ErrParse, path)
	}
	header := strings.TrimSpace(scanner.Text())
	shortLen, err := strconv.Atoi(header)
	if err != nil || shortLen < minShortLen {
		return nil, fmt.Errorf("%w: %s: invalid header %q", ErrParse, path, header)
	}
	m.shortLen = shortLen

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %s: malformed line %q", ErrParse, path, line)
		}
		long, internalID := parts[0], parts[1]
		m.longToInternalID[long] = internalID
		m.internalIDToLong[internalID] = long
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}

	return m, nil
}

// InternalID resolves a long fingerprint hash to the internal_id it is
// currently registered under, if any.
func (m *Map) InternalID(longHash string) (string, bool) {
	id, ok := m.longToInternalID[longHash]
	return id, ok
}

// LongHash resolves an internal_id back to its long fingerprint hash.
func (m *Map) LongHash(internalID string) (string, bool) {
	long, ok := m.internalIDToLong[internalID]
	return long, ok
}

// ShortID derives the short, human-typeable id for a long hash: a
// prefix long enough to be collision-free among every hash currently
// registered (Forget drops a hash from that set). It neither mutates
// nor persists anything — callers must Register the hash first for the
// prefix to actually be unique.
func (m *Map) ShortID(longHash string) string {
	n := m.shortLen
	if n > len(longHash) {
		n = len(longHash)
	}
	return longHash[:n]
}

// Register records that longHash currently lives under internalID,
// rewriting the file in full if anything changed. Re-registering a
// hash under the same internalID it already has is a no-op; a
// redelivered message that reappears under a new internalID moves the
// mapping rather than adding a second one.
func (m *Map) Register(longHash, internalID string) error {
	prevID, hadPrev := m.longToInternalID[longHash]
	if hadPrev && prevID == internalID {
		return nil
	}

	m.longToInternalID[longHash] = internalID
	m.internalIDToLong[internalID] = longHash
	if hadPrev {
		delete(m.internalIDToLong, prevID)
	}
	m.recomputeShortLen()

	if err := m.save(); err != nil {
		if hadPrev {
			m.longToInternalID[longHash] = prevID
			m.internalIDToLong[prevID] = longHash
		} else {
			delete(m.longToInternalID, longHash)
		}
		delete(m.internalIDToLong, internalID)
		m.recomputeShortLen()
		return err
	}
	return nil
}

// Forget removes a mapping entirely (the backing email was deleted)
// and rewrites the file.
func (m *Map) Forget(longHash string) error {
	id, ok := m.longToInternalID[longHash]
	if !ok {
		return nil
	}
	delete(m.longToInternalID, longHash)
	delete(m.internalIDToLong, id)
	m.recomputeShortLen()
	return m.save()
}

// recomputeShortLen finds the smallest prefix length >= minShortLen
// that gives every registered long hash a distinct prefix, capped at
// maxShortLen.
func (m *Map) recomputeShortLen() {
	longs := make([]string, 0, len(m.longToInternalID))
	for long := range m.longToInternalID {
		longs = append(longs, long)
	}
	sort.Strings(longs)

	length := minShortLen
	for ; length <= maxShortLen; length++ {
		seen := make(map[string]bool, len(longs))
		collision := false
		for _, long := range longs {
			prefix := long[:min(length, len(long))]
			if seen[prefix] {
				collision = true
				break
			}
			seen[prefix] = true
		}
		if !collision {
			break
		}
	}
	if length > maxShortLen {
		length = maxShortLen
	}
	m.shortLen = length
}

// save rewrites the id-map file in full: the header line followed by
// one "<long_hash> <internal_id>" line per mapping, newline-terminated,
// sorted for deterministic output.
func (m *Map) save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", ErrIO, m.path, err)
	}

	longs := make([]string, 0, len(m.longToInternalID))
	for long := range m.longToInternalID {
		longs = append(longs, long)
	}
	sort.Strings(longs)

	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", m.shortLen)
	for _, long := range longs {
		fmt.Fprintf(&b, "%s %s\n", long, m.longToInternalID[long])
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrIO, m.path, err)
	}
	return nil
}
