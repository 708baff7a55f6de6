package domain

import "time"

// Mailbox is an address plus an optional display name. Equality between
// two mailboxes is by address only, per the fingerprint contract.
type Mailbox struct {
	Name    string // display name, may be empty
	Address string
}

// Envelope is the minimum per-email metadata the sync core reconciles.
// It intentionally excludes the message body.
type Envelope struct {
	ID         string // unstable, store-local identifier for this run
	InternalID string // stable identifier within the owning store
	Flags      FlagSet
	MessageID  string // RFC 822 Message-ID header value, may be empty
	From       Mailbox
	Subject    string
	Date       time.Time // zero value means "absent"
}

// HasDate reports whether the envelope carries a wall-clock date.
func (e Envelope) HasDate() bool {
	return !e.Date.IsZero()
}

// Clone returns a deep-enough copy safe to hand to another goroutine.
func (e Envelope) Clone() Envelope {
	e.Flags = e.Flags.Clone()
	return e
}

// Folder is a mailbox name. Equality is exact and case-sensitive; the
// core never normalizes hierarchy delimiters.
type Folder = string
