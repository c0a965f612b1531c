package matchmaking

import "time"

// CooldownLedger remembers, per unordered pair of participants, the instant
// before which the pair must not be matched again.
//
// The ledger is not safe for concurrent use; the Engine serializes access.
type CooldownLedger struct {
	window time.Duration
	until  map[Pair]time.Time
}

// NewCooldownLedger creates a ledger whose records last window
func NewCooldownLedger(window time.Duration) *CooldownLedger {
	return &CooldownLedger{
		window: window,
		until:  make(map[Pair]time.Time),
	}
}

// Pair is an unordered pair of identities with the lower id first
type Pair struct {
	Low, High string
}

// PairKey canonicalises an unordered pair
func PairKey(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Active reports whether the pair is still cooling down at now
func (l *CooldownLedger) Active(a, b string, now time.Time) bool {
	until, ok := l.until[PairKey(a, b)]
	return ok && until.After(now)
}

// Set starts a cooldown for the pair effective at now and returns its expiry
func (l *CooldownLedger) Set(a, b string, now time.Time) time.Time {
	until := now.Add(l.window)
	l.until[PairKey(a, b)] = until
	return until
}

// Until returns the recorded expiry for the pair, if any
func (l *CooldownLedger) Until(a, b string) (time.Time, bool) {
	until, ok := l.until[PairKey(a, b)]
	return until, ok
}

// Purge drops records that expired at or before now and returns how many
// were removed.
func (l *CooldownLedger) Purge(now time.Time) int {
	removed := 0
	for key, until := range l.until {
		if !until.After(now) {
			delete(l.until, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records
func (l *CooldownLedger) Len() int {
	return len(l.until)
}
