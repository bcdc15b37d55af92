package coordinator

import "golang.org/x/exp/slices"

// Ledger is the set of accepted primes, keyed by their exact decimal text.
// "17" and "017" are different entries: membership is textual, never numeric.
//
// Ledger is not safe for concurrent use; see Registry.
type Ledger struct {
	seen   map[string]struct{}
	values []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Contains reports whether text has been accepted before.
func (l *Ledger) Contains(text string) bool {
	_, ok := l.seen[text]
	return ok
}

// Add records text and reports whether it was new.
func (l *Ledger) Add(text string) bool {
	if l.Contains(text) {
		return false
	}
	l.seen[text] = struct{}{}
	l.values = append(l.values, text)
	return true
}

// Len returns the number of accepted entries.
func (l *Ledger) Len() int { return len(l.values) }

// Values returns accepted entries in acceptance order.
func (l *Ledger) Values() []string { return slices.Clone(l.values) }
