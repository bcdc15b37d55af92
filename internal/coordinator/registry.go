package coordinator

import (
	"golang.org/x/exp/slices"
)

// ClientRecord is the coordinator's view of one registered worker.
//
// ID, PublicKey and Order are fixed at first registration. Score counts the
// primes this worker has had accepted and only ever grows.
type ClientRecord struct {
	// ID is the worker's self-chosen identifier token.
	ID string

	// PublicKey is the PEM-encoded key decoded from the registration payload.
	// It is stored as received; an unusable key simply never verifies.
	PublicKey []byte

	// Order is the registry size at the moment of first registration.
	Order int

	// Score is the number of accepted primes.
	Score int
}

// Registry maps identifiers to records and remembers insertion order.
//
// Registry is not safe for concurrent use; the Coordinator serializes every
// access under its own mutex.
type Registry struct {
	records map[string]*ClientRecord
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*ClientRecord)}
}

// Get returns the live record for id.
func (r *Registry) Get(id string) (*ClientRecord, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// Add inserts a new record with Order equal to the current size and returns
// it. If id is already present the existing record is returned unchanged.
func (r *Registry) Add(id string, publicKey []byte) (*ClientRecord, bool) {
	if rec, ok := r.records[id]; ok {
		return rec, false
	}
	rec := &ClientRecord{
		ID:        id,
		PublicKey: slices.Clone(publicKey),
		Order:     len(r.order),
	}
	r.records[id] = rec
	r.order = append(r.order, id)
	return rec, true
}

// Len returns the number of registered identifiers.
func (r *Registry) Len() int { return len(r.order) }

// IDs returns identifiers in registration order.
func (r *Registry) IDs() []string { return slices.Clone(r.order) }

// Records returns copies of all records in registration order.
func (r *Registry) Records() []ClientRecord {
	out := make([]ClientRecord, 0, len(r.order))
	for _, id := range r.order {
		rec := *r.records[id]
		rec.PublicKey = slices.Clone(rec.PublicKey)
		out = append(out, rec)
	}
	return out
}
