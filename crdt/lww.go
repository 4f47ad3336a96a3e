package crdt

// LWWRegister is a last-write-wins single-value register (spec §4.2).
// Update policy: a new write is accepted iff (timestamp, node_id) is
// strictly greater than the stored tag by lexicographic compare — ties
// broken by the greater node id (add-wins bias). The vector clock is
// always merged, even when the value itself doesn't change.
type LWWRegister[T any] struct {
	value     T
	timestamp int64
	nodeID    string
	hasValue  bool
	vc        VectorClock
}

// NewLWWRegister returns an empty register.
func NewLWWRegister[T any]() *LWWRegister[T] {
	return &LWWRegister[T]{vc: NewVectorClock()}
}

// Set attempts to install value as the register's content. It is accepted
// only if (timestamp, nodeID) strictly dominates the currently stored tag.
func (r *LWWRegister[T]) Set(value T, timestamp int64, nodeID string, vc VectorClock) {
	r.vc = r.vc.Merge(vc).Increment(nodeID)

	if !r.hasValue || dominates(timestamp, nodeID, r.timestamp, r.nodeID) {
		r.value = value
		r.timestamp = timestamp
		r.nodeID = nodeID
		r.hasValue = true
	}
}

// Value returns the current value and whether the register has ever
// been set.
func (r *LWWRegister[T]) Value() (T, bool) {
	return r.value, r.hasValue
}

// VectorClock returns the register's current causal clock.
func (r *LWWRegister[T]) VectorClock() VectorClock {
	return r.vc
}

// Merge returns a new register combining r and other, keeping whichever
// value dominates and unioning the vector clocks; r is not modified. Merge
// is commutative, associative and idempotent by construction (max-by-tag
// union).
func (r *LWWRegister[T]) Merge(other *LWWRegister[T]) *LWWRegister[T] {
	out := &LWWRegister[T]{
		value:     r.value,
		timestamp: r.timestamp,
		nodeID:    r.nodeID,
		hasValue:  r.hasValue,
		vc:        r.vc.Merge(other.vc),
	}
	if !out.hasValue || (other.hasValue && dominates(other.timestamp, other.nodeID, out.timestamp, out.nodeID)) {
		out.value = other.value
		out.timestamp = other.timestamp
		out.nodeID = other.nodeID
		out.hasValue = other.hasValue
	}
	return out
}

// dominates reports whether (ts1, node1) strictly beats (ts2, node2):
// higher timestamp wins; on a tie, the lexicographically greater node id
// wins (spec §4.2 "greater node-id wins ties").
func dominates(ts1 int64, node1 string, ts2 int64, node2 string) bool {
	if ts1 != ts2 {
		return ts1 > ts2
	}
	return node1 > node2
}
