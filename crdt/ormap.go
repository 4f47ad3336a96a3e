package crdt

// ORMap is a key-tagged OR-Set (spec §4.2): key presence follows OR-Set
// add-wins semantics, while the value for a key present in both replicas
// is combined with mergeValue — scalar values use "later write wins"
// (the caller supplies a merge function that captures this, e.g. via a
// wrapped LWWRegister), CRDT-valued maps supply their own recursive
// Merge as mergeValue ("merge_nested").
type ORMap[K comparable, V any] struct {
	keys       *ORSet[K]
	values     map[K]V
	mergeValue func(a, b V) V
}

// NewORMap returns an empty OR-Map. mergeValue combines two values stored
// for the same key observed from different replicas; it must itself be
// commutative, associative and idempotent for ORMap.Merge to be a CRDT.
func NewORMap[K comparable, V any](mergeValue func(a, b V) V) *ORMap[K, V] {
	return &ORMap[K, V]{
		keys:       NewORSet[K](),
		values:     make(map[K]V),
		mergeValue: mergeValue,
	}
}

// Set inserts v for k, tagging a fresh AddID. If k already holds a value,
// the stored value becomes mergeValue(existing, v).
func (m *ORMap[K, V]) Set(k K, v V, nodeID string) {
	m.keys.Add(k, nodeID)
	if existing, ok := m.values[k]; ok {
		m.values[k] = m.mergeValue(existing, v)
	} else {
		m.values[k] = v
	}
}

// Delete removes k (tombstones every AddID for it observed so far).
func (m *ORMap[K, V]) Delete(k K) {
	m.keys.Remove(k)
}

// Get returns the value for k and whether k is currently a surviving member.
func (m *ORMap[K, V]) Get(k K) (V, bool) {
	var zero V
	if !m.keys.Contains(k) {
		return zero, false
	}
	v, ok := m.values[k]
	return v, ok
}

// Keys returns every key currently surviving in the map.
func (m *ORMap[K, V]) Keys() []K {
	return m.keys.Elements()
}

// Merge returns the union of m and other: key presence merges via OR-Set
// union (add-wins), and any key present in both value maps is combined
// with mergeValue.
func (m *ORMap[K, V]) Merge(other *ORMap[K, V]) *ORMap[K, V] {
	out := &ORMap[K, V]{
		keys:       m.keys.Merge(other.keys),
		values:     make(map[K]V, len(m.values)+len(other.values)),
		mergeValue: m.mergeValue,
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	for k, v := range other.values {
		if existing, ok := out.values[k]; ok {
			out.values[k] = out.mergeValue(existing, v)
		} else {
			out.values[k] = v
		}
	}
	return out
}
