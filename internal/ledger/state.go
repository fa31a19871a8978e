package ledger

// Map is a journaled map. Values are treated as immutable: replace them, never mutate in place.
type Map[K comparable, V any] struct {
	m map[K]V
}

// NewMap creates an empty journaled map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	v, ok := m.m[k]
	return v, ok
}

// Has reports whether k is present.
func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.m[k]
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.m) }

// Set stores v under k and records the previous entry for rollback.
func (m *Map[K, V]) Set(tx *Tx, k K, v V) {
	prev, existed := m.m[k]
	m.m[k] = v
	tx.OnRevert(func() {
		if existed {
			m.m[k] = prev
		} else {
			delete(m.m, k)
		}
	})
}

// Delete removes k and records the previous entry for rollback.
func (m *Map[K, V]) Delete(tx *Tx, k K) {
	prev, existed := m.m[k]
	if !existed {
		return
	}
	delete(m.m, k)
	tx.OnRevert(func() { m.m[k] = prev })
}

// Seed stores v without journaling. Only for construction before any transaction runs.
func (m *Map[K, V]) Seed(k K, v V) {
	m.m[k] = v
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	for k, v := range m.m {
		if !fn(k, v) {
			return
		}
	}
}

// Value is a journaled single variable.
type Value[T any] struct {
	v T
}

// NewValue creates a journaled variable holding v.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (s *Value[T]) Get() T { return s.v }

// Set replaces the value and records the previous one for rollback.
func (s *Value[T]) Set(tx *Tx, v T) {
	prev := s.v
	s.v = v
	tx.OnRevert(func() { s.v = prev })
}
