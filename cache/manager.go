package cache

// Status is the outcome of a Manager.Lookup call (spec §4.7's
// lookup → (hit ∧ valid) | (hit ∧ stale → refresh) | miss).
type Status int

const (
	StatusMiss Status = iota
	StatusHit
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusStale:
		return "stale"
	default:
		return "miss"
	}
}

// Manager wraps a Store with TTL and source-state validation. now is
// injected (spec §4.7: "now is injected so tests can control expiry").
type Manager struct {
	store Store
	now   func() int64
}

// NewManager builds a Manager over store, using now for the current
// logical time (unix millis).
func NewManager(store Store, now func() int64) *Manager {
	return &Manager{store: store, now: now}
}

// Validator probes a cached entry's recorded source states and reports
// whether the entry is still current. The engine supplies one backed by
// connector.SourceStater.GetSourceState; a nil Validator means
// TTL-only validation.
type Validator func(Entry) (bool, error)

// Lookup resolves key against the store, applying TTL expiry and then,
// if still unexpired, source-state validation. A deserialize failure
// reported by the Store as KindCacheCorruption is treated identically
// to a plain miss, per spec §4.7.
func (m *Manager) Lookup(key Key, validate Validator) (Entry, Status, error) {
	entry, ok, err := m.store.Get(key)
	if err != nil {
		_ = m.store.Delete(key)
		return Entry{}, StatusMiss, nil
	}
	if !ok {
		return Entry{}, StatusMiss, nil
	}

	if entry.TTLMillis > 0 && m.now()-entry.CreatedAt > entry.TTLMillis {
		return entry, StatusStale, nil
	}
	if validate != nil {
		valid, err := validate(entry)
		if err != nil {
			return entry, StatusStale, err
		}
		if !valid {
			return entry, StatusStale, nil
		}
	}
	return entry, StatusHit, nil
}

// Set stores value under key with the given TTL and the source states
// to validate future lookups against.
func (m *Manager) Set(key Key, entry Entry) error {
	entry.CreatedAt = m.now()
	return m.store.Set(key, entry)
}

// Delete evicts key, used when a refresh determines the cached result
// is definitively invalid.
func (m *Manager) Delete(key Key) error {
	return m.store.Delete(key)
}
