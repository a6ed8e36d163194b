package snapshot

// MemoryStore keeps the snapshot in memory. Used in tests and anywhere the
// collector should run without touching disk.
type MemoryStore struct {
	snap *Snapshot
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved snapshot, if any.
func (s *MemoryStore) Load() (*Snapshot, bool) {
	if s.snap == nil {
		return nil, false
	}
	return s.snap, true
}

// Save retains the snapshot.
func (s *MemoryStore) Save(snap *Snapshot) error {
	s.snap = snap
	return nil
}

var _ Store = (*MemoryStore)(nil)
