package starter

// Store exposes conversation starters for HTTP handlers.
type Store interface {
	List() []Starter
	FindByID(id string) (Starter, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Starter
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied starters.
func NewMemoryStore(items []Starter) *MemoryStore {
	return &MemoryStore{items: append([]Starter(nil), items...)}
}

// List returns the starters in display order.
func (s *MemoryStore) List() []Starter {
	return append([]Starter(nil), s.items...)
}

// FindByID looks up a starter by identifier.
func (s *MemoryStore) FindByID(id string) (Starter, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Starter{}, false
}
