package roster

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory roster store for demo/development mode.
type MemoryStore struct {
	customers map[string]*Customer
	seq       map[string]int // insertion order, breaks risk ties
	next      int
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory roster store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*Customer),
		seq:       make(map[string]int),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[c.ID]; ok {
		return ErrDuplicate
	}
	cp := *c
	m.customers[c.ID] = &cp
	m.seq[c.ID] = m.next
	m.next++
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Customer, 0, len(m.customers))
	for _, c := range m.customers {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RiskScore != result[j].RiskScore {
			return result[i].RiskScore > result[j].RiskScore
		}
		return m.seq[result[i].ID] < m.seq[result[j].ID]
	})
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}
