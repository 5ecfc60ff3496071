package interventions

import (
	"context"
	"sort"
	"sync"

	"github.com/mbd888/riskwatch/internal/idgen"
	"github.com/mbd888/riskwatch/internal/pagination"
)

// MemoryStore is an in-memory intervention store for demo/development mode.
type MemoryStore struct {
	items map[string]*Intervention
	ids   *idgen.Sequence
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory intervention store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Intervention),
		ids:   idgen.NewSequence(IDPrefix, IDWidth),
	}
}

func (m *MemoryStore) Create(ctx context.Context, iv *Intervention) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	iv.ID, iv.seq = m.ids.Next()
	cp := *iv
	m.items[iv.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iv, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyIntervention(iv), nil
}

func (m *MemoryStore) Update(ctx context.Context, iv *Intervention, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[iv.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	iv.Version = expectedVersion + 1
	iv.seq = stored.seq
	m.items[iv.ID] = copyIntervention(iv)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Intervention, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cursorSeq int64
	if filter.Cursor != nil {
		n, err := idgen.Parse(IDPrefix, filter.Cursor.ID)
		if err != nil {
			return nil, err
		}
		cursorSeq = n
	}

	var result []*Intervention
	for _, iv := range m.items {
		if !filter.matches(iv) {
			continue
		}
		if filter.Cursor != nil && !after(iv, filter.Cursor, cursorSeq) {
			continue
		}
		result = append(result, copyIntervention(iv))
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.seq > b.seq
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counts
	for _, iv := range m.items {
		c.Total++
		if iv.Status == StatusPending {
			c.Pending++
		}
		switch iv.Outcome {
		case OutcomeAccepted:
			c.Accepted++
		case OutcomeRejected:
			c.Rejected++
		}
	}
	return c, nil
}

// after reports whether iv sorts strictly after the cursor in newest-first order.
func after(iv *Intervention, c *pagination.Cursor, cursorSeq int64) bool {
	if !iv.CreatedAt.Equal(c.CreatedAt) {
		return iv.CreatedAt.Before(c.CreatedAt)
	}
	return iv.seq < cursorSeq
}

func copyIntervention(iv *Intervention) *Intervention {
	cp := *iv
	if iv.DateSent != nil {
		t := *iv.DateSent
		cp.DateSent = &t
	}
	return &cp
}
