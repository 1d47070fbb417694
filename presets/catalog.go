package presets

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrCardNotFound is returned when a card id is not in the catalog.
var ErrCardNotFound = errors.New("card configuration not found")

// Catalog stores card configurations.
// Implementations: MemoryCatalog here, store/sqlite for persistence.
type Catalog interface {
	// Save inserts or replaces the card with c.ID.
	Save(ctx context.Context, c CardConfiguration) error

	// Get returns ErrCardNotFound for unknown ids.
	Get(ctx context.Context, id string) (CardConfiguration, error)

	// List returns all cards ordered by name.
	List(ctx context.Context) ([]CardConfiguration, error)

	// Delete returns ErrCardNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}

// Seed saves every built-in card into c. Built-in ids are overwritten, so
// edits to them do not survive a restart of a persistent catalog.
func Seed(ctx context.Context, c Catalog) error {
	for _, card := range Builtins() {
		if err := c.Save(ctx, card); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// MEMORY CATALOG - In-memory implementation (for testing/dev)
// =============================================================================

type MemoryCatalog struct {
	mu    sync.RWMutex
	cards map[string]CardConfiguration
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{cards: make(map[string]CardConfiguration)}
}

func (m *MemoryCatalog) Save(_ context.Context, c CardConfiguration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = c
	return nil
}

func (m *MemoryCatalog) Get(_ context.Context, id string) (CardConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return CardConfiguration{}, ErrCardNotFound
	}
	return c, nil
}

func (m *MemoryCatalog) List(_ context.Context) ([]CardConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CardConfiguration, 0, len(m.cards))
	for _, c := range m.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCatalog) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return ErrCardNotFound
	}
	delete(m.cards, id)
	return nil
}
