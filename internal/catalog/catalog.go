// Package catalog provides the in-memory merchant category catalog.
// Entries are supplied by the caller (typically loaded from the
// repository); the catalog never embeds category data of its own.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/metapayd/cardwise/internal/domain"
)

// Catalog is a reloadable, read-mostly category code lookup.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]domain.CatalogEntry
}

// New creates a catalog from the given entries.
func New(entries []*domain.CatalogEntry) *Catalog {
	c := &Catalog{
		entries: make(map[string]domain.CatalogEntry, len(entries)),
	}
	for _, entry := range entries {
		c.entries[entry.Code] = *entry
	}
	return c
}

// Load creates a catalog populated from the repository.
func Load(ctx context.Context, repo domain.Repository) (*Catalog, error) {
	entries, err := repo.ListCatalogEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog entries: %w", err)
	}
	return New(entries), nil
}

// Lookup returns the entry for a category code. The second return is
// false for unknown codes; callers decide the fallback category.
func (c *Catalog) Lookup(code string) (domain.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[code]
	return entry, ok
}

// Reload replaces the catalog contents with the given entries.
func (c *Catalog) Reload(entries []*domain.CatalogEntry) {
	next := make(map[string]domain.CatalogEntry, len(entries))
	for _, entry := range entries {
		next[entry.Code] = *entry
	}

	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

// Count returns the number of catalog entries.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
