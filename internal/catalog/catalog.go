package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCatalog is returned when listing data breaks the catalog invariants.
var ErrInvalidCatalog = errors.New("catalog: invalid listing")

// Item is a purchasable catalog entry. Items are immutable once loaded.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Price       int64  `json:"price"`
	Tag         string `json:"tag"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// Catalog is the read-only, process-wide listing keyed by item ID.
type Catalog struct {
	items []Item
	index map[string]int
}

// New validates the listing and builds a Catalog preserving the source order.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, fmt.Errorf("item %d has empty id: %w", i, ErrInvalidCatalog)
		}
		if id != item.ID {
			return nil, fmt.Errorf("item %q has surrounding whitespace: %w", item.ID, ErrInvalidCatalog)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("item %q has negative price: %w", id, ErrInvalidCatalog)
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("duplicate id %q: %w", id, ErrInvalidCatalog)
		}
		c.index[id] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Items returns a copy of the listing in source order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}
