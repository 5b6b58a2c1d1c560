package models

import "sort"

// Collection is the keyed set of ingested recipes. Insertion order is kept so
// snapshots and "latest recipe" lookups are stable across runs.
type Collection struct {
	recipes map[string]*Recipe
	order   []string
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{recipes: make(map[string]*Recipe)}
}

// Add inserts r keyed by its ID. It returns false when the ID is already present.
func (c *Collection) Add(r *Recipe) bool {
	if r == nil || r.ID == "" {
		return false
	}
	if _, ok := c.recipes[r.ID]; ok {
		return false
	}
	c.recipes[r.ID] = r
	c.order = append(c.order, r.ID)
	return true
}

// Has reports whether a recipe with id is stored.
func (c *Collection) Has(id string) bool {
	_, ok := c.recipes[id]
	return ok
}

// Get returns the recipe stored under id.
func (c *Collection) Get(id string) (*Recipe, bool) {
	r, ok := c.recipes[id]
	return r, ok
}

// Len returns the number of stored recipes.
func (c *Collection) Len() int {
	return len(c.recipes)
}

// Recipes returns the stored recipes in insertion order.
func (c *Collection) Recipes() []*Recipe {
	out := make([]*Recipe, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.recipes[id])
	}
	return out
}

// Last returns the most recently inserted recipe.
func (c *Collection) Last() (*Recipe, bool) {
	if len(c.order) == 0 {
		return nil, false
	}
	return c.recipes[c.order[len(c.order)-1]], true
}

// FailureLedger records recipes that could not be scraped, keyed by
// "<id>/<name>". Entries are never removed.
type FailureLedger struct {
	keys map[string]struct{}
}

// NewFailureLedger returns an empty ledger.
func NewFailureLedger() *FailureLedger {
	return &FailureLedger{keys: make(map[string]struct{})}
}

// Add records key. It returns false when the key was already present.
func (l *FailureLedger) Add(key string) bool {
	if _, ok := l.keys[key]; ok {
		return false
	}
	l.keys[key] = struct{}{}
	return true
}

// Has reports whether key has been recorded.
func (l *FailureLedger) Has(key string) bool {
	_, ok := l.keys[key]
	return ok
}

// Len returns the number of recorded keys.
func (l *FailureLedger) Len() int {
	return len(l.keys)
}

// Keys returns the recorded keys sorted.
func (l *FailureLedger) Keys() []string {
	out := make([]string, 0, len(l.keys))
	for k := range l.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
