package catalog

import (
	"strings"
	"sync"
	"sync/atomic"

	"tablekv/internal/errs"
)

// TableSource is a read-optimized view over a Table: the schema plus
// name-keyed lookup maps, built once and never mutated in place.
// Replacing a table's schema publishes a brand new TableSource and
// marks the old one invalid; holders of the old reference must notice
// via Valid and re-fetch from the Catalog.
type TableSource struct {
	Table *Table

	byName      map[string]*Column
	uniqueByCol map[string]*Index // single-column primary/unique indexes, keyed by column name

	valid atomic.Bool
}

func newTableSource(t *Table) *TableSource {
	ts := &TableSource{
		Table:       t,
		byName:      make(map[string]*Column, len(t.Columns)),
		uniqueByCol: make(map[string]*Index),
	}
	for _, c := range t.Columns {
		ts.byName[c.Name] = c
	}
	for _, idx := range t.Indexes {
		if !idx.Primary && !idx.Unique {
			continue
		}
		if col, ok := idx.SingleColumn(); ok {
			ts.uniqueByCol[col.Name] = idx
		}
	}
	ts.valid.Store(true)
	return ts
}

// Valid reports whether this view is still the catalog's current view
// of its table. Once invalidated, a TableSource never becomes valid
// again.
func (ts *TableSource) Valid() bool { return ts.valid.Load() }

func (ts *TableSource) invalidate() { ts.valid.Store(false) }

// ColumnByName looks up a column in this view.
func (ts *TableSource) ColumnByName(name string) (*Column, bool) {
	c, ok := ts.byName[strings.ToLower(name)]
	return c, ok
}

// UniqueIndexByColumn returns the single-column primary or unique
// index over name, if one exists.
func (ts *TableSource) UniqueIndexByColumn(name string) (*Index, bool) {
	idx, ok := ts.uniqueByCol[strings.ToLower(name)]
	return idx, ok
}

// Catalog maps lowercase table name to its current TableSource.
// Readers may proceed concurrently; DDL (Add/Replace) serializes
// against readers and other writers via a plain sync.RWMutex — Go's
// RWMutex approximates the reader-preferring lock the source uses,
// a deliberate simplification (see DESIGN.md).
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*TableSource
	nextID uint64
}

func New() *Catalog {
	return &Catalog{tables: make(map[string]*TableSource)}
}

// Get returns the current TableSource for name, or an UnknownTable
// error.
func (c *Catalog) Get(name string) (*TableSource, error) {
	name = strings.ToLower(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.tables[name]
	if !ok {
		return nil, errs.Newf(errs.KindUnknownTable, "unknown table %q", name)
	}
	return ts, nil
}

// Add registers a brand new table. It fails if a table with the same
// name already exists.
func (c *Catalog) Add(t *Table) (*TableSource, error) {
	name := strings.ToLower(t.Name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tables[name]; exists {
		return nil, errs.Newf(errs.KindUnsupportedDDL, "table %q already exists", name)
	}
	c.nextID++
	t.ID = c.nextID
	t.Name = name
	ts := newTableSource(t)
	c.tables[name] = ts
	return ts, nil
}

// Replace swaps in a new schema for an existing table (e.g. after
// CREATE INDEX), invalidating the prior TableSource so that readers
// holding the old reference detect staleness on their next check.
func (c *Catalog) Replace(t *Table) (*TableSource, error) {
	name := strings.ToLower(t.Name)
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.tables[name]
	if !ok {
		return nil, errs.Newf(errs.KindUnknownTable, "unknown table %q", name)
	}
	t.Name = name
	ts := newTableSource(t)
	c.tables[name] = ts
	old.invalidate()
	return ts, nil
}
