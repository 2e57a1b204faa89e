// Package catalog holds the in-memory representation of tables,
// columns, and indexes: stable numeric ids, roles, and the
// default-value/auto-increment generators attached to columns.
package catalog

import (
	"sync/atomic"

	"tablekv/internal/types"
)

// State tags a table or index as live or tombstoned.
type State uint8

const (
	StatePublic State = iota
	StateTombstone
)

// ColumnRole records what, if anything, a column participates in.
type ColumnRole uint8

const (
	RoleNone ColumnRole = iota
	RolePrimary
	RoleUnique
	RoleMultipleUnique
	RoleIndex
)

// Generator produces a column's default value. DefaultConstant and
// AutoIncrement are the two concrete variants; both can be copied
// freely since AutoIncrement only carries a pointer to a shared
// counter, never the counter's value.
type Generator interface {
	Generate() types.Value
}

// DefaultConstant always yields the same configured value.
type DefaultConstant struct {
	Value types.Value
}

func (d DefaultConstant) Generate() types.Value { return d.Value }

// AutoIncrement atomically increments a counter shared by every
// generator for the same table (Table.MaxRowID) and returns the new
// value, so the first generated value is 1.
type AutoIncrement struct {
	Counter *atomic.Uint64
}

func (a AutoIncrement) Generate() types.Value {
	return types.FromInt(int64(a.Counter.Add(1)))
}

// Column is one declared column of a Table.
type Column struct {
	ID        uint32
	Name      string
	Type      types.SQLType
	Offset    int
	Generator Generator
	Nullable  bool
	Role      ColumnRole
}

// IndexColumn names one column participating in an Index, along with
// its offset within the owning table's column list.
type IndexColumn struct {
	Name   string
	Offset int
}

// Index is a named, ordered set of columns, optionally primary and/or
// unique.
type Index struct {
	ID        uint32
	Name      string
	TableName string
	Columns   []IndexColumn
	State     State
	Primary   bool
	Unique    bool
}

// SingleColumn reports whether idx covers exactly one column, and
// which.
func (idx *Index) SingleColumn() (IndexColumn, bool) {
	if len(idx.Columns) != 1 {
		return IndexColumn{}, false
	}
	return idx.Columns[0], true
}

// Table is the catalog's schema record for one relation.
type Table struct {
	ID          uint64
	Name        string
	Columns     []*Column
	Indexes     []*Index
	State       State
	PKIsHandle  bool
	MaxColumnID uint32
	MaxIndexID  uint32
	MaxRowID    atomic.Uint64
	UpdateTS    uint64
}

// PrimaryIndex returns the table's primary index, if any.
func (t *Table) PrimaryIndex() *Index {
	for _, idx := range t.Indexes {
		if idx.Primary {
			return idx
		}
	}
	return nil
}

// ColumnByName looks up a declared column case-sensitively against
// its (already lowercased) stored name.
func (t *Table) ColumnByName(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}
