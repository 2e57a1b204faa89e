// Package server exposes the per-connection callback contract a MySQL
// wire-protocol front end drives: init, query, prepare. It depends on
// nothing socket-related — no listener, no byte framing — those are
// external collaborators.
package server

import (
	"context"

	"tablekv/internal/types"
)

// WireType is a MySQL protocol column type code.
type WireType uint8

const (
	WireTypeShort     WireType = 2
	WireTypeLong      WireType = 3
	WireTypeFloat     WireType = 4
	WireTypeDecimal   WireType = 0
	WireTypeVarchar   WireType = 15
	WireTypeVarString WireType = 253
)

// WireTypeFor maps a declared SQL type to the MySQL wire type code sent
// in column metadata.
func WireTypeFor(t types.SQLType) WireType {
	switch t {
	case types.SQLSmallInt:
		return WireTypeShort
	case types.SQLInt, types.SQLBigInt:
		return WireTypeLong
	case types.SQLFloat, types.SQLDouble:
		return WireTypeFloat
	case types.SQLString:
		return WireTypeVarString
	case types.SQLChar, types.SQLVarchar, types.SQLText, types.SQLDate, types.SQLTime:
		return WireTypeVarchar
	default:
		return WireTypeVarchar
	}
}

// ColumnMeta describes one projected column of a QueryResult.
type ColumnMeta struct {
	Name     string
	WireType WireType
}

// QueryResult is what OnQuery returns for a successful statement.
type QueryResult struct {
	Columns []ColumnMeta
	Rows    [][]types.Value
}

// Handler is the callback surface a wire-protocol front end drives.
// OnExecute and OnClose are intentionally absent: the core does not
// implement prepared-statement execution or connection teardown
// hooks.
type Handler interface {
	OnInit(ctx context.Context, database string) error
	OnQuery(ctx context.Context, sql string) (*QueryResult, error)
	OnPrepare(ctx context.Context, sql string) error
}
