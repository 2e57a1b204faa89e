// Package plan recognizes a narrow but common shape of SELECT — a
// single-table equality lookup against a primary or unique index — and
// turns it into a PointGetPlan the table engine can execute directly
// without a general-purpose query executor.
package plan

import (
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/opcode"

	"tablekv/internal/catalog"
	"tablekv/internal/errs"
	"tablekv/internal/types"
)

// PointGetPlan names everything the table engine needs to execute a
// recognized point get: the table and qualifying index, the scalar
// value the index is probed with, the columns to project, and any
// remaining WHERE conjuncts left for the caller to apply as a
// post-filter (evaluating them is out of scope here).
type PointGetPlan struct {
	Table         string
	Index         *catalog.Index
	IndexValue    types.Value
	SelectColumns []string
	ExtraFilters  []ast.ExprNode
}

// equality is one WHERE conjunct of the form column = literal.
type equality struct {
	column string
	raw    string
	expr   ast.ExprNode
}

// Recognizer holds the catalog lookups needed to test whether an
// equality conjunct binds a primary or unique single-column index.
type Recognizer struct {
	Catalog *catalog.Catalog
}

func New(cat *catalog.Catalog) *Recognizer {
	return &Recognizer{Catalog: cat}
}

// Recognize returns a PointGetPlan if stmt qualifies, or (nil, nil) if
// it does not — a non-qualifying statement is not an error, the caller
// simply falls back to a general (here, unimplemented) executor.
func (r *Recognizer) Recognize(stmt *ast.SelectStmt, currentDatabase string) (*PointGetPlan, error) {
	if stmt == nil || stmt.From == nil || stmt.From.TableRefs == nil {
		return nil, nil
	}
	if stmt.OrderBy != nil || stmt.Limit != nil || stmt.GroupBy != nil || stmt.Having != nil {
		return nil, nil
	}

	join := stmt.From.TableRefs
	if join.Right != nil {
		return nil, nil // a join disqualifies a point get
	}
	src, ok := join.Left.(*ast.TableSource)
	if !ok {
		return nil, nil
	}
	tableName, ok := src.Source.(*ast.TableName)
	if !ok {
		return nil, nil
	}

	if schema := strings.ToLower(tableName.Schema.O); schema != "" && schema != strings.ToLower(currentDatabase) {
		return nil, errs.Newf(errs.KindUnknownDatabase, "unknown database %q", tableName.Schema.O)
	}
	table := strings.ToLower(tableName.Name.O)

	source, err := r.Catalog.Get(table)
	if err != nil {
		return nil, err
	}

	equalities, extra, ok := splitConjuncts(stmt.Where)
	if !ok {
		return nil, nil
	}
	for _, eq := range equalities {
		if _, found := source.ColumnByName(eq.column); !found {
			return nil, errs.Newf(errs.KindUnknownColumn, "unknown column %q", eq.column)
		}
	}

	var chosen *equality
	var chosenIndex *catalog.Index
	for i := range equalities {
		eq := &equalities[i]
		idx, found := source.UniqueIndexByColumn(eq.column)
		if !found {
			continue
		}
		chosen = eq
		chosenIndex = idx
		break
	}
	if chosen == nil {
		return nil, nil
	}

	col, ok := source.ColumnByName(chosen.column)
	if !ok {
		return nil, errs.Newf(errs.KindUnknownColumn, "unknown column %q", chosen.column)
	}
	value, err := parseLiteral(chosen.raw, col.Type)
	if err != nil {
		return nil, err
	}

	selectColumns, err := selectedColumns(stmt.Fields, source)
	if err != nil {
		return nil, err
	}

	var remaining []ast.ExprNode
	for _, eq := range equalities {
		if eq.column == chosen.column {
			continue
		}
		remaining = append(remaining, eq.expr)
	}
	remaining = append(remaining, extra...)

	return &PointGetPlan{
		Table:         table,
		Index:         chosenIndex,
		IndexValue:    value,
		SelectColumns: selectColumns,
		ExtraFilters:  remaining,
	}, nil
}

// splitConjuncts flattens a WHERE tree into top-level AND conjuncts and
// classifies each as an equality-to-literal or an opaque extra filter.
// ok is false if where is nil (no WHERE means nothing binds an index,
// so the statement cannot qualify as a point get).
func splitConjuncts(where ast.ExprNode) (equalities []equality, extra []ast.ExprNode, ok bool) {
	if where == nil {
		return nil, nil, false
	}
	var walk func(expr ast.ExprNode)
	walk = func(expr ast.ExprNode) {
		if bin, isBinary := expr.(*ast.BinaryOperationExpr); isBinary {
			if bin.Op == opcode.LogicAnd {
				walk(bin.L)
				walk(bin.R)
				return
			}
			if bin.Op == opcode.EQ {
				if col, raw, isEq := asColumnLiteralEquality(bin); isEq {
					equalities = append(equalities, equality{column: col, raw: raw, expr: expr})
					return
				}
			}
		}
		extra = append(extra, expr)
	}
	walk(where)
	return equalities, extra, true
}

// asColumnLiteralEquality reports whether bin is `column = literal` or
// `literal = column`, returning the lowercased column name and the
// literal's restored text form.
func asColumnLiteralEquality(bin *ast.BinaryOperationExpr) (column string, raw string, ok bool) {
	if col, isCol := bin.L.(*ast.ColumnNameExpr); isCol {
		if lit, litOK := restoreLiteral(bin.R); litOK {
			return strings.ToLower(col.Name.Name.O), lit, true
		}
	}
	if col, isCol := bin.R.(*ast.ColumnNameExpr); isCol {
		if lit, litOK := restoreLiteral(bin.L); litOK {
			return strings.ToLower(col.Name.Name.O), lit, true
		}
	}
	return "", "", false
}

func restoreLiteral(expr ast.ExprNode) (string, bool) {
	if _, isCol := expr.(*ast.ColumnNameExpr); isCol {
		return "", false
	}
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(ctx); err != nil {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(sb.String()), "'\""), true
}

func parseLiteral(raw string, t types.SQLType) (types.Value, error) {
	switch t {
	case types.SQLSmallInt, types.SQLInt, types.SQLBigInt:
		return parseIntLiteral(raw)
	case types.SQLFloat:
		return parseFloatLiteral(raw, 32)
	case types.SQLDouble:
		return parseFloatLiteral(raw, 64)
	default:
		return types.FromBytes([]byte(raw)), nil
	}
}

func parseIntLiteral(raw string) (types.Value, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "index value is not an integer", err)
	}
	return types.FromInt(n), nil
}

func parseFloatLiteral(raw string, bits int) (types.Value, error) {
	f, err := strconv.ParseFloat(raw, bits)
	if err != nil {
		return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "index value is not a float", err)
	}
	if bits == 32 {
		return types.FromFloat32(float32(f)), nil
	}
	return types.FromFloat64(f), nil
}

func selectedColumns(fields *ast.FieldList, source *catalog.TableSource) ([]string, error) {
	if fields == nil {
		return nil, nil
	}
	var out []string
	for _, f := range fields.Fields {
		if f.WildCard != nil {
			out = out[:0]
			for _, c := range source.Table.Columns {
				out = append(out, c.Name)
			}
			return out, nil
		}
		colExpr, ok := f.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, errs.New(errs.KindUnsupportedSQL, "point get requires plain column references in the select list")
		}
		name := strings.ToLower(colExpr.Name.Name.O)
		if _, found := source.ColumnByName(name); !found {
			return nil, errs.Newf(errs.KindUnknownColumn, "unknown column %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}
