package catalog

import (
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"

	"tablekv/internal/errs"
	"tablekv/internal/types"
)

// mapColumnType normalizes a TiDB-parsed column type string the same
// way the schema tooling's NormalizeDataType does: substring match
// against the lowercase type name, most specific first.
func mapColumnType(raw string) (types.SQLType, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "smallint"):
		return types.SQLSmallInt, nil
	case strings.Contains(lower, "bigint"):
		return types.SQLBigInt, nil
	case strings.Contains(lower, "int"):
		return types.SQLInt, nil
	case strings.Contains(lower, "double"):
		return types.SQLDouble, nil
	case strings.Contains(lower, "float"):
		return types.SQLFloat, nil
	case strings.Contains(lower, "varchar"):
		return types.SQLVarchar, nil
	case strings.Contains(lower, "char"):
		return types.SQLChar, nil
	case strings.Contains(lower, "text"), strings.Contains(lower, "blob"):
		return types.SQLText, nil
	case strings.Contains(lower, "datetime"), strings.Contains(lower, "timestamp"), strings.Contains(lower, "date"):
		return types.SQLDate, nil
	case strings.Contains(lower, "time"):
		return types.SQLTime, nil
	default:
		return 0, errs.Newf(errs.KindUnsupportedDDL, "unsupported column type %q", raw)
	}
}

func exprToString(expr ast.ExprNode) (string, bool) {
	if expr == nil {
		return "", false
	}
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(ctx); err != nil {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(sb.String()), "'\""), true
}

func parseDefaultLiteral(raw string, t types.SQLType) (types.Value, error) {
	switch t {
	case types.SQLSmallInt, types.SQLInt, types.SQLBigInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "default value is not an integer", err)
		}
		return types.FromInt(n), nil
	case types.SQLFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "default value is not a float", err)
		}
		return types.FromFloat32(float32(f)), nil
	case types.SQLDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "default value is not a double", err)
		}
		return types.FromFloat64(f), nil
	case types.SQLChar, types.SQLVarchar, types.SQLText, types.SQLString:
		return types.FromBytes([]byte(raw)), nil
	default:
		return types.Value{}, errs.Newf(errs.KindUnsupportedDDL, "unsupported default value for %s", t)
	}
}

// pendingConstraint records a column name set bound to a role, to be
// applied to the table's columns and turned into an Index after every
// column has been built.
type pendingConstraint struct {
	name    string
	columns []string
	primary bool
	unique  bool
}

// BuildTable constructs a Table from a parsed CREATE TABLE statement,
// assigning column and index ids from scratch.
func BuildTable(stmt *ast.CreateTableStmt) (*Table, error) {
	table := &Table{Name: strings.ToLower(stmt.Table.Name.O)}

	var constraints []pendingConstraint
	for _, colDef := range stmt.Cols {
		sqlType, err := mapColumnType(colDef.Tp.String())
		if err != nil {
			return nil, err
		}
		table.MaxColumnID++
		col := &Column{
			ID:       table.MaxColumnID,
			Name:     strings.ToLower(colDef.Name.Name.O),
			Type:     sqlType,
			Offset:   len(table.Columns),
			Nullable: true,
			Role:     RoleNone,
		}

		for _, opt := range colDef.Options {
			switch opt.Tp {
			case ast.ColumnOptionNotNull:
				col.Nullable = false
			case ast.ColumnOptionNull:
				col.Nullable = true
			case ast.ColumnOptionPrimaryKey:
				col.Nullable = false
				constraints = append(constraints, pendingConstraint{columns: []string{col.Name}, primary: true})
			case ast.ColumnOptionUniqKey:
				constraints = append(constraints, pendingConstraint{columns: []string{col.Name}, unique: true})
			case ast.ColumnOptionAutoIncrement:
				col.Generator = AutoIncrement{Counter: &table.MaxRowID}
			case ast.ColumnOptionDefaultValue:
				raw, ok := exprToString(opt.Expr)
				if !ok {
					continue
				}
				v, err := parseDefaultLiteral(raw, sqlType)
				if err != nil {
					return nil, err
				}
				col.Generator = DefaultConstant{Value: v}
			}
		}
		table.Columns = append(table.Columns, col)
	}

	for _, c := range stmt.Constraints {
		cols := make([]string, 0, len(c.Keys))
		for _, key := range c.Keys {
			cols = append(cols, strings.ToLower(key.Column.Name.O))
		}
		switch c.Tp {
		case ast.ConstraintPrimaryKey:
			constraints = append(constraints, pendingConstraint{name: "PRIMARY", columns: cols, primary: true})
		case ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
			constraints = append(constraints, pendingConstraint{name: c.Name, columns: cols, unique: true})
		}
	}

	for _, pc := range constraints {
		if err := applyConstraint(table, pc); err != nil {
			return nil, err
		}
	}

	if pk := table.PrimaryIndex(); pk != nil {
		if _, single := pk.SingleColumn(); single {
			table.PKIsHandle = true
		}
	}
	return table, nil
}

func applyConstraint(table *Table, pc pendingConstraint) error {
	idxCols := make([]IndexColumn, 0, len(pc.columns))
	for _, name := range pc.columns {
		col := table.ColumnByName(name)
		if col == nil {
			return errs.Newf(errs.KindUnknownColumn, "constraint references unknown column %q", name)
		}
		switch {
		case pc.primary:
			col.Role = RolePrimary
			col.Nullable = false
		case len(pc.columns) > 1:
			col.Role = RoleMultipleUnique
		default:
			col.Role = RoleUnique
		}
		idxCols = append(idxCols, IndexColumn{Name: col.Name, Offset: col.Offset})
	}

	name := pc.name
	if name == "" {
		if pc.primary {
			name = "PRIMARY"
		} else {
			name = strings.Join(pc.columns, "_") + "_idx"
		}
	}

	table.MaxIndexID++
	table.Indexes = append(table.Indexes, &Index{
		ID:        table.MaxIndexID,
		Name:      strings.ToLower(name),
		TableName: table.Name,
		Columns:   idxCols,
		Primary:   pc.primary,
		Unique:    pc.primary || pc.unique,
	})
	return nil
}

// BuildIndex constructs an additional Index for an existing table from
// a parsed CREATE INDEX statement, continuing the table's index id
// sequence. It fails with IndexExists if an index already covers the
// exact same ordered column set.
func BuildIndex(table *Table, stmt *ast.CreateIndexStmt) (*Index, error) {
	cols := make([]IndexColumn, 0, len(stmt.IndexPartSpecifications))
	names := make([]string, 0, len(stmt.IndexPartSpecifications))
	for _, spec := range stmt.IndexPartSpecifications {
		name := strings.ToLower(spec.Column.Name.O)
		col := table.ColumnByName(name)
		if col == nil {
			return nil, errs.Newf(errs.KindUnknownColumn, "index references unknown column %q", name)
		}
		cols = append(cols, IndexColumn{Name: col.Name, Offset: col.Offset})
		names = append(names, name)
	}

	for _, existing := range table.Indexes {
		if sameColumnSet(existing.Columns, cols) {
			return nil, errs.Newf(errs.KindIndexExists, "an index already covers columns (%s)", strings.Join(names, ", "))
		}
	}

	unique := stmt.KeyType == ast.IndexKeyTypeUnique
	table.MaxIndexID++
	idx := &Index{
		ID:        table.MaxIndexID,
		Name:      strings.ToLower(stmt.IndexName),
		TableName: table.Name,
		Columns:   cols,
		Unique:    unique,
	}
	table.Indexes = append(table.Indexes, idx)

	for _, name := range names {
		if col := table.ColumnByName(name); col != nil && col.Role == RoleNone {
			if unique && len(cols) == 1 {
				col.Role = RoleUnique
			} else {
				col.Role = RoleIndex
			}
		}
	}
	return idx, nil
}

func sameColumnSet(a, b []IndexColumn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
