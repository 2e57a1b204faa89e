package catalog

import (
	"testing"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"github.com/stretchr/testify/require"

	"tablekv/internal/types"
)

func parseOne(t *testing.T, sql string) ast.StmtNode {
	t.Helper()
	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestBuildTableInlinePrimaryKey(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))").(*ast.CreateTableStmt)
	table, err := BuildTable(stmt)
	require.NoError(t, err)

	require.Equal(t, "sbtest", table.Name)
	require.Len(t, table.Columns, 2)
	require.True(t, table.PKIsHandle)

	id := table.ColumnByName("id")
	require.NotNil(t, id)
	require.Equal(t, types.SQLInt, id.Type)
	require.Equal(t, RolePrimary, id.Role)
	require.False(t, id.Nullable)

	k := table.ColumnByName("k")
	require.NotNil(t, k)
	require.Equal(t, types.SQLVarchar, k.Type)
	require.True(t, k.Nullable)

	pk := table.PrimaryIndex()
	require.NotNil(t, pk)
	require.True(t, pk.Primary)
	col, single := pk.SingleColumn()
	require.True(t, single)
	require.Equal(t, "id", col.Name)
}

func TestBuildTableTableLevelConstraint(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE t(a INT, b INT, PRIMARY KEY(a, b))").(*ast.CreateTableStmt)
	table, err := BuildTable(stmt)
	require.NoError(t, err)
	require.False(t, table.PKIsHandle)
	pk := table.PrimaryIndex()
	require.NotNil(t, pk)
	require.Len(t, pk.Columns, 2)
}

func TestBuildTableAutoIncrement(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE t(id INT AUTO_INCREMENT PRIMARY KEY, v INT)").(*ast.CreateTableStmt)
	table, err := BuildTable(stmt)
	require.NoError(t, err)
	id := table.ColumnByName("id")
	require.NotNil(t, id.Generator)

	first := id.Generator.Generate()
	second := id.Generator.Generate()
	require.Equal(t, int64(1), first.Int)
	require.Equal(t, int64(2), second.Int)
}

func TestBuildTableDefaultConstant(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE t(id INT PRIMARY KEY, v INT DEFAULT 7)").(*ast.CreateTableStmt)
	table, err := BuildTable(stmt)
	require.NoError(t, err)
	v := table.ColumnByName("v")
	require.NotNil(t, v.Generator)
	require.Equal(t, int64(7), v.Generator.Generate().Int)
}

func TestBuildTableUnknownColumnInConstraint(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE t(a INT, PRIMARY KEY(missing))").(*ast.CreateTableStmt)
	_, err := BuildTable(stmt)
	require.Error(t, err)
}

func TestBuildIndexRejectsDuplicateColumnSet(t *testing.T) {
	stmt := parseOne(t, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))").(*ast.CreateTableStmt)
	table, err := BuildTable(stmt)
	require.NoError(t, err)

	idxStmt := parseOne(t, "CREATE UNIQUE INDEX k_idx ON sbtest(k)").(*ast.CreateIndexStmt)
	idx, err := BuildIndex(table, idxStmt)
	require.NoError(t, err)
	require.True(t, idx.Unique)
	col := table.ColumnByName("k")
	require.Equal(t, RoleUnique, col.Role)

	_, err = BuildIndex(table, idxStmt)
	require.Error(t, err)
}

func TestCatalogAddAndReplace(t *testing.T) {
	cat := New()
	stmt := parseOne(t, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))").(*ast.CreateTableStmt)
	table, err := BuildTable(stmt)
	require.NoError(t, err)

	ts, err := cat.Add(table)
	require.NoError(t, err)
	require.True(t, ts.Valid())

	_, err = cat.Add(table)
	require.Error(t, err)

	idxStmt := parseOne(t, "CREATE UNIQUE INDEX k_idx ON sbtest(k)").(*ast.CreateIndexStmt)
	_, err = BuildIndex(ts.Table, idxStmt)
	require.NoError(t, err)

	ts2, err := cat.Replace(ts.Table)
	require.NoError(t, err)
	require.False(t, ts.Valid())
	require.True(t, ts2.Valid())

	got, err := cat.Get("sbtest")
	require.NoError(t, err)
	require.Same(t, ts2, got)

	_, ok := ts2.UniqueIndexByColumn("k")
	require.True(t, ok)
}
