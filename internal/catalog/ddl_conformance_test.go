package catalog

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"tablekv/internal/errs"
)

// TestBuildTableConformsToRealMySQL cross-checks that CREATE TABLE
// statements BuildTable accepts are also accepted by a real MySQL 8
// server, and vice versa — a parser-fidelity check, not a storage
// engine test.
func TestBuildTableConformsToRealMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()

	cases := []struct {
		name string
		ddl  string
	}{
		{
			name: "inline primary key with nullable varchar",
			ddl:  "CREATE TABLE sbtest1(id INT PRIMARY KEY, k VARCHAR(32))",
		},
		{
			name: "bigint auto increment with unique index",
			ddl:  "CREATE TABLE sbtest2(id BIGINT PRIMARY KEY AUTO_INCREMENT, k INT NOT NULL UNIQUE)",
		},
		{
			name: "float and double columns",
			ddl:  "CREATE TABLE sbtest3(id INT PRIMARY KEY, weight FLOAT, score DOUBLE)",
		},
		{
			name: "table level primary key constraint",
			ddl:  "CREATE TABLE sbtest4(id INT, k VARCHAR(16), PRIMARY KEY(id))",
		},
	}

	for _, tc2 := range cases {
		t.Run(tc2.name, func(t *testing.T) {
			stmt, parseErr := parseCreateTable(tc2.ddl)
			require.NoError(t, parseErr, "our parser rejected %q", tc2.ddl)

			_, buildErr := BuildTable(stmt)
			assert.NoError(t, buildErr, "BuildTable rejected %q", tc2.ddl)

			_, mysqlErr := tc.db.ExecContext(ctx, tc2.ddl)
			assert.NoError(t, mysqlErr, "a real MySQL server rejected %q", tc2.ddl)
		})
	}
}

func parseCreateTable(ddl string) (*ast.CreateTableStmt, error) {
	p := parser.New()
	stmts, _, err := p.Parse(ddl, "", "")
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 {
		return nil, errs.Newf(errs.KindParse, "expected exactly one statement, got %d", len(stmts))
	}
	stmt, ok := stmts[0].(*ast.CreateTableStmt)
	if !ok {
		return nil, errs.New(errs.KindParse, "statement is not a CREATE TABLE")
	}
	return stmt, nil
}

type testMySQLContainer struct {
	container *mysql.MySQLContainer
	dsn       string
	db        *sql.DB
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close DB connection: %v", err)
		}
	})

	return &testMySQLContainer{
		container: mysqlContainer,
		dsn:       dsn,
		db:        db,
	}
}
