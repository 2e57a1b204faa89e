package server

import (
	"context"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"go.uber.org/zap"

	"tablekv/internal/catalog"
	"tablekv/internal/errs"
	"tablekv/internal/kv"
	"tablekv/internal/obslog"
	"tablekv/internal/plan"
	"tablekv/internal/table"
	"tablekv/internal/txn"
	"tablekv/internal/types"
)

// Core wires the catalog, storage backend, and point-get recognizer
// together and hands out per-connection Handlers. It carries no
// socket or framing state — that belongs to the external front end.
type Core struct {
	Catalog    *catalog.Catalog
	Backend    kv.Backend
	Recognizer *plan.Recognizer
	Logger     *zap.Logger
}

func NewCore(backend kv.Backend, logger *zap.Logger) *Core {
	cat := catalog.New()
	return &Core{
		Catalog:    cat,
		Backend:    backend,
		Recognizer: plan.New(cat),
		Logger:     obslog.OrNop(logger),
	}
}

// NewHandler returns a fresh per-connection Handler sharing this
// Core's catalog and backend.
func (c *Core) NewHandler() Handler {
	return &connHandler{core: c, session: newSession()}
}

type connHandler struct {
	core    *Core
	session *session
}

func (h *connHandler) OnInit(_ context.Context, database string) error {
	h.session.database = database
	return nil
}

func (h *connHandler) OnPrepare(_ context.Context, sql string) error {
	_, err := parseSingleStmt(sql)
	return err
}

func (h *connHandler) OnQuery(ctx context.Context, sql string) (*QueryResult, error) {
	stmt, err := parseSingleStmt(sql)
	if err != nil {
		return nil, err
	}

	switch s := stmt.(type) {
	case *ast.CreateTableStmt:
		return h.execCreateTable(s)
	case *ast.CreateIndexStmt:
		return h.execCreateIndex(s)
	case *ast.InsertStmt:
		return h.execInsert(ctx, s)
	case *ast.SelectStmt:
		return h.execSelect(ctx, s)
	default:
		return nil, errs.New(errs.KindUnsupportedSQL, "statement type not implemented")
	}
}

func parseSingleStmt(sql string) (ast.StmtNode, error) {
	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, "parse failed", err)
	}
	if len(stmts) != 1 {
		return nil, errs.Newf(errs.KindPrepareMultiple, "expected exactly one statement, got %d", len(stmts))
	}
	return stmts[0], nil
}

func (h *connHandler) execCreateTable(stmt *ast.CreateTableStmt) (*QueryResult, error) {
	t, err := catalog.BuildTable(stmt)
	if err != nil {
		return nil, err
	}
	if _, err := h.core.Catalog.Add(t); err != nil {
		return nil, err
	}
	h.core.Logger.Info("table created", zap.String("table", t.Name))
	return &QueryResult{}, nil
}

func (h *connHandler) execCreateIndex(stmt *ast.CreateIndexStmt) (*QueryResult, error) {
	name := strings.ToLower(stmt.Table.Name.O)
	source, err := h.session.tableSource(h.core.Catalog, name)
	if err != nil {
		return nil, err
	}
	if _, err := catalog.BuildIndex(source.Table, stmt); err != nil {
		return nil, err
	}
	if _, err := h.core.Catalog.Replace(source.Table); err != nil {
		return nil, err
	}
	h.core.Logger.Info("index created", zap.String("table", name))
	return &QueryResult{}, nil
}

func (h *connHandler) execInsert(ctx context.Context, stmt *ast.InsertStmt) (*QueryResult, error) {
	name, err := tableNameFromRefs(stmt.Table)
	if err != nil {
		return nil, err
	}
	source, err := h.session.tableSource(h.core.Catalog, name)
	if err != nil {
		return nil, err
	}

	var columnNames []string
	if len(stmt.Columns) == 0 {
		for _, c := range source.Table.Columns {
			columnNames = append(columnNames, c.Name)
		}
	} else {
		for _, c := range stmt.Columns {
			columnNames = append(columnNames, strings.ToLower(c.Name.O))
		}
	}

	engine := table.New(source)
	for _, row := range stmt.Lists {
		if len(row) != len(columnNames) {
			return nil, errs.Newf(errs.KindColumnMismatch, "%d values for %d columns", len(row), len(columnNames))
		}
		values := make([]table.ColumnValue, 0, len(row))
		for i, expr := range row {
			colName := columnNames[i]
			col, ok := source.ColumnByName(colName)
			if !ok {
				return nil, errs.Newf(errs.KindUnknownColumn, "unknown column %q", colName)
			}
			v, err := parseLiteralValue(expr, col.Type)
			if err != nil {
				return nil, err
			}
			values = append(values, table.ColumnValue{Column: colName, Value: v})
		}
		txc := txn.AutoCommit{Backend: h.core.Backend}
		if _, err := engine.AddRecord(ctx, txc, values); err != nil {
			return nil, err
		}
	}
	return &QueryResult{}, nil
}

func (h *connHandler) execSelect(ctx context.Context, stmt *ast.SelectStmt) (*QueryResult, error) {
	p, err := h.core.Recognizer.Recognize(stmt, h.session.database)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.New(errs.KindUnsupportedSQL, "query does not qualify as a point get")
	}

	source, err := h.session.tableSource(h.core.Catalog, p.Table)
	if err != nil {
		return nil, err
	}
	engine := table.New(source)
	txc := txn.AutoCommit{Backend: h.core.Backend}

	var values []types.Value
	if p.Index.Primary {
		values, err = engine.ReadRecordByIndex(ctx, txc, p.Index, p.SelectColumns, p.IndexValue)
	} else {
		var handle []byte
		handle, err = engine.ReadHandleFromIndex(ctx, txc, p.Index, p.IndexValue)
		if err == nil && handle != nil {
			values, err = engine.ReadRecordByHandle(ctx, txc, p.SelectColumns, handle)
		}
	}
	if err != nil {
		return nil, err
	}

	cols := make([]ColumnMeta, len(p.SelectColumns))
	for i, name := range p.SelectColumns {
		c, _ := source.ColumnByName(name)
		wt := WireType(0)
		if c != nil {
			wt = WireTypeFor(c.Type)
		}
		cols[i] = ColumnMeta{Name: name, WireType: wt}
	}

	var rows [][]types.Value
	if values != nil {
		rows = [][]types.Value{values}
	}
	return &QueryResult{Columns: cols, Rows: rows}, nil
}

func tableNameFromRefs(refs *ast.TableRefsClause) (string, error) {
	if refs == nil || refs.TableRefs == nil {
		return "", errs.New(errs.KindUnsupportedSQL, "missing table reference")
	}
	join := refs.TableRefs
	if join.Right != nil {
		return "", errs.New(errs.KindUnsupportedSQL, "joins are not supported")
	}
	src, ok := join.Left.(*ast.TableSource)
	if !ok {
		return "", errs.New(errs.KindUnsupportedSQL, "unsupported table reference")
	}
	tn, ok := src.Source.(*ast.TableName)
	if !ok {
		return "", errs.New(errs.KindUnsupportedSQL, "unsupported table reference")
	}
	return strings.ToLower(tn.Name.O), nil
}
