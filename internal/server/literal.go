package server

import (
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"

	"tablekv/internal/errs"
	"tablekv/internal/types"
)

// restoreLiteral renders a literal expression node to its textual form,
// the same approach internal/catalog uses for DEFAULT clauses.
func restoreLiteral(expr ast.ExprNode) (string, bool) {
	var sb strings.Builder
	ctx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(ctx); err != nil {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(sb.String()), "'\""), true
}

func parseLiteralValue(expr ast.ExprNode, t types.SQLType) (types.Value, error) {
	if _, isDefault := expr.(*ast.DefaultExpr); isDefault {
		return types.Value{}, errs.New(errs.KindUnsupportedSQL, "DEFAULT in VALUES is not supported")
	}
	raw, ok := restoreLiteral(expr)
	if !ok {
		return types.Value{}, errs.New(errs.KindUnsupportedSQL, "VALUES entries must be literals")
	}
	if strings.EqualFold(raw, "NULL") {
		return types.Null(), nil
	}
	switch t {
	case types.SQLSmallInt, types.SQLInt, types.SQLBigInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "value is not an integer", err)
		}
		return types.FromInt(n), nil
	case types.SQLFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "value is not a float", err)
		}
		return types.FromFloat32(float32(f)), nil
	case types.SQLDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Value{}, errs.Wrap(errs.KindTypeMismatch, "value is not a float", err)
		}
		return types.FromFloat64(f), nil
	default:
		return types.FromBytes([]byte(raw)), nil
	}
}
