package server

import (
	"context"
	"testing"

	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablekv/internal/errs"
	"tablekv/internal/kv"
)

func newTestHandler() Handler {
	core := NewCore(kv.NewMemBackend(), nil)
	h := core.NewHandler()
	_ = h.OnInit(context.Background(), "test")
	return h
}

func TestCreateInsertPointGet(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler()

	_, err := h.OnQuery(ctx, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))")
	require.NoError(t, err)

	_, err = h.OnQuery(ctx, "INSERT INTO sbtest (id, k) VALUES (1, 'foo')")
	require.NoError(t, err)

	res, err := h.OnQuery(ctx, "SELECT k FROM sbtest WHERE id = 1")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Len(t, res.Rows[0], 1)
	assert.Equal(t, "foo", res.Rows[0][0].String())
}

func TestDuplicatePrimaryKeyFails(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler()

	_, err := h.OnQuery(ctx, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))")
	require.NoError(t, err)
	_, err = h.OnQuery(ctx, "INSERT INTO sbtest (id, k) VALUES (1, 'foo')")
	require.NoError(t, err)

	_, err = h.OnQuery(ctx, "INSERT INTO sbtest (id, k) VALUES (1, 'foo')")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDuplicateKey))
}

func TestAutoIncrementAcrossInserts(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler()

	_, err := h.OnQuery(ctx, "CREATE TABLE t(id INT AUTO_INCREMENT PRIMARY KEY, v INT)")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = h.OnQuery(ctx, "INSERT INTO t(v) VALUES (10)")
		require.NoError(t, err)
	}

	res, err := h.OnQuery(ctx, "SELECT id FROM t WHERE id = 2")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2", res.Rows[0][0].String())

	res, err = h.OnQuery(ctx, "SELECT id FROM t WHERE id = 3")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "3", res.Rows[0][0].String())
}

func TestUnknownColumnInWhereFails(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler()

	_, err := h.OnQuery(ctx, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))")
	require.NoError(t, err)

	_, err = h.OnQuery(ctx, "SELECT k FROM sbtest WHERE ghost = 1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUnknownColumn))
}

func TestCreateIndexThenPointGetBySecondaryIndex(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler()

	_, err := h.OnQuery(ctx, "CREATE TABLE sbtest(id INT PRIMARY KEY, k VARCHAR(32))")
	require.NoError(t, err)
	_, err = h.OnQuery(ctx, "CREATE UNIQUE INDEX k_idx ON sbtest(k)")
	require.NoError(t, err)
	_, err = h.OnQuery(ctx, "INSERT INTO sbtest (id, k) VALUES (1, 'foo')")
	require.NoError(t, err)

	res, err := h.OnQuery(ctx, "SELECT id FROM sbtest WHERE k = 'foo'")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0][0].String())
}

func TestPrepareRejectsMultipleStatements(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler()

	err := h.OnPrepare(ctx, "SELECT 1; SELECT 2;")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPrepareMultiple))
}
