// Package table builds record and index keys, reads and writes rows,
// enforces uniqueness, and fills in default/auto-increment values —
// the component that ties the catalog, row codec, value codec, and
// transaction context together into table-level operations.
package table

import (
	"context"

	"tablekv/internal/catalog"
	"tablekv/internal/errs"
	"tablekv/internal/row"
	"tablekv/internal/txn"
	"tablekv/internal/types"
)

// handleKeySizeHint preallocates key buffers; it is a performance-only
// heuristic and must not affect correctness for longer keys.
const handleKeySizeHint = 64

// ColumnValue binds a table column name to a supplied value.
type ColumnValue struct {
	Column string
	Value  types.Value
}

// Engine operates against one table's current schema view.
type Engine struct {
	Source *catalog.TableSource
}

func New(source *catalog.TableSource) *Engine {
	return &Engine{Source: source}
}

func recordKeyPrefix(tableID uint64, out []byte) []byte {
	out = append(out, 't')
	out = appendUint64LE(out, tableID)
	return append(out, 'r')
}

func indexKeyPrefix(tableID uint64, out []byte) []byte {
	out = append(out, 't')
	out = appendUint64LE(out, tableID)
	return append(out, 'i')
}

func appendUint64LE(out []byte, v uint64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return append(out, b[:]...)
}

// HandleFromRecordKey returns the bytes after 't' || table_id || 'r',
// the row's internal identity.
func HandleFromRecordKey(key []byte) []byte {
	if len(key) < 10 {
		return nil
	}
	return key[10:]
}

func (e *Engine) table() *catalog.Table { return e.Source.Table }

// AddRecord inserts one row: it fills defaults/auto-increment values
// for columns missing from values, builds the primary record key and
// every secondary index key, and writes them all through ctx.
func (e *Engine) AddRecord(ctx context.Context, txc txn.Context, values []ColumnValue) ([]byte, error) {
	t := e.table()
	pk := t.PrimaryIndex()
	if pk == nil {
		return nil, errs.New(errs.KindNoIndex, "table has no primary index")
	}

	supplied := make(map[string]types.Value, len(values))
	for _, cv := range values {
		supplied[cv.Column] = cv.Value
	}

	resolved := make([]types.Value, len(t.Columns))
	for _, c := range t.Columns {
		if v, ok := supplied[c.Name]; ok {
			resolved[c.Offset] = v
			continue
		}
		if c.Generator != nil {
			resolved[c.Offset] = c.Generator.Generate()
			continue
		}
		return nil, errs.Newf(errs.KindMissingColumn, "missing value for column %q", c.Name)
	}

	recordKey := make([]byte, 0, handleKeySizeHint)
	recordKey = recordKeyPrefix(t.ID, recordKey)
	var err error
	for _, ic := range pk.Columns {
		col := t.ColumnByName(ic.Name)
		recordKey, err = types.EncodeComparable(resolved[col.Offset], col.Type, recordKey)
		if err != nil {
			return nil, err
		}
	}

	relyOnCommit, err := txc.CheckConstraints(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	if !relyOnCommit {
		if _, found, err := txc.Get(ctx, recordKey); err != nil {
			return nil, err
		} else if found {
			return nil, errs.Newf(errs.KindDuplicateKey, "primary key already exists for table %q", t.Name)
		}
	}

	cols := make([]row.Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		v := resolved[c.Offset]
		if v.IsNull() {
			cols = append(cols, row.Column{ID: c.ID, Payload: nil})
			continue
		}
		payload, err := types.EncodePlain(v, c.Type, nil)
		if err != nil {
			return nil, err
		}
		cols = append(cols, row.Column{ID: c.ID, Payload: payload})
	}

	handle := HandleFromRecordKey(recordKey)

	for _, idx := range t.Indexes {
		if idx.Primary {
			continue
		}
		indexKey := make([]byte, 0, handleKeySizeHint)
		indexKey = indexKeyPrefix(t.ID, indexKey)
		for _, ic := range idx.Columns {
			col := t.ColumnByName(ic.Name)
			indexKey, err = types.EncodeComparable(resolved[col.Offset], col.Type, indexKey)
			if err != nil {
				return nil, err
			}
		}
		if err := txc.Write(ctx, indexKey, handle); err != nil {
			return nil, err
		}
	}

	rowBytes := row.Encode(cols)
	if err := txc.Write(ctx, recordKey, rowBytes); err != nil {
		return nil, err
	}
	return handle, nil
}

// ReadRecordByIndex resolves a single-column primary index equality
// into a decoded, projected row. index must be primary and backed by a
// table whose primary key alone forms the row handle. Absent rows
// yield an empty projection, not an error.
func (e *Engine) ReadRecordByIndex(ctx context.Context, txc txn.Context, index *catalog.Index, projection []string, keyValue types.Value) ([]types.Value, error) {
	if !index.Primary || !e.table().PKIsHandle {
		return nil, errs.New(errs.KindNoIndex, "read_record_by_index requires a single-column primary index")
	}
	col, ok := index.SingleColumn()
	if !ok {
		return nil, errs.New(errs.KindNoIndex, "primary index is not single-column")
	}
	pkCol := e.table().ColumnByName(col.Name)

	recordKey := make([]byte, 0, handleKeySizeHint)
	recordKey = recordKeyPrefix(e.table().ID, recordKey)
	recordKey, err := types.EncodeComparable(keyValue, pkCol.Type, recordKey)
	if err != nil {
		return nil, err
	}

	return e.getAndProject(ctx, txc, recordKey, projection)
}

// ReadRecordByHandle decodes and projects the row stored under handle,
// the identity ReadHandleFromIndex resolves a secondary unique index
// equality to.
func (e *Engine) ReadRecordByHandle(ctx context.Context, txc txn.Context, projection []string, handle []byte) ([]types.Value, error) {
	recordKey := make([]byte, 0, handleKeySizeHint)
	recordKey = recordKeyPrefix(e.table().ID, recordKey)
	recordKey = append(recordKey, handle...)
	return e.getAndProject(ctx, txc, recordKey, projection)
}

func (e *Engine) getAndProject(ctx context.Context, txc txn.Context, recordKey []byte, projection []string) ([]types.Value, error) {
	data, found, err := txc.Get(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	dec, err := row.Decode(data)
	if err != nil {
		return nil, err
	}

	out := make([]types.Value, len(projection))
	for i, name := range projection {
		c := e.table().ColumnByName(name)
		if c == nil {
			return nil, errs.Newf(errs.KindUnknownColumn, "unknown column %q", name)
		}
		payload, present, null := dec.Get(c.ID)
		if !present || null {
			out[i] = types.Null()
			continue
		}
		v, _, err := types.DecodePlain(payload, c.Type)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadHandleFromIndex resolves an equality against a non-primary
// unique index to the row handle stored there, or nil if absent.
func (e *Engine) ReadHandleFromIndex(ctx context.Context, txc txn.Context, index *catalog.Index, keyValue types.Value) ([]byte, error) {
	col, ok := index.SingleColumn()
	if !ok {
		return nil, errs.New(errs.KindNoIndex, "read_handle_from_index requires a single-column index")
	}
	idxCol := e.table().ColumnByName(col.Name)

	indexKey := make([]byte, 0, handleKeySizeHint)
	indexKey = indexKeyPrefix(e.table().ID, indexKey)
	indexKey, err := types.EncodeComparable(keyValue, idxCol.Type, indexKey)
	if err != nil {
		return nil, err
	}

	handle, found, err := txc.Get(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return handle, nil
}
