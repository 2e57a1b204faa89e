// Package txn exposes the three transaction-context modes — auto-commit,
// optimistic, and pessimistic — behind one Context interface so the
// table engine does not need to know which backend it is driving.
package txn

import (
	"context"

	"tablekv/internal/kv"
)

// Context is what the table engine drives. CheckConstraints reports
// whether the caller must perform an eager existence probe before an
// insert (false) or may rely on commit-time conflict handling (true).
type Context interface {
	CheckConstraints(ctx context.Context, key []byte) (bool, error)
	Write(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Commit(ctx context.Context) error
}

// AutoCommit opens a fresh backend transaction for every write and
// commits it immediately; CheckConstraints always reports false so the
// engine performs an eager probe get before inserting.
type AutoCommit struct {
	Backend kv.Backend
}

func (a AutoCommit) CheckConstraints(context.Context, []byte) (bool, error) { return false, nil }

func (a AutoCommit) Write(ctx context.Context, key, value []byte) error {
	t, err := a.Backend.Begin(ctx, kv.TxnOptions{})
	if err != nil {
		return err
	}
	if err := t.Put(ctx, key, value); err != nil {
		return err
	}
	return t.Commit(ctx)
}

func (a AutoCommit) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return a.Backend.Get(ctx, key)
}

func (a AutoCommit) Commit(context.Context) error { return nil }

// Optimistic wraps a single backend transaction opened in optimistic
// mode. CheckConstraints always reports true: the caller is assumed to
// have pre-checked, or to accept failing at commit time.
type Optimistic struct {
	Txn kv.Transaction
}

func NewOptimistic(ctx context.Context, backend kv.Backend) (*Optimistic, error) {
	t, err := backend.Begin(ctx, kv.TxnOptions{Pessimistic: false})
	if err != nil {
		return nil, err
	}
	return &Optimistic{Txn: t}, nil
}

func (o *Optimistic) CheckConstraints(context.Context, []byte) (bool, error) { return true, nil }
func (o *Optimistic) Write(ctx context.Context, key, value []byte) error     { return o.Txn.Put(ctx, key, value) }
func (o *Optimistic) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return o.Txn.Get(ctx, key)
}
func (o *Optimistic) Commit(ctx context.Context) error { return o.Txn.Commit(ctx) }

// Pessimistic is identical to Optimistic except the underlying backend
// transaction is opened in pessimistic lock mode.
type Pessimistic struct {
	Txn kv.Transaction
}

func NewPessimistic(ctx context.Context, backend kv.Backend) (*Pessimistic, error) {
	t, err := backend.Begin(ctx, kv.TxnOptions{Pessimistic: true})
	if err != nil {
		return nil, err
	}
	return &Pessimistic{Txn: t}, nil
}

func (p *Pessimistic) CheckConstraints(context.Context, []byte) (bool, error) { return true, nil }
func (p *Pessimistic) Write(ctx context.Context, key, value []byte) error     { return p.Txn.Put(ctx, key, value) }
func (p *Pessimistic) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	return p.Txn.Get(ctx, key)
}
func (p *Pessimistic) Commit(ctx context.Context) error { return p.Txn.Commit(ctx) }
