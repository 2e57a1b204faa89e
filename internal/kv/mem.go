package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// memOp is one write applied to a key's version stack.
type memOp struct {
	ts      uint64
	value   []byte
	deleted bool
}

// MemBackend is a simplified snapshot-isolation MVCC store: a map from
// key to a version stack, with Scan sorting its results by key. There
// is no commit-time conflict
// detection — commits unconditionally append a new version, giving
// last-writer-wins semantics under concurrent writers. This matches
// the behavior being modeled and is documented, not papered over.
type MemBackend struct {
	mu     sync.Mutex
	stacks map[string][]memOp
	clock  atomic.Uint64
}

func NewMemBackend() *MemBackend {
	return &MemBackend{stacks: make(map[string][]memOp)}
}

func (b *MemBackend) Close() error { return nil }

// Get returns the newest committed value for key, ignoring any
// in-flight transaction.
func (b *MemBackend) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stack := b.stacks[string(key)]
	if len(stack) == 0 {
		return nil, false, nil
	}
	last := stack[len(stack)-1]
	if last.deleted {
		return nil, false, nil
	}
	return last.value, true, nil
}

func (b *MemBackend) Begin(_ context.Context, opts TxnOptions) (Transaction, error) {
	return &MemTransaction{
		backend:    b,
		startTS:    b.clock.Load(),
		pessimistic: opts.Pessimistic,
		writes:     make(map[string]memOp),
	}, nil
}

func (b *MemBackend) versionAt(key string, ts uint64) (memOp, bool) {
	stack := b.stacks[key]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].ts <= ts {
			return stack[i], true
		}
	}
	return memOp{}, false
}

// MemTransaction stages writes in a single-owner cache and only
// touches the backend's shared version stacks on Commit.
type MemTransaction struct {
	backend     *MemBackend
	startTS     uint64
	pessimistic bool
	writes      map[string]memOp
}

func (t *MemTransaction) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	if op, ok := t.writes[string(key)]; ok {
		if op.deleted {
			return nil, false, nil
		}
		return op.value, true, nil
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	op, ok := t.backend.versionAt(string(key), t.startTS)
	if !ok || op.deleted {
		return nil, false, nil
	}
	return op.value, true, nil
}

func (t *MemTransaction) Put(_ context.Context, key, value []byte) error {
	t.writes[string(key)] = memOp{value: value}
	return nil
}

func (t *MemTransaction) Delete(_ context.Context, key []byte) error {
	t.writes[string(key)] = memOp{deleted: true}
	return nil
}

func (t *MemTransaction) Scan(_ context.Context, start, end []byte) ([]KV, error) {
	t.backend.mu.Lock()
	keys := make([]string, 0, len(t.backend.stacks))
	for k := range t.backend.stacks {
		keys = append(keys, k)
	}
	t.backend.mu.Unlock()

	seen := make(map[string]bool)
	var result []KV
	add := func(key string, op memOp, deleted bool) {
		if seen[key] {
			return
		}
		seen[key] = true
		if deleted {
			return
		}
		result = append(result, KV{Key: []byte(key), Value: op.value})
	}

	for k := range t.writes {
		if inRange(k, start, end) {
			add(k, t.writes[k], t.writes[k].deleted)
		}
	}

	t.backend.mu.Lock()
	for _, k := range keys {
		if !inRange(k, start, end) {
			continue
		}
		if op, ok := t.backend.versionAt(k, t.startTS); ok {
			add(k, op, op.deleted)
		}
	}
	t.backend.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return bytes.Compare(result[i].Key, result[j].Key) < 0 })
	return result, nil
}

func inRange(key string, start, end []byte) bool {
	k := []byte(key)
	if start != nil && bytes.Compare(k, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(k, end) >= 0 {
		return false
	}
	return true
}

func (t *MemTransaction) Commit(_ context.Context) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	ts := t.backend.clock.Add(1)
	for k, op := range t.writes {
		op.ts = ts
		t.backend.stacks[k] = append(t.backend.stacks[k], op)
	}
	return nil
}

func (t *MemTransaction) StartTS() uint64 { return t.startTS }
