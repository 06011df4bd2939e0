package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	logx "postbot/pkg/logx"
)

// Doc is a typed JSON snapshot held in memory and written through to a Store.
//
// The snapshot is read lazily on first use. A missing snapshot starts empty;
// an unreadable or corrupt one is logged and also starts empty. Every Update
// runs under the same mutex as the save that follows it, so concurrent
// writers never interleave read-modify-write cycles.
type Doc[T any] struct {
	store Store
	key   string
	empty func() T
	log   logx.Logger

	mu     sync.Mutex
	loaded bool
	val    T
}

// NewDoc binds key in store. empty builds the zero snapshot (for example an
// initialized map).
func NewDoc[T any](store Store, key string, empty func() T, log logx.Logger) *Doc[T] {
	if empty == nil {
		empty = func() T {
			var z T
			return z
		}
	}
	return &Doc[T]{
		store: store,
		key:   key,
		empty: empty,
		log:   log.With(logx.String("key", key)),
	}
}

func (d *Doc[T]) ensureLocked(ctx context.Context) {
	if d.loaded {
		return
	}
	d.loaded = true
	d.val = d.empty()

	b, err := d.store.Load(ctx, d.key)
	switch {
	case errors.Is(err, ErrNotFound):
		return
	case err != nil:
		d.log.Warn("snapshot read failed; starting empty", logx.Err(err))
		return
	}
	v := d.empty()
	if err := json.Unmarshal(b, &v); err != nil {
		d.log.Warn("snapshot corrupt; starting empty", logx.Err(err))
		return
	}
	d.val = v
}

// View calls fn with the current snapshot. fn must not retain or mutate it.
func (d *Doc[T]) View(ctx context.Context, fn func(v T)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLocked(ctx)
	fn(d.val)
}

// Update lets fn mutate the snapshot in place and saves it when fn reports a
// change. On a failed save the in-memory change is kept and the error is
// logged and returned.
func (d *Doc[T]) Update(ctx context.Context, fn func(v *T) bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLocked(ctx)
	if !fn(&d.val) {
		return nil
	}
	b, err := json.Marshal(d.val)
	if err == nil {
		err = d.store.Save(ctx, d.key, b)
	}
	if err != nil {
		d.log.Error("snapshot write failed", logx.Err(err))
		return err
	}
	return nil
}
