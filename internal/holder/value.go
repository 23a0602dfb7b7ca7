package holder

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/store"
)

// Value holds one absolute column value.
//
// Thread-safety: all methods are safe for concurrent use. The data source is
// called without the holder's lock held.
type Value[T any] struct {
	column string
	codec  Codec[T]

	mu       sync.RWMutex
	value    T
	present  bool
	fetched  bool
	modified bool
	source   DataSource
}

// NewValue creates an unfetched value holder for column.
func NewValue[T any](column string, codec Codec[T]) *Value[T] {
	return &Value[T]{column: column, codec: codec}
}

func (h *Value[T]) Column() string { return h.column }

func (h *Value[T]) Kind() Kind { return KindValue }

func (h *Value[T]) Fetched() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fetched
}

func (h *Value[T]) Modified() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.modified
}

// Get returns the value, pulling it from the data source first if the
// holder is unfetched and a source is attached. ok is false when the value
// is absent.
func (h *Value[T]) Get(ctx context.Context) (v T, ok bool, err error) {
	return h.get(ctx, h)
}

func (h *Value[T]) get(ctx context.Context, self Holder) (v T, ok bool, err error) {
	h.mu.RLock()
	fetched, src := h.fetched, h.source
	h.mu.RUnlock()

	if !fetched && src != nil {
		if err := src.Pull(ctx, self); err != nil {
			var zero T
			return zero, false, fmt.Errorf("pull %s: %w", h.column, err)
		}
	}

	v, ok = h.Value()
	return v, ok, nil
}

// Value returns the cached value without ever pulling.
func (h *Value[T]) Value() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value, h.present
}

// Update sets the cached value from a freshly read row. It neither marks
// the holder dirty nor notifies the data source.
func (h *Value[T]) Update(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = v
	h.present = true
	h.fetched = true
}

// UpdateAbsent records that the remote value is NULL.
func (h *Value[T]) UpdateAbsent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	var zero T
	h.value = zero
	h.present = false
	h.fetched = true
}

// Set replaces the value, marks the holder dirty and notifies the source.
func (h *Value[T]) Set(v T) {
	h.mu.Lock()
	h.value = v
	h.present = true
	h.fetched = true
	h.modified = true
	src := h.source
	h.mu.Unlock()

	if src != nil {
		src.Changed(h)
	}
}

// Unset replaces the value with NULL, marks the holder dirty and notifies
// the source.
func (h *Value[T]) Unset() {
	h.mu.Lock()
	var zero T
	h.value = zero
	h.present = false
	h.fetched = true
	h.modified = true
	src := h.source
	h.mu.Unlock()

	if src != nil {
		src.Changed(h)
	}
}

func (h *Value[T]) Load(row store.Row) error {
	raw, ok := row.Lookup(h.column)
	if !ok {
		return fmt.Errorf("load %s: column not in row", h.column)
	}
	if raw == nil {
		h.UpdateAbsent()
		return nil
	}
	v, err := h.codec.Decode(raw)
	if err != nil {
		return fmt.Errorf("load %s: %w", h.column, err)
	}
	h.Update(v)
	return nil
}

// Snapshot returns the absolute value to write and clears the dirty flag.
func (h *Value[T]) Snapshot() store.Assignment {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modified = false
	return store.Assignment{Column: h.column, Value: h.encodeLocked()}
}

// Restore re-marks the holder dirty after a failed write.
func (h *Value[T]) Restore(store.Assignment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modified = true
}

func (h *Value[T]) Attach(src DataSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.source == nil {
		h.source = src
	}
}

func (h *Value[T]) Source() DataSource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.source
}

func (h *Value[T]) encodeLocked() any {
	if !h.present {
		return nil
	}
	return h.codec.Encode(h.value)
}

// Identifier holds a key column. It can be populated (Update, Load, or a
// first Set) but a populated identity can never be replaced or cleared.
type Identifier[T comparable] struct {
	cell Value[T]
}

// NewIdentifier creates an unfetched identifier holder for column.
func NewIdentifier[T comparable](column string, codec Codec[T]) *Identifier[T] {
	return &Identifier[T]{cell: Value[T]{column: column, codec: codec}}
}

func (h *Identifier[T]) Column() string { return h.cell.column }

func (h *Identifier[T]) Kind() Kind { return KindIdentifier }

func (h *Identifier[T]) Fetched() bool { return h.cell.Fetched() }

// Modified is always false: identifiers are never written.
func (h *Identifier[T]) Modified() bool { return false }

// Get returns the identity, pulling it if unfetched.
func (h *Identifier[T]) Get(ctx context.Context) (v T, ok bool, err error) {
	return h.cell.get(ctx, h)
}

// Value returns the identity without ever pulling.
func (h *Identifier[T]) Value() (T, bool) { return h.cell.Value() }

// Update records the identity read from a row.
func (h *Identifier[T]) Update(v T) { h.cell.Update(v) }

func (h *Identifier[T]) UpdateAbsent() { h.cell.UpdateAbsent() }

func (h *Identifier[T]) Load(row store.Row) error { return h.cell.Load(row) }

// Set assigns the identity of an unpopulated identifier. Setting a populated
// identifier to a different value fails with InvalidState.
func (h *Identifier[T]) Set(v T) error {
	c := &h.cell
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.present && c.value != v {
		return errs.InvalidState("identifier %s is already %v and cannot be replaced with %v", c.column, c.value, v)
	}
	c.value = v
	c.present = true
	c.fetched = true
	return nil
}

// Unset always fails: an identity cannot be cleared.
func (h *Identifier[T]) Unset() error {
	return errs.InvalidState("identifier %s cannot be cleared", h.cell.column)
}

// Snapshot returns the key value for use in a where-clause. It has no side
// effects.
func (h *Identifier[T]) Snapshot() store.Assignment {
	c := &h.cell
	c.mu.RLock()
	defer c.mu.RUnlock()
	return store.Assignment{Column: c.column, Value: c.encodeLocked()}
}

func (h *Identifier[T]) Restore(store.Assignment) {}

func (h *Identifier[T]) Attach(src DataSource) { h.cell.Attach(src) }

func (h *Identifier[T]) Source() DataSource { return h.cell.Source() }
