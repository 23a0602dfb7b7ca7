package holder

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/lanatus/internal/store"
)

// Number is the set of numeric types a Modifier can hold.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Modifier holds a numeric column that is written back as a delta.
//
// Invariant: the observed value equals the last known remote value plus the
// pending modifier. The holder is dirty exactly when the modifier is
// non-zero. Every read and write of the modifier goes through mu.
type Modifier[N Number] struct {
	column string
	codec  Codec[N]

	mu       sync.RWMutex
	value    N
	present  bool
	fetched  bool
	modifier N
	source   DataSource
}

// NewModifier creates an unfetched modifier holder for column.
func NewModifier[N Number](column string, codec Codec[N]) *Modifier[N] {
	return &Modifier[N]{column: column, codec: codec}
}

func (h *Modifier[N]) Column() string { return h.column }

func (h *Modifier[N]) Kind() Kind { return KindModifier }

func (h *Modifier[N]) Fetched() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fetched
}

func (h *Modifier[N]) Modified() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.modifier != 0
}

// Get returns the observed value. When the value is absent or zero and a
// source is attached, it pulls first so that an unpopulated zero is never
// mistaken for the remote value.
func (h *Modifier[N]) Get(ctx context.Context) (N, error) {
	if err := h.pullUnknown(ctx); err != nil {
		return 0, err
	}
	v, _ := h.Value()
	return v, nil
}

// pullUnknown pulls from the source, without the lock held, when the
// observed value is absent or zero.
func (h *Modifier[N]) pullUnknown(ctx context.Context) error {
	h.mu.RLock()
	pull := h.source != nil && (!h.present || h.value == 0)
	src := h.source
	h.mu.RUnlock()

	if !pull {
		return nil
	}
	if err := src.Pull(ctx, h); err != nil {
		return fmt.Errorf("pull %s: %w", h.column, err)
	}
	return nil
}

// Value returns the observed value without pulling.
func (h *Modifier[N]) Value() (N, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value, h.present
}

// Modifier returns the pending delta.
func (h *Modifier[N]) Modifier() N {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.modifier
}

// Modify adds delta to both the pending modifier and the observed value.
func (h *Modifier[N]) Modify(delta N) {
	h.mu.Lock()
	h.applyLocked(delta)
	src := h.source
	h.mu.Unlock()

	if src != nil {
		src.Changed(h)
	}
}

// TryModify is Modify with a guard. The current value is resolved as Get
// does, then the guard sees the value that would be observed after the
// change and runs under the exclusive lock; if it returns an error nothing
// is recorded.
func (h *Modifier[N]) TryModify(ctx context.Context, delta N, guard func(next N) error) error {
	if err := h.pullUnknown(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	if guard != nil {
		if err := guard(h.value + delta); err != nil {
			h.mu.Unlock()
			return err
		}
	}
	h.applyLocked(delta)
	src := h.source
	h.mu.Unlock()

	if src != nil {
		src.Changed(h)
	}
	return nil
}

// Set records the difference between v and the current value as a delta,
// so an absolute set still merges with concurrent writers. The current
// value is resolved as Get does.
func (h *Modifier[N]) Set(ctx context.Context, v N) error {
	if err := h.pullUnknown(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	h.applyLocked(v - h.value)
	src := h.source
	h.mu.Unlock()

	if src != nil {
		src.Changed(h)
	}
	return nil
}

func (h *Modifier[N]) applyLocked(delta N) {
	h.modifier += delta
	if h.present {
		h.value += delta
	} else {
		h.value = delta
		h.present = true
	}
}

// ConsumeModifier returns the pending delta and resets it to zero in one
// exclusive section. Write-back paths must call it exactly once per
// attempt.
func (h *Modifier[N]) ConsumeModifier() N {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.modifier
	h.modifier = 0
	return m
}

// Update records a freshly read remote value. A pending modifier survives:
// the observed value becomes remote plus pending.
func (h *Modifier[N]) Update(remote N) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = remote + h.modifier
	h.present = true
	h.fetched = true
}

// UpdateAbsent records a NULL remote value.
func (h *Modifier[N]) UpdateAbsent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = h.modifier
	h.present = h.modifier != 0
	h.fetched = true
}

func (h *Modifier[N]) Load(row store.Row) error {
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

// Snapshot consumes the modifier and returns it as a delta assignment.
func (h *Modifier[N]) Snapshot() store.Assignment {
	return store.Assignment{
		Column: h.column,
		Value:  h.codec.Encode(h.ConsumeModifier()),
		Delta:  true,
	}
}

// Restore gives a consumed delta back after its write failed. The observed
// value already includes it. Restore panics on an assignment this holder
// could not have produced rather than drop the delta.
func (h *Modifier[N]) Restore(a store.Assignment) {
	if !a.Delta || a.Value == nil {
		return
	}
	delta, ok := a.Value.(N)
	if !ok {
		var err error
		if delta, err = h.codec.Decode(a.Value); err != nil {
			panic(fmt.Sprintf("restore %s: %v", h.column, err))
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modifier += delta
}

func (h *Modifier[N]) Attach(src DataSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.source == nil {
		h.source = src
	}
}

func (h *Modifier[N]) Source() DataSource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.source
}
