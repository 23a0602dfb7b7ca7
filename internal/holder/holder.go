// Package holder implements lazily populated, change-tracking column values.
//
// A holder owns one cached scalar backed by one durable column. Three kinds
// exist:
//
//   - Value: absolute replace-on-write. Set marks the holder dirty and the
//     next snapshot writes the whole value.
//   - Identifier: a key column. It can be populated but never replaced.
//   - Modifier: numeric merge-on-write. Mutations accumulate a pending delta
//     that is written back as "col = col + delta", so concurrent writers
//     from different processes sum instead of overwriting each other.
//
// A holder distinguishes three states for its value: not yet fetched,
// fetched and absent (SQL NULL), and fetched and present. The zero value of
// T is never taken to mean "absent".
package holder

import (
	"context"

	"github.com/roach88/lanatus/internal/store"
)

// Kind identifies the update discipline of a holder.
type Kind int

const (
	// KindValue holders write absolute values.
	KindValue Kind = iota
	// KindModifier holders write deltas.
	KindModifier
	// KindIdentifier holders address the row and are never written.
	KindIdentifier
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindModifier:
		return "modifier"
	case KindIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// DataSource populates holders on demand and is told about pending changes.
// Holders keep a plain reference to their source; they do not own it.
type DataSource interface {
	// Pull fetches the current remote value for h and loads it into h.
	Pull(ctx context.Context, h Holder) error

	// Changed is called after an application-facing mutation of h.
	Changed(h Holder)
}

// Holder is the kind-independent view of a holder used by registries and
// repositories.
type Holder interface {
	// Column returns the backing column name.
	Column() string

	// Kind returns the update discipline.
	Kind() Kind

	// Fetched reports whether the holder has been populated.
	Fetched() bool

	// Modified reports whether the holder has a change that a snapshot
	// would write.
	Modified() bool

	// Load populates the holder from a row without marking it dirty.
	Load(row store.Row) error

	// Snapshot returns the holder's contribution to an update statement
	// and marks that contribution as queued (dirty flag cleared, or
	// modifier consumed).
	Snapshot() store.Assignment

	// Restore hands a snapshot back after the write it was taken for
	// failed, so the change is written by the next attempt.
	Restore(a store.Assignment)

	// Attach sets the data source if none is attached yet.
	Attach(src DataSource)

	// Source returns the attached data source, or nil.
	Source() DataSource
}

var (
	_ Holder = (*Value[string])(nil)
	_ Holder = (*Identifier[string])(nil)
	_ Holder = (*Modifier[int64])(nil)
)
