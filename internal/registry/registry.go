// Package registry declares which holder backs which column of an entity.
//
// An entity type E registers each of its holder fields once, at package
// initialisation, through the generic registration functions in this
// package. The type parameters tie the column's holder kind and value type
// to the field's Go type, so a field of the wrong kind does not compile.
// Malformed registrations (empty or duplicate column, nil accessor) panic.
//
//	var accounts = registry.NewSchema[Account]("lanatus_account", "player_uuid")
//
//	func init() {
//		registry.Identifier(accounts, "player_uuid", holder.UUID, func(a *Account) **holder.Identifier[uuid.UUID] { return &a.id })
//		registry.Modifier(accounts, "melons", holder.Int64, func(a *Account) **holder.Modifier[int64] { return &a.melons })
//	}
//
// Bind then creates (or reuses) the holders of one instance and attaches a
// data source to them.
package registry

import (
	"fmt"
	"sync"

	"github.com/roach88/lanatus/internal/errs"
	"github.com/roach88/lanatus/internal/holder"
	"github.com/roach88/lanatus/internal/store"
)

// binding is one registered column.
type binding[E any] struct {
	column string
	kind   holder.Kind
	static bool

	// resolve returns the holder for e, creating and storing it in the
	// field when the field is nil. e is nil for static bindings.
	resolve func(e *E) holder.Holder
}

// Schema is the static table of column bindings for entity type E.
// Registration must complete before the schema is used; after that a
// Schema is safe for concurrent use.
type Schema[E any] struct {
	table     string
	keyColumn string

	bindings []binding[E]
	index    map[string]int

	// mu serialises holder creation so that concurrent binds of one
	// instance agree on a single holder per field.
	mu sync.Mutex
}

// NewSchema creates an empty schema for the rows of table addressed by
// keyColumn.
func NewSchema[E any](table, keyColumn string) *Schema[E] {
	if table == "" || keyColumn == "" {
		panic("registry: table and key column are required")
	}
	return &Schema[E]{
		table:     table,
		keyColumn: keyColumn,
		index:     make(map[string]int),
	}
}

// Table returns the backing table name.
func (s *Schema[E]) Table() string { return s.table }

// KeyColumn returns the column that addresses a row.
func (s *Schema[E]) KeyColumn() string { return s.keyColumn }

// Columns returns every registered column in registration order.
func (s *Schema[E]) Columns() []string {
	cols := make([]string, len(s.bindings))
	for i, b := range s.bindings {
		cols[i] = b.column
	}
	return cols
}

// Kind returns the holder kind registered for column.
func (s *Schema[E]) Kind(column string) (holder.Kind, bool) {
	i, ok := s.index[column]
	if !ok {
		return 0, false
	}
	return s.bindings[i].kind, true
}

// Validate checks that the key column is registered as an identifier.
func (s *Schema[E]) Validate() error {
	kind, ok := s.Kind(s.keyColumn)
	if !ok {
		return errs.InvalidState("schema %s: key column %s is not registered", s.table, s.keyColumn)
	}
	if kind != holder.KindIdentifier {
		return errs.InvalidState("schema %s: key column %s is a %s, want identifier", s.table, s.keyColumn, kind)
	}
	return nil
}

func (s *Schema[E]) add(b binding[E]) {
	if b.column == "" {
		panic(fmt.Sprintf("registry: %s: empty column name", s.table))
	}
	if _, dup := s.index[b.column]; dup {
		panic(fmt.Sprintf("registry: %s: column %s registered twice", s.table, b.column))
	}
	s.index[b.column] = len(s.bindings)
	s.bindings = append(s.bindings, b)
}

// Value registers an absolute value column backed by the field that field
// returns.
func Value[E, T any](s *Schema[E], column string, codec holder.Codec[T], field func(*E) **holder.Value[T]) {
	if field == nil {
		panic(fmt.Sprintf("registry: %s.%s: nil field accessor", s.table, column))
	}
	s.add(binding[E]{
		column: column,
		kind:   holder.KindValue,
		resolve: func(e *E) holder.Holder {
			slot := field(e)
			if *slot == nil {
				*slot = holder.NewValue(column, codec)
			}
			return *slot
		},
	})
}

// Identifier registers a key column.
func Identifier[E any, T comparable](s *Schema[E], column string, codec holder.Codec[T], field func(*E) **holder.Identifier[T]) {
	if field == nil {
		panic(fmt.Sprintf("registry: %s.%s: nil field accessor", s.table, column))
	}
	s.add(binding[E]{
		column: column,
		kind:   holder.KindIdentifier,
		resolve: func(e *E) holder.Holder {
			slot := field(e)
			if *slot == nil {
				*slot = holder.NewIdentifier(column, codec)
			}
			return *slot
		},
	})
}

// Modifier registers a delta-merged numeric column.
func Modifier[E any, N holder.Number](s *Schema[E], column string, codec holder.Codec[N], field func(*E) **holder.Modifier[N]) {
	if field == nil {
		panic(fmt.Sprintf("registry: %s.%s: nil field accessor", s.table, column))
	}
	s.add(binding[E]{
		column: column,
		kind:   holder.KindModifier,
		resolve: func(e *E) holder.Holder {
			slot := field(e)
			if *slot == nil {
				*slot = holder.NewModifier(column, codec)
			}
			return *slot
		},
	})
}

// StaticValue registers a value column shared by every instance, stored in
// the package-level slot. Static bindings resolve without an instance.
func StaticValue[E, T any](s *Schema[E], column string, codec holder.Codec[T], slot **holder.Value[T]) {
	if slot == nil {
		panic(fmt.Sprintf("registry: %s.%s: nil slot", s.table, column))
	}
	s.add(binding[E]{
		column: column,
		kind:   holder.KindValue,
		static: true,
		resolve: func(*E) holder.Holder {
			if *slot == nil {
				*slot = holder.NewValue(column, codec)
			}
			return *slot
		},
	})
}

// Bind returns the holders of e in registration order, creating any that
// do not exist yet and attaching src to those without a source. Calling it
// again returns the same holders. A nil e is only allowed when every
// binding is static.
func (s *Schema[E]) Bind(e *E, src holder.DataSource) ([]holder.Holder, error) {
	hs, err := s.holders(e)
	if err != nil {
		return nil, err
	}
	if src != nil {
		for _, h := range hs {
			h.Attach(src)
		}
	}
	return hs, nil
}

// Holder returns the holder of e bound to column.
func (s *Schema[E]) Holder(e *E, column string) (holder.Holder, error) {
	i, ok := s.index[column]
	if !ok {
		return nil, errs.InvalidState("schema %s: no column %s", s.table, column)
	}
	b := s.bindings[i]
	if e == nil && !b.static {
		return nil, errs.InvalidState("schema %s: column %s needs an instance", s.table, column)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return b.resolve(e), nil
}

func (s *Schema[E]) holders(e *E) ([]holder.Holder, error) {
	if e == nil {
		for _, b := range s.bindings {
			if !b.static {
				return nil, errs.InvalidState("schema %s: column %s needs an instance", s.table, b.column)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hs := make([]holder.Holder, len(s.bindings))
	for i, b := range s.bindings {
		hs[i] = b.resolve(e)
	}
	return hs, nil
}

// Decode binds e and loads every holder whose column is present in row.
// Columns absent from the row are left untouched.
func (s *Schema[E]) Decode(e *E, row store.Row, src holder.DataSource) error {
	hs, err := s.Bind(e, src)
	if err != nil {
		return err
	}
	for _, h := range hs {
		if !row.Has(h.Column()) {
			continue
		}
		if err := h.Load(row); err != nil {
			return fmt.Errorf("decode %s: %w", s.table, err)
		}
	}
	return nil
}

// Key returns the key assignment of e.
func (s *Schema[E]) Key(e *E) (store.Assignment, error) {
	h, err := s.Holder(e, s.keyColumn)
	if err != nil {
		return store.Assignment{}, err
	}
	a := h.Snapshot()
	if a.Value == nil {
		return store.Assignment{}, errs.InvalidState("schema %s: key %s is not populated", s.table, s.keyColumn)
	}
	return a, nil
}

// Writes snapshots e for an update: every modifier (its consumed delta,
// possibly zero) and every dirty value. Identifiers are never written.
// Taking the snapshot queues the changes; hand the result to Restore if
// the write fails.
func (s *Schema[E]) Writes(e *E) ([]store.Assignment, error) {
	hs, err := s.holders(e)
	if err != nil {
		return nil, err
	}
	writes := []store.Assignment{}
	for _, h := range hs {
		switch h.Kind() {
		case holder.KindModifier:
			writes = append(writes, h.Snapshot())
		case holder.KindValue:
			if h.Modified() {
				writes = append(writes, h.Snapshot())
			}
		}
	}
	return writes, nil
}

// Restore hands writes back to the holders of e they were taken from.
func (s *Schema[E]) Restore(e *E, writes []store.Assignment) {
	for _, a := range writes {
		h, err := s.Holder(e, a.Column)
		if err != nil {
			continue
		}
		h.Restore(a)
	}
}
