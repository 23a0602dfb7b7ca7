package holder

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/lanatus/internal/store"
)

// Codec converts between a driver value and a holder's Go type.
type Codec[T any] struct {
	Decode func(raw any) (T, error)
	Encode func(v T) any
}

// Built-in codecs for the column types used by the ledger tables.
var (
	String = Codec[string]{
		Decode: store.AsString,
		Encode: func(v string) any { return v },
	}

	Int64 = Codec[int64]{
		Decode: store.AsInt64,
		Encode: func(v int64) any { return v },
	}

	Int = Codec[int]{
		Decode: func(raw any) (int, error) {
			n, err := store.AsInt64(raw)
			return int(n), err
		},
		Encode: func(v int) any { return int64(v) },
	}

	// Bool stores flags as 0 or 1.
	Bool = Codec[bool]{
		Decode: func(raw any) (bool, error) {
			n, err := store.AsInt64(raw)
			return n != 0, err
		},
		Encode: func(v bool) any {
			if v {
				return int64(1)
			}
			return int64(0)
		},
	}

	// UUID stores identifiers as their canonical hyphenated text.
	UUID = Codec[uuid.UUID]{
		Decode: store.AsUUID,
		Encode: func(v uuid.UUID) any { return v.String() },
	}

	// Time stores timestamps in UTC.
	Time = Codec[time.Time]{
		Decode: store.AsTime,
		Encode: func(v time.Time) any { return v.UTC() },
	}
)
