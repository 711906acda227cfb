package groups

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goliatone/go-groups/internal/coerce"
)

// PersistedID is one entry of a persisted id list. Valid is false for entries
// stored as null.
type PersistedID struct {
	Value int
	Valid bool
}

// ValidID returns a non-null entry holding v. v may still be negative.
func ValidID(v int) PersistedID {
	return PersistedID{Value: v, Valid: true}
}

// NullID returns a null entry.
func NullID() PersistedID {
	return PersistedID{}
}

// Usable reports whether the entry names a constructible element.
func (p PersistedID) Usable() bool {
	return p.Valid && p.Value >= 0
}

// String renders the entry the way it is persisted.
func (p PersistedID) String() string {
	if !p.Valid {
		return "null"
	}
	return strconv.Itoa(p.Value)
}

// MarshalJSON encodes null entries as JSON null.
func (p PersistedID) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(p.Value)), nil
}

// UnmarshalJSON decodes one entry the way IDsFromValues does: integral
// numbers become valid ids and anything else, null included, becomes a null
// entry. Only malformed JSON is an error.
func (p *PersistedID) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return fmt.Errorf("groups: persisted id %s: %w", bytes.TrimSpace(data), err)
	}
	if v, ok := coerce.Int(raw); ok {
		*p = ValidID(v)
		return nil
	}
	*p = NullID()
	return nil
}

// IDList is the ordered persisted id list of one group. Entries need not be
// unique or valid.
type IDList []PersistedID

// IDs builds a list of non-null entries.
func IDs(values ...int) IDList {
	out := make(IDList, len(values))
	for i, v := range values {
		out[i] = ValidID(v)
	}
	return out
}

// IDsFromPointers maps nil pointers to null entries.
func IDsFromPointers(values []*int) IDList {
	out := make(IDList, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = ValidID(*v)
		}
	}
	return out
}

// IDsFromValues converts loosely typed values, as produced by generic JSON or
// YAML decoding, into a list. Values that are not integral become null
// entries rather than failing the list.
func IDsFromValues(values []any) IDList {
	out := make(IDList, len(values))
	for i, v := range values {
		if n, ok := coerce.Int(v); ok {
			out[i] = ValidID(n)
		}
	}
	return out
}

// IDsOf returns the ids of elements in order. Nil elements are skipped.
func IDsOf(elements []Element) IDList {
	out := make(IDList, 0, len(elements))
	for _, el := range elements {
		if el == nil {
			continue
		}
		out = append(out, ValidID(el.ElementID()))
	}
	return out
}

// Ints returns the values of usable entries, dropping null and negative ones.
func (l IDList) Ints() []int {
	out := make([]int, 0, len(l))
	for _, id := range l {
		if id.Usable() {
			out = append(out, id.Value)
		}
	}
	return out
}

// Pointers is the inverse of IDsFromPointers.
func (l IDList) Pointers() []*int {
	out := make([]*int, len(l))
	for i, id := range l {
		if id.Valid {
			v := id.Value
			out[i] = &v
		}
	}
	return out
}

// Clone returns an independent copy.
func (l IDList) Clone() IDList {
	if l == nil {
		return nil
	}
	return append(IDList(nil), l...)
}

// NextFreeID returns the lowest non-negative id not used by a usable entry.
func (l IDList) NextFreeID() int {
	used := make(map[int]struct{}, len(l))
	for _, id := range l {
		if id.Usable() {
			used[id.Value] = struct{}{}
		}
	}
	next := 0
	for {
		if _, ok := used[next]; !ok {
			return next
		}
		next++
	}
}

// Without returns a copy with every valid entry equal to id removed.
func (l IDList) Without(id int) IDList {
	out := make(IDList, 0, len(l))
	for _, entry := range l {
		if entry.Valid && entry.Value == id {
			continue
		}
		out = append(out, entry)
	}
	return out
}
