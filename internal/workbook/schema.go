// Package workbook defines the journal sections: their record shapes, storage
// keys, legacy migrations, creation rules, nested lists and summaries.
package workbook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/workbook/internal/recordstore"
)

// Schema describes one section's records of type T.
type Schema[T recordstore.Record] struct {
	Name        string // URL-safe identifier, e.g. "proscons"
	Title       string
	Description string
	Key         string // storage slot, kept identical to earlier releases

	// Migrate decodes one persisted element, filling defaults for older shapes.
	// It is also used to decode create drafts unless Draft is set.
	Migrate recordstore.Migrator[T]
	Draft   recordstore.Migrator[T]

	// Prepare trims and defaults a decoded draft before Valid sees it. It is also
	// applied to patched records.
	Prepare func(T) T
	// Valid reports whether a prepared draft may be created. A nil Valid means
	// the section does not accept new records.
	Valid  func(T) bool
	WithID func(T, int64) T
	// Patch replaces the default shallow merge of a JSON patch into a record.
	Patch func(T, json.RawMessage) (T, error)

	Lists map[string]List[T]

	Summarize func(T) any
	Aggregate func([]T) any

	// Seed returns the initial collection when nothing is stored yet.
	Seed func() []T
	// Normalize is applied after every load and mutation.
	Normalize func([]T) []T
}

// List is a type-erased nested list of records of type T. A nil function means
// the operation is not supported for this list.
type List[T any] struct {
	Add    func(c []T, parentID int64, raw json.RawMessage, now time.Time) ([]T, any, bool, error)
	Patch  func(c []T, parentID int64, key string, raw json.RawMessage) ([]T, any, bool, error)
	Remove func(c []T, parentID int64, key string) ([]T, bool, error)
}

// ItemRules configures an id-keyed nested list.
type ItemRules[T, S any] struct {
	New     func() S // defaults a new item is decoded over
	Prepare func(S) S
	Valid   func(S) bool
	WithID  func(S, int64) S
	// SiblingIDs returns every sub-item id the parent owns across all its lists.
	// When nil only this list's ids are considered.
	SiblingIDs func(T) []int64
}

// NewList builds a List over an int64-keyed sub-list.
func NewList[T recordstore.Record, S any](sub recordstore.SubList[T, S, int64], rules ItemRules[T, S]) List[T] {
	siblings := rules.SiblingIDs
	if siblings == nil {
		siblings = func(rec T) []int64 {
			items := sub.Get(rec)
			ids := make([]int64, len(items))
			for i, it := range items {
				ids[i] = sub.Key(it)
			}
			return ids
		}
	}

	return List[T]{
		Add: func(c []T, parentID int64, raw json.RawMessage, now time.Time) ([]T, any, bool, error) {
			parent, ok := recordstore.Find(c, parentID)
			if !ok {
				return c, nil, false, nil
			}
			var item S
			if rules.New != nil {
				item = rules.New()
			}
			if err := json.Unmarshal(raw, &item); err != nil {
				return c, nil, false, fmt.Errorf("decoding item: %w", err)
			}
			if rules.Prepare != nil {
				item = rules.Prepare(item)
			}
			if rules.Valid != nil && !rules.Valid(item) {
				return c, nil, false, nil
			}
			item = rules.WithID(item, recordstore.AllocateID(now, siblings(parent)...))
			out, ok := recordstore.AddSubItem(c, parentID, sub, item)
			return out, item, ok, nil
		},
		Patch: func(c []T, parentID int64, key string, raw json.RawMessage) ([]T, any, bool, error) {
			id, err := parseItemID(key)
			if err != nil {
				return c, nil, false, err
			}
			return patchItem(c, parentID, sub, id, raw, rules.Prepare)
		},
		Remove: func(c []T, parentID int64, key string) ([]T, bool, error) {
			id, err := parseItemID(key)
			if err != nil {
				return c, false, err
			}
			out, ok := recordstore.RemoveSubItem(c, parentID, sub, id)
			return out, ok, nil
		},
	}
}

// NewFixedList builds a patch-only List over a string-keyed sub-list whose
// membership never changes.
func NewFixedList[T recordstore.Record, S any](sub recordstore.SubList[T, S, string], prepare func(S) S) List[T] {
	return List[T]{
		Patch: func(c []T, parentID int64, key string, raw json.RawMessage) ([]T, any, bool, error) {
			return patchItem(c, parentID, sub, key, raw, prepare)
		},
	}
}

func patchItem[T recordstore.Record, S any, K comparable](c []T, parentID int64, sub recordstore.SubList[T, S, K], key K, raw json.RawMessage, prepare func(S) S) ([]T, any, bool, error) {
	item, ok := recordstore.FindSubItem(c, parentID, sub, key)
	if !ok {
		return c, nil, false, nil
	}
	patched, err := recordstore.MergePatch(item, raw)
	if err != nil {
		return c, nil, false, err
	}
	if prepare != nil {
		patched = prepare(patched)
	}
	out, ok := recordstore.UpdateSubItem(c, parentID, sub, key, func(S) S { return patched })
	return out, patched, ok, nil
}

func parseItemID(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", key)
	}
	return id, nil
}

// decode unmarshals a JSON object over a copy of defaults so absent fields keep
// their default values. defaults must not hold slices or maps: Unmarshal would
// write through into their backing storage.
func decode[T any](raw json.RawMessage, defaults T) (T, error) {
	var zero T
	if trimmed := strings.TrimSpace(string(raw)); !strings.HasPrefix(trimmed, "{") {
		return zero, fmt.Errorf("record is not a JSON object")
	}
	out := defaults
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func orEmpty[S any](s []S) []S {
	if s == nil {
		return []S{}
	}
	return s
}

// itemIDs hands out sub-item ids that are unique across every list of one
// record. The first item holding an id keeps it; missing and repeated ids are
// renumbered after the largest id in use.
type itemIDs struct {
	seen map[int64]bool
	next int64
}

func newItemIDs(existing ...int64) *itemIDs {
	return &itemIDs{
		seen: make(map[int64]bool, len(existing)),
		next: max(recordstore.AllocateID(time.Time{}, existing...), 1),
	}
}

func (s *itemIDs) claim(id int64) int64 {
	if id > 0 && !s.seen[id] {
		s.seen[id] = true
		return id
	}
	id = s.next
	s.next++
	s.seen[id] = true
	return id
}

// uniqueItems returns a copy of items with ids claimed from ids. A nil list
// comes back empty.
func uniqueItems[S any](ids *itemIDs, items []S, key func(S) int64, withID func(S, int64) S) []S {
	out := make([]S, len(items))
	for i, it := range items {
		out[i] = it
		if id := ids.claim(key(it)); id != key(it) {
			out[i] = withID(it, id)
		}
	}
	return out
}
