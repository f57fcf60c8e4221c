// Package recordstore keeps a collection of records in memory and mirrors it to a
// single key-value slot as one JSON array.
//
// Every mutation is a pure transform: the input collection is never modified and
// untouched records are carried over as-is. Persisting the result is the caller's
// job (see Save); loading never fails, it degrades to an empty collection.
package recordstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/workbook/internal/storage"
)

// KV is the persistent slot a collection is mirrored to. Implemented by storage.Store.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Deleter is implemented by stores that can remove a slot outright.
type Deleter interface {
	Delete(key string) error
}

// Drop empties the collection under key. The slot is removed when kv is a
// Deleter; otherwise an empty array is written.
func Drop(kv KV, key string) error {
	if d, ok := kv.(Deleter); ok {
		return d.Delete(key)
	}
	return kv.Set(key, "[]")
}

// Record is anything with a stable numeric identifier.
type Record interface {
	RecordID() int64
}

// Migrator converts one raw persisted element into the current record shape,
// filling defaults for fields older shapes did not have.
type Migrator[T any] func(raw json.RawMessage) (T, error)

// LoadReport describes what happened while decoding a slot.
type LoadReport struct {
	Missing bool // no value stored under the key
	Corrupt bool // value was not a JSON array
	Dropped int  // elements that could not be migrated
}

// Load reads the collection stored under key. A missing slot, a read error, or a
// value that is not a JSON array all yield an empty collection.
func Load[T any](kv KV, key string, migrate Migrator[T]) ([]T, LoadReport) {
	raw, err := kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return []T{}, LoadReport{Missing: true}
	}
	if err != nil {
		slog.Warn("reading slot failed, starting empty", "key", key, "error", err)
		return []T{}, LoadReport{Corrupt: true}
	}
	return Decode(key, raw, migrate)
}

// Decode parses a serialized collection and migrates each element.
func Decode[T any](key, raw string, migrate Migrator[T]) ([]T, LoadReport) {
	var report LoadReport
	if strings.TrimSpace(raw) == "" {
		report.Missing = true
		return []T{}, report
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		slog.Warn("slot is not a JSON array, starting empty", "key", key, "error", err)
		report.Corrupt = true
		return []T{}, report
	}

	out := make([]T, 0, len(elems))
	for i, el := range elems {
		rec, err := migrate(el)
		if err != nil {
			slog.Warn("dropping unreadable record", "key", key, "index", i, "error", err)
			report.Dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, report
}

// Save serializes the full collection and replaces the value under key.
func Save[T any](kv KV, key string, c []T) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := kv.Set(key, data); err != nil {
		return fmt.Errorf("writing slot %s: %w", key, err)
	}
	return nil
}

// Encode serializes a collection. A nil collection encodes as [].
func Encode[T any](c []T) (string, error) {
	if c == nil {
		c = []T{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding collection: %w", err)
	}
	return string(b), nil
}

// AllocateID returns a time-derived id that is strictly greater than every id in
// existing, so ids stay unique even when several are allocated within one
// millisecond.
func AllocateID(now time.Time, existing ...int64) int64 {
	id := now.UnixMilli()
	for _, e := range existing {
		if e >= id {
			id = e + 1
		}
	}
	return id
}

// NextID allocates a fresh record id for c.
func NextID[T Record](c []T, now time.Time) int64 {
	ids := make([]int64, len(c))
	for i, r := range c {
		ids[i] = r.RecordID()
	}
	return AllocateID(now, ids...)
}

// Create validates draft and, when valid, assigns it a new id and prepends it.
// An invalid draft leaves c unchanged and reports false.
func Create[T Record](c []T, draft T, valid func(T) bool, assign func(T, int64) T, now time.Time) ([]T, T, bool) {
	if valid != nil && !valid(draft) {
		var zero T
		return c, zero, false
	}
	rec := assign(draft, NextID(c, now))
	out := make([]T, 0, len(c)+1)
	out = append(out, rec)
	out = append(out, c...)
	return out, rec, true
}

// Find returns the record with the given id.
func Find[T Record](c []T, id int64) (T, bool) {
	if i := indexOf(c, id); i >= 0 {
		return c[i], true
	}
	var zero T
	return zero, false
}

// Update replaces the record matching id with patch(record). patch must return a
// new value rather than modify shared slices in place. A missing id is a no-op.
func Update[T Record](c []T, id int64, patch func(T) T) ([]T, bool) {
	i := indexOf(c, id)
	if i < 0 {
		return c, false
	}
	out := make([]T, len(c))
	copy(out, c)
	out[i] = patch(c[i])
	return out, true
}

// Remove drops the record matching id. Removing a missing id is a no-op.
func Remove[T Record](c []T, id int64) ([]T, bool) {
	i := indexOf(c, id)
	if i < 0 {
		return c, false
	}
	out := make([]T, 0, len(c)-1)
	out = append(out, c[:i]...)
	out = append(out, c[i+1:]...)
	return out, true
}

func indexOf[T Record](c []T, id int64) int {
	for i, r := range c {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}

// MergePatch applies a JSON object as a shallow field merge onto rec. Keys absent
// from the patch keep their current value; an "id" key is ignored.
func MergePatch[T any](rec T, patch json.RawMessage) (T, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return rec, fmt.Errorf("patch must be a JSON object")
	}
	delete(fields, "id")
	if len(fields) == 0 {
		return rec, nil
	}

	base, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("encoding record: %w", err)
	}
	var current map[string]json.RawMessage
	if err := json.Unmarshal(base, &current); err != nil {
		return rec, fmt.Errorf("record is not a JSON object: %w", err)
	}
	for k, v := range fields {
		current[k] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return rec, fmt.Errorf("encoding merged record: %w", err)
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return rec, fmt.Errorf("applying patch: %w", err)
	}
	return out, nil
}
