package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/workbook/internal/metrics"
	"github.com/kalambet/workbook/internal/recordstore"
	"github.com/kalambet/workbook/internal/workbook"
)

var (
	ErrUnknownList = errors.New("unknown list")
	ErrUnsupported = errors.New("operation not supported by this section")
	ErrCorrupt     = errors.New("collection is not a JSON array")
)

// Section is one journal page with its record type erased. Mutations that are
// rejected (invalid input, missing record) report ok=false and change nothing;
// errors are reserved for malformed requests.
type Section interface {
	Name() string
	Title() string
	Description() string
	Key() string
	Lists() []string
	Creatable() bool

	// Load replaces the in-memory collection with the stored one. Sections load
	// lazily on first use when Load is never called.
	Load()
	Loaded() bool
	Len() int

	Entries() any
	Page(offset, limit int) (any, int)
	Entry(id int64) (any, bool)
	Create(draft json.RawMessage) (any, bool, error)
	Patch(id int64, patch json.RawMessage) (any, bool, error)
	Remove(id int64) bool

	AddItem(id int64, list string, item json.RawMessage) (any, bool, error)
	PatchItem(id int64, list, itemID string, patch json.RawMessage) (any, bool, error)
	RemoveItem(id int64, list, itemID string) (bool, error)

	// Summary returns derived aggregates for one record; nil when the section
	// defines none.
	Summary(id int64) (any, bool)
	Aggregate() any

	Encode() (string, error)
	Restore(raw string) (int, error)
	Clear()
}

type section[T recordstore.Record] struct {
	schema workbook.Schema[T]
	kv     recordstore.KV
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	items  []T
}

// NewSection wraps a schema into a Section persisted through kv.
func NewSection[T recordstore.Record](schema workbook.Schema[T], kv recordstore.KV, opts ...Option) Section {
	o := buildOptions(opts)
	return &section[T]{
		schema: schema,
		kv:     kv,
		now:    o.now,
		logger: o.logger.With("section", schema.Name),
	}
}

func (s *section[T]) Name() string        { return s.schema.Name }
func (s *section[T]) Title() string       { return s.schema.Title }
func (s *section[T]) Description() string { return s.schema.Description }
func (s *section[T]) Key() string         { return s.schema.Key }
func (s *section[T]) Creatable() bool     { return s.schema.Valid != nil }

func (s *section[T]) Lists() []string {
	names := make([]string, 0, len(s.schema.Lists))
	for name := range s.schema.Lists {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *section[T]) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
}

func (s *section[T]) load() {
	items, report := recordstore.Load(s.kv, s.schema.Key, s.schema.Migrate)
	if report.Corrupt {
		metrics.CorruptSlots.WithLabelValues(s.schema.Name).Inc()
	}
	if report.Dropped > 0 {
		metrics.DroppedRecords.WithLabelValues(s.schema.Name).Add(float64(report.Dropped))
	}
	if report.Missing && s.schema.Seed != nil {
		items = s.schema.Seed()
	}
	s.items = s.normalize(items)
	s.loaded = true
	metrics.Records.WithLabelValues(s.schema.Name).Set(float64(len(s.items)))
	s.logger.Debug("section loaded", "records", len(s.items), "dropped", report.Dropped, "corrupt", report.Corrupt)
}

func (s *section[T]) ensureLoaded() {
	if !s.loaded {
		s.load()
	}
}

func (s *section[T]) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *section[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return len(s.items)
}

func (s *section[T]) normalize(c []T) []T {
	if s.schema.Normalize != nil {
		return s.schema.Normalize(c)
	}
	return c
}

// commit installs next as the current collection and persists it. A failed
// write is logged and counted, never returned.
func (s *section[T]) commit(next []T, op string) {
	s.items = s.normalize(next)
	s.persisted(op, recordstore.Save(s.kv, s.schema.Key, s.items))
}

func (s *section[T]) persisted(op string, err error) {
	metrics.Mutations.WithLabelValues(s.schema.Name, op).Inc()
	metrics.Records.WithLabelValues(s.schema.Name).Set(float64(len(s.items)))
	if err != nil {
		metrics.SaveFailures.WithLabelValues(s.schema.Name).Inc()
		s.logger.Warn("discarding failed write", "op", op, "error", err)
	}
}

func (s *section[T]) reject(op string) {
	metrics.Rejected.WithLabelValues(s.schema.Name, op).Inc()
}

func (s *section[T]) Entries() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return slices.Clone(s.items)
}

// Page returns up to limit records starting at offset, newest first, along with
// the total count. A limit of 0 returns everything after offset.
func (s *section[T]) Page(offset, limit int) (any, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	total := len(s.items)
	start := min(offset, total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return slices.Clone(s.items[start:end]), total
}

func (s *section[T]) Entry(id int64) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	rec, ok := recordstore.Find(s.items, id)
	if !ok {
		return nil, false
	}
	return rec, true
}

func (s *section[T]) Create(raw json.RawMessage) (any, bool, error) {
	if s.schema.Valid == nil {
		return nil, false, ErrUnsupported
	}
	decode := s.schema.Draft
	if decode == nil {
		decode = s.schema.Migrate
	}
	draft, err := decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s entry: %w", s.schema.Name, err)
	}
	if s.schema.Prepare != nil {
		draft = s.schema.Prepare(draft)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	next, rec, ok := recordstore.Create(s.items, draft, s.schema.Valid, s.schema.WithID, s.now())
	if !ok {
		s.reject("create")
		return nil, false, nil
	}
	s.commit(next, "create")
	return rec, true, nil
}

func (s *section[T]) Patch(id int64, raw json.RawMessage) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	rec, ok := recordstore.Find(s.items, id)
	if !ok {
		s.reject("patch")
		return nil, false, nil
	}
	var patched T
	var err error
	if s.schema.Patch != nil {
		patched, err = s.schema.Patch(rec, raw)
	} else {
		patched, err = recordstore.MergePatch(rec, raw)
	}
	if err != nil {
		return nil, false, fmt.Errorf("patching %s entry %d: %w", s.schema.Name, id, err)
	}
	patched = s.schema.WithID(patched, id)
	if s.schema.Prepare != nil {
		patched = s.schema.Prepare(patched)
	}

	next, _ := recordstore.Update(s.items, id, func(T) T { return patched })
	s.commit(next, "patch")
	return patched, true, nil
}

func (s *section[T]) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	next, ok := recordstore.Remove(s.items, id)
	if !ok {
		s.reject("remove")
		return false
	}
	s.commit(next, "remove")
	return true
}

func (s *section[T]) list(name string) (workbook.List[T], error) {
	l, ok := s.schema.Lists[name]
	if !ok {
		return l, fmt.Errorf("%w %q in %s", ErrUnknownList, name, s.schema.Name)
	}
	return l, nil
}

func (s *section[T]) AddItem(id int64, list string, raw json.RawMessage) (any, bool, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, false, err
	}
	if l.Add == nil {
		return nil, false, ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	next, item, ok, err := l.Add(s.items, id, raw, s.now())
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.reject("add_item")
		return nil, false, nil
	}
	s.commit(next, "add_item")
	return item, true, nil
}

func (s *section[T]) PatchItem(id int64, list, itemID string, raw json.RawMessage) (any, bool, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, false, err
	}
	if l.Patch == nil {
		return nil, false, ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	next, item, ok, err := l.Patch(s.items, id, itemID, raw)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.reject("patch_item")
		return nil, false, nil
	}
	s.commit(next, "patch_item")
	return item, true, nil
}

func (s *section[T]) RemoveItem(id int64, list, itemID string) (bool, error) {
	l, err := s.list(list)
	if err != nil {
		return false, err
	}
	if l.Remove == nil {
		return false, ErrUnsupported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	next, ok, err := l.Remove(s.items, id, itemID)
	if err != nil {
		return false, err
	}
	if !ok {
		s.reject("remove_item")
		return false, nil
	}
	s.commit(next, "remove_item")
	return true, nil
}

func (s *section[T]) Summary(id int64) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	rec, ok := recordstore.Find(s.items, id)
	if !ok {
		return nil, false
	}
	if s.schema.Summarize == nil {
		return nil, true
	}
	return s.schema.Summarize(rec), true
}

func (s *section[T]) Aggregate() any {
	if s.schema.Aggregate == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return s.schema.Aggregate(s.items)
}

func (s *section[T]) Encode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return recordstore.Encode(s.items)
}

// Restore replaces the collection with a serialized one, migrating each record.
// Records that cannot be migrated are skipped; a value that is not an array,
// null included, is refused and leaves the section unchanged.
func (s *section[T]) Restore(raw string) (int, error) {
	items, report := recordstore.Decode(s.schema.Key, raw, s.schema.Migrate)
	if report.Corrupt || strings.TrimSpace(raw) == "null" {
		return 0, fmt.Errorf("restoring %s: %w", s.schema.Name, ErrCorrupt)
	}
	if report.Missing && s.schema.Seed != nil {
		items = s.schema.Seed()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.commit(items, "restore")
	return len(s.items), nil
}

// Clear empties the section. Seeded sections are reset to their seed; the
// others have their slot removed.
func (s *section[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if s.schema.Seed != nil {
		s.commit(s.schema.Seed(), "clear")
		return
	}
	s.items = []T{}
	s.persisted("clear", recordstore.Drop(s.kv, s.schema.Key))
}
