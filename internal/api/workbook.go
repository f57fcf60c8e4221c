package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/workbook/internal/backup"
	"github.com/kalambet/workbook/internal/journal"
	"github.com/kalambet/workbook/internal/metrics"
	"github.com/kalambet/workbook/internal/storage"
)

// SlotReader reports when each storage slot was last written.
type SlotReader interface {
	ListSlots() ([]storage.Slot, error)
	GetSlot(key string) (storage.Slot, error)
}

type AppDeps struct {
	Journal *journal.Journal
	Jobs    backup.Queue // optional; if nil, /backups is unavailable
	Slots   SlotReader   // optional; if nil, sections carry no updatedAt
	Token   string
	Now     func() time.Time
}

// SectionInfo describes one section for listings.
type SectionInfo struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Key         string   `json:"key"`
	Lists       []string `json:"lists,omitempty"`
	Creatable   bool     `json:"creatable"`
	Count       int        `json:"count"`
	Aggregate   any        `json:"aggregate,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func describe(s journal.Section) SectionInfo {
	return SectionInfo{
		Name:        s.Name(),
		Title:       s.Title(),
		Description: s.Description(),
		Key:         s.Key(),
		Lists:       s.Lists(),
		Creatable:   s.Creatable(),
		Count:       s.Len(),
		Aggregate:   s.Aggregate(),
	}
}

// describeOne adds the slot's modification time when slots is set and the
// section has been written.
func describeOne(s journal.Section, slots SlotReader) SectionInfo {
	info := describe(s)
	if slots == nil {
		return info
	}
	sl, err := slots.GetSlot(s.Key())
	if err == nil {
		info.UpdatedAt = &sl.UpdatedAt
	} else if !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("reading slot time failed", "key", s.Key(), "error", err)
	}
	return info
}

func describeAll(j *journal.Journal, slots SlotReader) []SectionInfo {
	updated := map[string]time.Time{}
	if slots != nil {
		list, err := slots.ListSlots()
		if err != nil {
			slog.Warn("listing slots failed", "error", err)
		}
		for _, sl := range list {
			updated[sl.Key] = sl.UpdatedAt
		}
	}

	out := make([]SectionInfo, 0, len(j.Sections()))
	for _, s := range j.Sections() {
		info := describe(s)
		if t, ok := updated[s.Key()]; ok {
			info.UpdatedAt = &t
		}
		out = append(out, info)
	}
	return out
}

// NewAppHandler serves the workbook REST API. Everything except /health and
// /metrics requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/sections", handleListSections(deps))
		r.Get("/sections/{section}", handleGetSection(deps))
		r.Delete("/sections/{section}", handlePurgeSection(deps))
		r.Get("/sections/{section}/entries", handleListEntries(deps))
		r.Post("/sections/{section}/entries", handleCreateEntry(deps))
		r.Get("/sections/{section}/entries/{id}", handleGetEntry(deps))
		r.Patch("/sections/{section}/entries/{id}", handlePatchEntry(deps))
		r.Delete("/sections/{section}/entries/{id}", handleDeleteEntry(deps))
		r.Get("/sections/{section}/entries/{id}/summary", handleEntrySummary(deps))
		r.Post("/sections/{section}/entries/{id}/{list}", handleAddItem(deps))
		r.Patch("/sections/{section}/entries/{id}/{list}/{item}", handlePatchItem(deps))
		r.Delete("/sections/{section}/entries/{id}/{list}/{item}", handleDeleteItem(deps))

		r.Get("/export", handleExport(deps))
		r.Post("/import", handleImport(deps))
		r.Post("/backups", handleEnqueueBackup(deps))
		r.Get("/backups/{id}", handleGetBackup(deps))
	})

	return r
}

func lookupSection(deps AppDeps, w http.ResponseWriter, r *http.Request) (journal.Section, bool) {
	name := chi.URLParam(r, "section")
	s, ok := deps.Journal.Section(name)
	if !ok {
		httpError(w, http.StatusNotFound, "not_found", "unknown section %q", name)
		return nil, false
	}
	return s, true
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid entry id %q", raw)
		return 0, false
	}
	return id, true
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
		return nil, false
	}
	if !json.Valid(body) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "request body must be valid JSON")
		return nil, false
	}
	return body, true
}

// mutationError maps section errors onto HTTP responses.
func mutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, journal.ErrUnknownList):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, journal.ErrUnsupported):
		httpError(w, http.StatusMethodNotAllowed, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	}
}

func handleListSections(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, describeAll(deps.Journal, deps.Slots))
	}
}

func handleGetSection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, describeOne(s, deps.Slots))
	}
}

func handlePurgeSection(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		s.Clear()
		writeStatus(w, "cleared")
	}
}

func handleListEntries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		limit := parseIntParam(r, "limit", 0, 1000)
		offset := parseIntParam(r, "offset", 0, 0)

		entries, total := s.Page(offset, limit)
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleCreateEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		rec, created, err := s.Create(body)
		if err != nil {
			mutationError(w, err)
			return
		}
		if !created {
			httpError(w, http.StatusUnprocessableEntity, "validation_error", "entry is missing required fields")
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func handleGetEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		rec, found := s.Entry(id)
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "entry %d not found", id)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handlePatchEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		rec, changed, err := s.Patch(id, body)
		if err != nil {
			mutationError(w, err)
			return
		}
		if !changed {
			writeStatus(w, "unchanged")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleDeleteEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		if !s.Remove(id) {
			writeStatus(w, "unchanged")
			return
		}
		writeStatus(w, "deleted")
	}
}

func handleEntrySummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		summary, found := s.Summary(id)
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "entry %d not found", id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "summary": summary})
	}
}

func handleAddItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		item, added, err := s.AddItem(id, chi.URLParam(r, "list"), body)
		if err != nil {
			mutationError(w, err)
			return
		}
		if !added {
			writeStatus(w, "unchanged")
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func handlePatchItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		item, changed, err := s.PatchItem(id, chi.URLParam(r, "list"), chi.URLParam(r, "item"), body)
		if err != nil {
			mutationError(w, err)
			return
		}
		if !changed {
			writeStatus(w, "unchanged")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func handleDeleteItem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSection(deps, w, r)
		if !ok {
			return
		}
		id, ok := entryID(w, r)
		if !ok {
			return
		}

		removed, err := s.RemoveItem(id, chi.URLParam(r, "list"), chi.URLParam(r, "item"))
		if err != nil {
			mutationError(w, err)
			return
		}
		if !removed {
			writeStatus(w, "unchanged")
			return
		}
		writeStatus(w, "deleted")
	}
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := deps.Now()
		snap, err := backup.Take(r.Context(), deps.Journal, now)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to take snapshot: %v", err)
			return
		}
		data, err := snap.Encode()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.FileName(now)))
		w.Write(data)
	}
}

func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		snap, err := backup.Parse(body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		res, err := deps.Journal.Restore(snap.Values())
		if errors.Is(err, journal.ErrCorrupt) {
			httpError(w, http.StatusUnprocessableEntity, "validation_error", "%v (restored so far: %d sections)", err, len(res.Restored))
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "restore failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleEnqueueBackup(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Jobs == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "backups are not configured")
			return
		}
		id, err := backup.Enqueue(deps.Jobs, "api")
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "queued"})
	}
}

// BackupStatus reports the state of a queued backup.
type BackupStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func handleGetBackup(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Jobs == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "backups are not configured")
			return
		}
		id := chi.URLParam(r, "id")
		job, err := deps.Jobs.GetJob(id)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && job.Type != backup.JobType) {
			httpError(w, http.StatusNotFound, "not_found", "unknown backup %q", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, BackupStatus{
			ID:        job.ID,
			Status:    job.Status,
			Attempts:  job.Attempts,
			LastError: job.LastError,
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		})
	}
}
