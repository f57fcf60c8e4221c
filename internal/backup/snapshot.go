// Package backup takes whole-journal snapshots and writes them to a sink, either
// inline or through the persisted job queue.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// Snapshot holds every slot's serialized collection at one point in time.
type Snapshot struct {
	Format    int                        `json:"format"`
	CreatedAt time.Time                  `json:"createdAt"`
	Slots     map[string]json.RawMessage `json:"slots"`
}

// Source produces the current contents of every slot.
type Source interface {
	Snapshot(ctx context.Context) (map[string]string, error)
}

// Take captures src.
func Take(ctx context.Context, src Source, now time.Time) (Snapshot, error) {
	values, err := src.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("capturing slots: %w", err)
	}
	slots := make(map[string]json.RawMessage, len(values))
	for key, v := range values {
		if !json.Valid([]byte(v)) {
			return Snapshot{}, fmt.Errorf("slot %s holds invalid JSON", key)
		}
		slots[key] = json.RawMessage(v)
	}
	return Snapshot{Format: FormatVersion, CreatedAt: now.UTC(), Slots: slots}, nil
}

// Encode renders the snapshot as indented JSON.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Values returns each slot's serialized collection.
func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(s.Slots))
	for key, raw := range s.Slots {
		out[key] = string(raw)
	}
	return out
}

// Parse reads a snapshot. A bare object mapping slot keys to arrays, as produced
// by dumping browser storage, is accepted too. Browser storage holds strings, so
// a slot whose value is a string of JSON is unquoted.
func Parse(data []byte) (Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return Snapshot{}, fmt.Errorf("snapshot must be a JSON object")
	}

	if _, ok := top["slots"]; !ok {
		return Snapshot{Format: FormatVersion, Slots: unquoteSlots(top)}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Format > FormatVersion {
		return Snapshot{}, fmt.Errorf("snapshot format %d is newer than supported %d", s.Format, FormatVersion)
	}
	if s.Slots == nil {
		s.Slots = map[string]json.RawMessage{}
	}
	s.Slots = unquoteSlots(s.Slots)
	return s, nil
}

// unquoteSlots replaces string values that hold JSON with that JSON. Other
// strings are kept and later refused by the journal as not being arrays.
func unquoteSlots(slots map[string]json.RawMessage) map[string]json.RawMessage {
	for key, raw := range slots {
		if len(raw) == 0 || raw[0] != '"' {
			continue
		}
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil || !json.Valid([]byte(inner)) {
			continue
		}
		slots[key] = json.RawMessage(inner)
	}
	return slots
}

// FileName names a snapshot taken at t.
func FileName(t time.Time) string {
	return "workbook-" + t.UTC().Format("20060102T150405Z") + ".json"
}
