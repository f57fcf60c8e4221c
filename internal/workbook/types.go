package workbook

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/workbook/internal/recordstore"
)

// Note is a short free-text sub-item. Earlier releases stored these lists as
// plain strings, so a Note also decodes from a bare JSON string.
type Note struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

func (n *Note) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Note{Text: s}
		return nil
	}
	type plain Note
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*n = Note(p)
	return nil
}

func prepareNote(n Note) Note {
	n.Text = strings.TrimSpace(n.Text)
	return n
}

func validNote(n Note) bool { return n.Text != "" }

func noteWithID(n Note, id int64) Note {
	n.ID = id
	return n
}

// numberNotes drops empty notes from each list and gives the rest ids that are
// unique across all the lists. Legacy notes carry no id and are numbered after
// the largest id already present.
func numberNotes(lists ...[]Note) [][]Note {
	ids := newItemIDs(noteIDs(lists...)...)
	out := make([][]Note, len(lists))
	for i, l := range lists {
		kept := make([]Note, 0, len(l))
		for _, n := range l {
			if n = prepareNote(n); n.Text != "" {
				kept = append(kept, n)
			}
		}
		out[i] = uniqueItems(ids, kept, func(n Note) int64 { return n.ID }, noteWithID)
	}
	return out
}

func noteList[T recordstore.Record](get func(T) []Note, set func(T, []Note) T, prepend bool, siblings func(T) []int64) List[T] {
	return NewList(recordstore.SubList[T, Note, int64]{
		Get:     get,
		Set:     set,
		Key:     func(n Note) int64 { return n.ID },
		Prepend: prepend,
	}, ItemRules[T, Note]{
		Prepare:    prepareNote,
		Valid:      validNote,
		WithID:     noteWithID,
		SiblingIDs: siblings,
	})
}

func noteIDs(lists ...[]Note) []int64 {
	var ids []int64
	for _, l := range lists {
		for _, n := range l {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Lenient is a number that decodes from numbers, numeric strings and booleans;
// anything else becomes 0.
type Lenient float64

func (l *Lenient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*l = 1
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*l = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			*l = 0
			return nil
		}
		*l = Lenient(f)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			*l = 0
			return nil
		}
		*l = Lenient(f)
	}
	return nil
}
