package workbook

import (
	"encoding/json"
	"strings"

	"github.com/kalambet/workbook/internal/score"
)

// CantLose weighs the negatives and positives of an action so that either
// outcome is a win.
type CantLose struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Negatives []Note `json:"negatives"`
	Positives []Note `json:"positives"`
}

func (e CantLose) RecordID() int64 { return e.ID }

type cantLoseSummary struct {
	Negatives int `json:"negatives"`
	Positives int `json:"positives"`
}

func CantLoseSystem() Schema[CantLose] {
	normalize := func(e CantLose) CantLose {
		e.Action = strings.TrimSpace(e.Action)
		notes := numberNotes(e.Negatives, e.Positives)
		e.Negatives, e.Positives = notes[0], notes[1]
		return e
	}
	siblings := func(e CantLose) []int64 { return noteIDs(e.Negatives, e.Positives) }
	return Schema[CantLose]{
		Name:        "cantlose",
		Title:       "Can't Lose System",
		Description: "List what could go wrong and what you gain either way.",
		Key:         "cantlose.entries",
		Migrate: func(raw json.RawMessage) (CantLose, error) {
			e, err := decode(raw, CantLose{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: normalize,
		Valid:   func(e CantLose) bool { return e.Action != "" },
		WithID:  func(e CantLose, id int64) CantLose { e.ID = id; return e },
		Lists: map[string]List[CantLose]{
			"negatives": noteList(
				func(e CantLose) []Note { return e.Negatives },
				func(e CantLose, n []Note) CantLose { e.Negatives = n; return e },
				true, siblings),
			"positives": noteList(
				func(e CantLose) []Note { return e.Positives },
				func(e CantLose, n []Note) CantLose { e.Positives = n; return e },
				true, siblings),
		},
		Summarize: func(e CantLose) any {
			return cantLoseSummary{Negatives: len(e.Negatives), Positives: len(e.Positives)}
		},
	}
}

// Motivation lists the pros and cons of an activity one feels pushed into.
type Motivation struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Pros  []Note `json:"pros"`
	Cons  []Note `json:"cons"`
}

func (e Motivation) RecordID() int64 { return e.ID }

type motivationSummary struct {
	Pros    int    `json:"pros"`
	Cons    int    `json:"cons"`
	Balance int    `json:"balance"`
	Display string `json:"display"`
}

func MotivationWithoutCoercion() Schema[Motivation] {
	normalize := func(e Motivation) Motivation {
		e.Title = strings.TrimSpace(e.Title)
		notes := numberNotes(e.Pros, e.Cons)
		e.Pros, e.Cons = notes[0], notes[1]
		return e
	}
	siblings := func(e Motivation) []int64 { return noteIDs(e.Pros, e.Cons) }
	return Schema[Motivation]{
		Name:        "motivation",
		Title:       "Motivation Without Coercion",
		Description: "Weigh what you want to do against what you feel you should do.",
		Key:         "motivation.activities",
		Migrate: func(raw json.RawMessage) (Motivation, error) {
			e, err := decode(raw, Motivation{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: normalize,
		Valid:   func(e Motivation) bool { return e.Title != "" },
		WithID:  func(e Motivation, id int64) Motivation { e.ID = id; return e },
		Lists: map[string]List[Motivation]{
			"pros": noteList(
				func(e Motivation) []Note { return e.Pros },
				func(e Motivation, n []Note) Motivation { e.Pros = n; return e },
				true, siblings),
			"cons": noteList(
				func(e Motivation) []Note { return e.Cons },
				func(e Motivation, n []Note) Motivation { e.Cons = n; return e },
				true, siblings),
		},
		Summarize: func(e Motivation) any {
			balance := len(e.Pros) - len(e.Cons)
			return motivationSummary{
				Pros:    len(e.Pros),
				Cons:    len(e.Cons),
				Balance: balance,
				Display: score.FormatSigned(balance, 0),
			}
		},
	}
}

// Visualization pictures a successful outcome and what makes it worth it.
type Visualization struct {
	ID       int64  `json:"id"`
	Activity string `json:"activity"`
	Pros     []Note `json:"pros"`
	Scene    string `json:"scene"`
}

func (e Visualization) RecordID() int64 { return e.ID }

func VisualizeSuccess() Schema[Visualization] {
	normalize := func(e Visualization) Visualization {
		e.Activity = strings.TrimSpace(e.Activity)
		e.Scene = strings.TrimSpace(e.Scene)
		e.Pros = numberNotes(e.Pros)[0]
		return e
	}
	return Schema[Visualization]{
		Name:        "visualize",
		Title:       "Visualize Success",
		Description: "Imagine the activity going well and note why it is worth doing.",
		Key:         "visualize.entries",
		Migrate: func(raw json.RawMessage) (Visualization, error) {
			e, err := decode(raw, Visualization{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: normalize,
		Valid: func(e Visualization) bool {
			return e.Activity != "" || len(e.Pros) > 0 || e.Scene != ""
		},
		WithID: func(e Visualization, id int64) Visualization { e.ID = id; return e },
		Lists: map[string]List[Visualization]{
			"pros": noteList(
				func(e Visualization) []Note { return e.Pros },
				func(e Visualization, n []Note) Visualization { e.Pros = n; return e },
				true, nil),
		},
	}
}
