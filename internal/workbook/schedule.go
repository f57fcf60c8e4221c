package workbook

import (
	"encoding/json"
	"slices"
	"strings"
)

// TicToc is a task-interfering ("tic") thought or its task-oriented ("toc")
// answer.
type TicToc struct {
	ID      int64  `json:"id"`
	Thought string `json:"thought"`
	Type    string `json:"type"`
}

func (e TicToc) RecordID() int64 { return e.ID }

func prepareTicToc(e TicToc) TicToc {
	e.Thought = strings.TrimSpace(e.Thought)
	if e.Type != "toc" {
		e.Type = "tic"
	}
	return e
}

func TicTocs() Schema[TicToc] {
	return Schema[TicToc]{
		Name:        "tictoc",
		Title:       "Tic Toc Technique",
		Description: "Answer task-interfering thoughts with task-oriented ones.",
		Key:         "tictoc.entries",
		Migrate: func(raw json.RawMessage) (TicToc, error) {
			e, err := decode(raw, TicToc{})
			if err != nil {
				return e, err
			}
			return prepareTicToc(e), nil
		},
		Prepare: prepareTicToc,
		Valid:   func(e TicToc) bool { return e.Thought != "" },
		WithID:  func(e TicToc, id int64) TicToc { e.ID = id; return e },
		Aggregate: func(c []TicToc) any {
			var s struct {
				Tics int `json:"tics"`
				Tocs int `json:"tocs"`
			}
			for _, e := range c {
				if e.Type == "toc" {
					s.Tocs++
				} else {
					s.Tics++
				}
			}
			return s
		},
	}
}

// ScheduleItem is a task placed at an hour of the day.
type ScheduleItem struct {
	ID   int64  `json:"id"`
	Hour int    `json:"hour"`
	Task string `json:"task"`
}

func (e ScheduleItem) RecordID() int64 { return e.ID }

func clampHour(h int) int { return min(max(h, 0), 23) }

// DailySchedule keeps its items ordered by hour rather than newest-first.
func DailySchedule() Schema[ScheduleItem] {
	return Schema[ScheduleItem]{
		Name:        "dailyschedule",
		Title:       "Daily Activity Schedule",
		Description: "Plan tasks across the hours of the day.",
		Key:         "dailyschedule.items",
		Migrate: func(raw json.RawMessage) (ScheduleItem, error) {
			e, err := decode(raw, ScheduleItem{})
			if err != nil {
				return e, err
			}
			e.Hour = clampHour(e.Hour)
			return e, nil
		},
		Prepare: func(e ScheduleItem) ScheduleItem {
			e.Task = strings.TrimSpace(e.Task)
			e.Hour = clampHour(e.Hour)
			return e
		},
		Valid:  func(e ScheduleItem) bool { return e.Task != "" },
		WithID: func(e ScheduleItem, id int64) ScheduleItem { e.ID = id; return e },
		Normalize: func(c []ScheduleItem) []ScheduleItem {
			out := slices.Clone(c)
			slices.SortStableFunc(out, func(a, b ScheduleItem) int { return a.Hour - b.Hour })
			return out
		},
	}
}
