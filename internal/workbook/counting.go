package workbook

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kalambet/workbook/internal/recordstore"
	"github.com/kalambet/workbook/internal/score"
)

// Activity is one counted activity with its value.
type Activity struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Value Lenient `json:"value"`
}

// Measurement tracks a set of activities that count toward something.
type Measurement struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Activities []Activity `json:"activities"`
}

func (e Measurement) RecordID() int64 { return e.ID }

type measurementSummary struct {
	Activities int     `json:"activities"`
	Counter    float64 `json:"counter"`
}

// Counter sums the values of every activity.
func Counter(e Measurement) float64 {
	return score.SumBy(e.Activities, func(a Activity) float64 { return float64(a.Value) })
}

func activityKey(a Activity) int64 { return a.ID }

func activityWithID(a Activity, id int64) Activity { a.ID = id; return a }

func activityIDs(e Measurement) []int64 {
	ids := make([]int64, len(e.Activities))
	for i, a := range e.Activities {
		ids[i] = a.ID
	}
	return ids
}

func CountWhatCounts() Schema[Measurement] {
	normalize := func(e Measurement) Measurement {
		e.Title = strings.TrimSpace(e.Title)
		ids := newItemIDs(activityIDs(e)...)
		e.Activities = uniqueItems(ids, e.Activities, activityKey, activityWithID)
		return e
	}
	return Schema[Measurement]{
		Name:        "countwhat",
		Title:       "Count What Counts",
		Description: "Give activities a value and see what they add up to.",
		Key:         "countwhat.entries",
		Migrate: func(raw json.RawMessage) (Measurement, error) {
			e, err := decode(raw, Measurement{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: normalize,
		Valid:   func(e Measurement) bool { return e.Title != "" },
		WithID:  func(e Measurement, id int64) Measurement { e.ID = id; return e },
		Lists: map[string]List[Measurement]{
			"activities": NewList(recordstore.SubList[Measurement, Activity, int64]{
				Get:     func(e Measurement) []Activity { return e.Activities },
				Set:     func(e Measurement, a []Activity) Measurement { e.Activities = a; return e },
				Key:     activityKey,
				Prepend: true,
			}, ItemRules[Measurement, Activity]{
				Prepare: func(a Activity) Activity { a.Name = strings.TrimSpace(a.Name); return a },
				Valid:   func(a Activity) bool { return a.Name != "" },
				WithID:  activityWithID,
			}),
		},
		Summarize: func(e Measurement) any {
			return measurementSummary{Activities: len(e.Activities), Counter: Counter(e)}
		},
	}
}

// Step is one small step toward a goal.
type Step struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Goal is broken into little steps. Time is the "hh:mm" it was planned for.
type Goal struct {
	ID    int64  `json:"id"`
	Time  string `json:"time"`
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

func (e Goal) RecordID() int64 { return e.ID }

type goalSummary struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

func stepKey(s Step) int64 { return s.ID }

func stepWithID(s Step, id int64) Step { s.ID = id; return s }

func stepIDs(e Goal) []int64 {
	ids := make([]int64, len(e.Steps))
	for i, s := range e.Steps {
		ids[i] = s.ID
	}
	return ids
}

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// LittleSteps fills a missing or malformed time with the current UTC time.
func LittleSteps(now func() time.Time) Schema[Goal] {
	normalize := func(e Goal) Goal {
		e.Title = strings.TrimSpace(e.Title)
		e.Steps = uniqueItems(newItemIDs(stepIDs(e)...), e.Steps, stepKey, stepWithID)
		return e
	}
	return Schema[Goal]{
		Name:        "littlesteps",
		Title:       "Little Steps",
		Description: "Break a goal into small steps and tick them off.",
		Key:         "little.steps.goals",
		Migrate: func(raw json.RawMessage) (Goal, error) {
			e, err := decode(raw, Goal{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: func(e Goal) Goal {
			e = normalize(e)
			if !clockTime.MatchString(e.Time) {
				e.Time = now().UTC().Format("15:04")
			}
			return e
		},
		Valid:  func(e Goal) bool { return e.Title != "" },
		WithID: func(e Goal, id int64) Goal { e.ID = id; return e },
		Lists: map[string]List[Goal]{
			"steps": NewList(recordstore.SubList[Goal, Step, int64]{
				Get:     func(e Goal) []Step { return e.Steps },
				Set:     func(e Goal, s []Step) Goal { e.Steps = s; return e },
				Key:     stepKey,
				Prepend: true,
			}, ItemRules[Goal, Step]{
				Prepare: func(s Step) Step { s.Text = strings.TrimSpace(s.Text); return s },
				Valid:   func(s Step) bool { return s.Text != "" },
				WithID:  stepWithID,
			}),
		},
		Summarize: func(e Goal) any {
			done := len(slices.DeleteFunc(slices.Clone(e.Steps), func(s Step) bool { return !s.Done }))
			return goalSummary{Done: done, Total: len(e.Steps)}
		},
	}
}
