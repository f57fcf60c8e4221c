package workbook

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kalambet/workbook/internal/recordstore"
	"github.com/kalambet/workbook/internal/score"
)

// HoursPerDay is the number of blocks in the daily planner.
const HoursPerDay = 24

// TaggedItem is a planner note tagged as pro/con or tic/toc.
type TaggedItem struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// Todo is a planner checklist item.
type Todo struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// ActivityDetails holds everything planned for one hour beyond its activity.
type ActivityDetails struct {
	ID                   string       `json:"id"`
	ProsCons             []TaggedItem `json:"proscons"`
	TicTocs              []TaggedItem `json:"tictocs"`
	PleasurePrediction   float64      `json:"pleasurePrediction"`
	DifficultyPrediction float64      `json:"difficultyPrediction"`
	ActualPleasure       float64      `json:"actualPleasure"`
	ActualDifficulty     float64      `json:"actualDifficulty"`
	Todos                []Todo       `json:"todos"`
	Notes                string       `json:"notes"`
}

// ScheduleBlock is one hour of the planner, identified by the hour itself.
// Details are created the first time anything beyond the activity is set.
type ScheduleBlock struct {
	Hour     int              `json:"hour"`
	Activity string           `json:"activity"`
	Details  *ActivityDetails `json:"details,omitempty"`
}

func (b ScheduleBlock) RecordID() int64 { return int64(b.Hour) }

// NewDetails returns the default details for an hour.
func NewDetails(hour int) ActivityDetails {
	return ActivityDetails{
		ID:                   fmt.Sprintf("hour-%d", hour),
		ProsCons:             []TaggedItem{},
		TicTocs:              []TaggedItem{},
		PleasurePrediction:   5,
		DifficultyPrediction: 5,
		ActualPleasure:       5,
		ActualDifficulty:     5,
		Todos:                []Todo{},
	}
}

// details returns a copy of the block's details, or defaults when it has none.
func (b ScheduleBlock) details() ActivityDetails {
	if b.Details == nil {
		return NewDetails(b.Hour)
	}
	return *b.Details
}

func (b ScheduleBlock) withDetails(d ActivityDetails) ScheduleBlock {
	b.Details = &d
	return b
}

func migrateBlock(raw json.RawMessage) (ScheduleBlock, error) {
	var zero ScheduleBlock
	shape, err := decode(raw, struct {
		Hour     int             `json:"hour"`
		Activity string          `json:"activity"`
		Details  json.RawMessage `json:"details"`
	}{})
	if err != nil {
		return zero, err
	}
	if shape.Hour < 0 || shape.Hour >= HoursPerDay {
		return zero, fmt.Errorf("hour %d out of range", shape.Hour)
	}

	b := ScheduleBlock{Hour: shape.Hour, Activity: shape.Activity}
	if len(shape.Details) == 0 || string(shape.Details) == "null" {
		return b, nil
	}
	defaults := NewDetails(shape.Hour)
	defaults.ProsCons, defaults.TicTocs, defaults.Todos = nil, nil, nil
	d, err := decode(shape.Details, defaults)
	if err != nil {
		return zero, fmt.Errorf("details: %w", err)
	}
	d.ID = defaults.ID
	return b.withDetails(numberDetails(d)), nil
}

// patchBlock merges into the block's activity and, one level deeper, into its
// details. A null details value resets the hour to defaults.
func patchBlock(b ScheduleBlock, raw json.RawMessage) (ScheduleBlock, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return b, fmt.Errorf("patch must be a JSON object")
	}
	if a, ok := fields["activity"]; ok {
		if err := json.Unmarshal(a, &b.Activity); err != nil {
			return b, fmt.Errorf("activity: %w", err)
		}
	}
	if d, ok := fields["details"]; ok {
		if string(d) == "null" {
			b.Details = nil
			return b, nil
		}
		merged, err := recordstore.MergePatch(b.details(), d)
		if err != nil {
			return b, fmt.Errorf("details: %w", err)
		}
		b = b.withDetails(merged)
	}
	return b, nil
}

// seedPlanner returns one empty block per hour.
func seedPlanner() []ScheduleBlock {
	out := make([]ScheduleBlock, HoursPerDay)
	for h := range out {
		out[h] = ScheduleBlock{Hour: h}
	}
	return out
}

// normalizePlanner keeps exactly one block per hour, in hour order.
func normalizePlanner(c []ScheduleBlock) []ScheduleBlock {
	byHour := make(map[int]ScheduleBlock, len(c))
	for _, b := range c {
		if _, dup := byHour[b.Hour]; !dup {
			byHour[b.Hour] = b
		}
	}
	out := seedPlanner()
	for h := range out {
		if b, ok := byHour[h]; ok {
			out[h] = b
		}
	}
	return out
}

func plannerIDs(b ScheduleBlock) []int64 {
	return detailIDs(b.details())
}

func detailIDs(d ActivityDetails) []int64 {
	var ids []int64
	for _, it := range slices.Concat(d.ProsCons, d.TicTocs) {
		ids = append(ids, it.ID)
	}
	for _, t := range d.Todos {
		ids = append(ids, t.ID)
	}
	return ids
}

// numberDetails gives every tagged item and todo of an hour its own id.
func numberDetails(d ActivityDetails) ActivityDetails {
	ids := newItemIDs(detailIDs(d)...)
	d.ProsCons = uniqueItems(ids, d.ProsCons, taggedKey, taggedWithID)
	d.TicTocs = uniqueItems(ids, d.TicTocs, taggedKey, taggedWithID)
	d.Todos = uniqueItems(ids, d.Todos,
		func(t Todo) int64 { return t.ID },
		func(t Todo, id int64) Todo { t.ID = id; return t })
	return d
}

func taggedKey(it TaggedItem) int64 { return it.ID }

func taggedWithID(it TaggedItem, id int64) TaggedItem { it.ID = id; return it }

func taggedList(get func(ActivityDetails) []TaggedItem, set func(*ActivityDetails, []TaggedItem), tags ...string) List[ScheduleBlock] {
	return NewList(recordstore.SubList[ScheduleBlock, TaggedItem, int64]{
		Get: func(b ScheduleBlock) []TaggedItem { return get(b.details()) },
		Set: func(b ScheduleBlock, items []TaggedItem) ScheduleBlock {
			d := b.details()
			set(&d, items)
			return b.withDetails(d)
		},
		Key: taggedKey,
	}, ItemRules[ScheduleBlock, TaggedItem]{
		Prepare: func(it TaggedItem) TaggedItem {
			it.Text = strings.TrimSpace(it.Text)
			if !slices.Contains(tags, it.Type) {
				it.Type = tags[0]
			}
			return it
		},
		WithID:     taggedWithID,
		SiblingIDs: plannerIDs,
	})
}

type plannerSummary struct {
	Pros       int   `json:"pros"`
	Cons       int   `json:"cons"`
	Tics       int   `json:"tics"`
	Tocs       int   `json:"tocs"`
	TodosDone  int   `json:"todosDone"`
	TodosTotal int   `json:"todosTotal"`
	Pleasure   Delta `json:"pleasure"`
	Difficulty Delta `json:"difficulty"`
}

func DailyPlanner() Schema[ScheduleBlock] {
	return Schema[ScheduleBlock]{
		Name:        "dailyplanner",
		Title:       "Daily Planner",
		Description: "Plan each hour of the day with pros and cons, tic-tocs, predictions, todos and notes.",
		Key:         "dailyplanner.schedule",
		Migrate:     migrateBlock,
		Patch:       patchBlock,
		Prepare: func(b ScheduleBlock) ScheduleBlock {
			b.Activity = strings.TrimSpace(b.Activity)
			if b.Details != nil {
				d := *b.Details
				d.ID = fmt.Sprintf("hour-%d", b.Hour)
				b = b.withDetails(numberDetails(d))
			}
			return b
		},
		WithID: func(b ScheduleBlock, id int64) ScheduleBlock {
			b.Hour = int(id)
			return b
		},
		Lists: map[string]List[ScheduleBlock]{
			"proscons": taggedList(
				func(d ActivityDetails) []TaggedItem { return d.ProsCons },
				func(d *ActivityDetails, items []TaggedItem) { d.ProsCons = items },
				"pro", "con"),
			"tictocs": taggedList(
				func(d ActivityDetails) []TaggedItem { return d.TicTocs },
				func(d *ActivityDetails, items []TaggedItem) { d.TicTocs = items },
				"tic", "toc"),
			"todos": NewList(recordstore.SubList[ScheduleBlock, Todo, int64]{
				Get: func(b ScheduleBlock) []Todo { return b.details().Todos },
				Set: func(b ScheduleBlock, todos []Todo) ScheduleBlock {
					d := b.details()
					d.Todos = todos
					return b.withDetails(d)
				},
				Key: func(t Todo) int64 { return t.ID },
			}, ItemRules[ScheduleBlock, Todo]{
				Prepare:    func(t Todo) Todo { t.Text = strings.TrimSpace(t.Text); return t },
				WithID:     func(t Todo, id int64) Todo { t.ID = id; return t },
				SiblingIDs: plannerIDs,
			}),
		},
		Summarize: func(b ScheduleBlock) any {
			d := b.details()
			kind := func(it TaggedItem) string { return it.Type }
			done := 0
			for _, t := range d.Todos {
				if t.Completed {
					done++
				}
			}
			actualPleasure, actualDifficulty := d.ActualPleasure, d.ActualDifficulty
			return plannerSummary{
				Pros:       score.CountTagged(d.ProsCons, kind, "pro"),
				Cons:       score.CountTagged(d.ProsCons, kind, "con"),
				Tics:       score.CountTagged(d.TicTocs, kind, "tic"),
				Tocs:       score.CountTagged(d.TicTocs, kind, "toc"),
				TodosDone:  done,
				TodosTotal: len(d.Todos),
				Pleasure:   deltaOf(d.PleasurePrediction, &actualPleasure),
				Difficulty: deltaOf(d.DifficultyPrediction, &actualDifficulty),
			}
		},
		Seed:      seedPlanner,
		Normalize: normalizePlanner,
	}
}
