package workbook

import (
	"encoding/json"
	"strings"
)

// ButRebuttal answers a "yes, but" objection.
type ButRebuttal struct {
	ID       int64  `json:"id"`
	But      string `json:"but"`
	Rebuttal string `json:"rebuttal"`
}

func (e ButRebuttal) RecordID() int64 { return e.ID }

func ButRebuttals() Schema[ButRebuttal] {
	return Schema[ButRebuttal]{
		Name:        "butrebuttal",
		Title:       "But Rebuttal",
		Description: "Answer each \"yes, but\" with a rebuttal.",
		Key:         "butrebuttal.entries",
		Migrate: func(raw json.RawMessage) (ButRebuttal, error) {
			return decode(raw, ButRebuttal{})
		},
		Prepare: func(e ButRebuttal) ButRebuttal {
			e.But = strings.TrimSpace(e.But)
			e.Rebuttal = strings.TrimSpace(e.Rebuttal)
			return e
		},
		Valid:  func(e ButRebuttal) bool { return e.But != "" && e.Rebuttal != "" },
		WithID: func(e ButRebuttal, id int64) ButRebuttal { e.ID = id; return e },
	}
}

// SelfEndorsement replaces a self-downing thought with an endorsing one.
type SelfEndorsement struct {
	ID        int64  `json:"id"`
	Downing   string `json:"downing"`
	Endorsing string `json:"endorsing"`
}

func (e SelfEndorsement) RecordID() int64 { return e.ID }

func SelfEndorsements() Schema[SelfEndorsement] {
	return Schema[SelfEndorsement]{
		Name:        "selfendorse",
		Title:       "Self-Endorsement",
		Description: "Replace self-downing statements with self-endorsing ones.",
		Key:         "selfendorse.entries",
		Migrate: func(raw json.RawMessage) (SelfEndorsement, error) {
			return decode(raw, SelfEndorsement{})
		},
		Prepare: func(e SelfEndorsement) SelfEndorsement {
			e.Downing = strings.TrimSpace(e.Downing)
			e.Endorsing = strings.TrimSpace(e.Endorsing)
			return e
		},
		Valid:  func(e SelfEndorsement) bool { return e.Downing != "" && e.Endorsing != "" },
		WithID: func(e SelfEndorsement, id int64) SelfEndorsement { e.ID = id; return e },
	}
}

// Disarming records a criticism and the part of it one can agree with.
// Entries written before the agreement field existed load with an empty one.
type Disarming struct {
	ID        int64  `json:"id"`
	Activity  string `json:"activity"`
	Criticism string `json:"criticism"`
	Agreement string `json:"agreement"`
}

func (e Disarming) RecordID() int64 { return e.ID }

func DisarmingTechnique() Schema[Disarming] {
	return Schema[Disarming]{
		Name:        "disarming",
		Title:       "Disarming Technique",
		Description: "Find the truth in a criticism and agree with it.",
		Key:         "disarming.entries",
		Migrate: func(raw json.RawMessage) (Disarming, error) {
			return decode(raw, Disarming{})
		},
		Prepare: func(e Disarming) Disarming {
			e.Activity = strings.TrimSpace(e.Activity)
			e.Criticism = strings.TrimSpace(e.Criticism)
			e.Agreement = strings.TrimSpace(e.Agreement)
			return e
		},
		Valid:  func(e Disarming) bool { return e.Activity != "" },
		WithID: func(e Disarming, id int64) Disarming { e.ID = id; return e },
	}
}

// TestCant is an experiment against an "I can't" belief.
type TestCant struct {
	ID     int64  `json:"id"`
	Belief string `json:"belief"`
	Plan   string `json:"plan"`
	Result string `json:"result,omitempty"` // "success", "failure" or unset
}

func (e TestCant) RecordID() int64 { return e.ID }

func TestCants() Schema[TestCant] {
	prepare := func(e TestCant) TestCant {
		e.Belief = strings.TrimSpace(e.Belief)
		e.Plan = strings.TrimSpace(e.Plan)
		if e.Result != "success" && e.Result != "failure" {
			e.Result = ""
		}
		return e
	}
	return Schema[TestCant]{
		Name:        "testcants",
		Title:       "Test Your Can'ts",
		Description: "Plan an experiment that tests an \"I can't\" belief and record the outcome.",
		Key:         "testcants.entries",
		Migrate: func(raw json.RawMessage) (TestCant, error) {
			e, err := decode(raw, TestCant{})
			if err != nil {
				return e, err
			}
			return prepare(e), nil
		},
		Prepare: prepare,
		Valid:   func(e TestCant) bool { return e.Belief != "" && e.Plan != "" },
		WithID:  func(e TestCant, id int64) TestCant { e.ID = id; return e },
		Aggregate: func(c []TestCant) any {
			var s struct {
				Success int `json:"success"`
				Failure int `json:"failure"`
				Pending int `json:"pending"`
			}
			for _, e := range c {
				switch e.Result {
				case "success":
					s.Success++
				case "failure":
					s.Failure++
				default:
					s.Pending++
				}
			}
			return s
		},
	}
}
