package workbook

import (
	"encoding/json"
	"strings"

	"github.com/kalambet/workbook/internal/score"
)

// Antiprocrastination compares how hard and satisfying a task was predicted to
// be with how it turned out. Actual ratings stay null until filled in.
type Antiprocrastination struct {
	ID                    int64    `json:"id"`
	Date                  string   `json:"date"`
	Task                  string   `json:"task"`
	PredictedDifficulty   float64  `json:"predictedDifficulty"`
	PredictedSatisfaction float64  `json:"predictedSatisfaction"`
	ActualDifficulty      *float64 `json:"actualDifficulty"`
	ActualSatisfaction    *float64 `json:"actualSatisfaction"`
}

func (e Antiprocrastination) RecordID() int64 { return e.ID }

// Delta is a predicted-versus-actual difference. It is null until the actual
// value is known.
type Delta struct {
	Value   *float64 `json:"value"`
	Display string   `json:"display,omitempty"`
}

func deltaOf(predicted float64, actual *float64) Delta {
	if actual == nil {
		return Delta{}
	}
	d := score.Diff(predicted, *actual)
	return Delta{Value: &d, Display: score.FormatSigned(d, 0)}
}

type antiprocrastinationSummary struct {
	Difficulty   Delta `json:"difficulty"`
	Satisfaction Delta `json:"satisfaction"`
}

func AntiprocrastinationSheet() Schema[Antiprocrastination] {
	return Schema[Antiprocrastination]{
		Name:        "antiprocrastination",
		Title:       "Antiprocrastination Sheet",
		Description: "Predict how difficult and satisfying a task will be, then record how it went.",
		Key:         "antiprocrastination.entries",
		Migrate: func(raw json.RawMessage) (Antiprocrastination, error) {
			return decode(raw, Antiprocrastination{})
		},
		Draft: func(raw json.RawMessage) (Antiprocrastination, error) {
			return decode(raw, Antiprocrastination{PredictedDifficulty: 5, PredictedSatisfaction: 5})
		},
		Prepare: func(e Antiprocrastination) Antiprocrastination {
			e.Date = strings.TrimSpace(e.Date)
			e.Task = strings.TrimSpace(e.Task)
			return e
		},
		Valid:  func(e Antiprocrastination) bool { return e.Date != "" && e.Task != "" },
		WithID: func(e Antiprocrastination, id int64) Antiprocrastination { e.ID = id; return e },
		Summarize: func(e Antiprocrastination) any {
			return antiprocrastinationSummary{
				Difficulty:   deltaOf(e.PredictedDifficulty, e.ActualDifficulty),
				Satisfaction: deltaOf(e.PredictedSatisfaction, e.ActualSatisfaction),
			}
		},
	}
}

// PleasurePrediction compares predicted with actual satisfaction of an activity
// on a 0 to 10 scale.
type PleasurePrediction struct {
	ID        int64    `json:"id"`
	Date      string   `json:"date"`
	Activity  string   `json:"activity"`
	WithWho   string   `json:"withWho"`
	Predicted float64  `json:"predicted"`
	Actual    *float64 `json:"actual,omitempty"`
}

func (e PleasurePrediction) RecordID() int64 { return e.ID }

type pleasureSummary struct {
	Satisfaction Delta `json:"satisfaction"`
}

// unpredicted marks a draft that did not carry a prediction.
const unpredicted = -1

func PleasurePredictionSheet() Schema[PleasurePrediction] {
	return Schema[PleasurePrediction]{
		Name:        "pleasure",
		Title:       "Pleasure Predicting Sheet",
		Description: "Predict how satisfying an activity will be, then compare with how it felt.",
		Key:         "pleasure.entries",
		Migrate: func(raw json.RawMessage) (PleasurePrediction, error) {
			return decode(raw, PleasurePrediction{})
		},
		Draft: func(raw json.RawMessage) (PleasurePrediction, error) {
			return decode(raw, PleasurePrediction{Predicted: unpredicted})
		},
		Prepare: func(e PleasurePrediction) PleasurePrediction {
			e.Date = strings.TrimSpace(e.Date)
			e.Activity = strings.TrimSpace(e.Activity)
			e.WithWho = strings.TrimSpace(e.WithWho)
			return e
		},
		Valid: func(e PleasurePrediction) bool {
			return e.Activity != "" && e.Predicted != unpredicted
		},
		WithID: func(e PleasurePrediction, id int64) PleasurePrediction { e.ID = id; return e },
		Summarize: func(e PleasurePrediction) any {
			return pleasureSummary{Satisfaction: deltaOf(e.Predicted, e.Actual)}
		},
	}
}

// Emotions rates the intensity of five basic emotions.
type Emotions struct {
	Joy     float64 `json:"joy"`
	Anger   float64 `json:"anger"`
	Fear    float64 `json:"fear"`
	Sadness float64 `json:"sadness"`
	Disgust float64 `json:"disgust"`
}

// Distortions lists the cognitive distortions a thought record can be tagged
// with.
var Distortions = []string{
	"All-or-nothing thinking",
	"Overgeneralization",
	"Mental filter",
	"Discounting the positive",
	"Jumping to conclusions",
	"Magnification / Minimization",
	"Emotional reasoning",
	"Should statements",
	"Labeling",
	"Personalization",
}

// ThoughtRecord is a daily record of dysfunctional thoughts.
type ThoughtRecord struct {
	ID                   int64    `json:"id"`
	Date                 string   `json:"date"`
	Situation            string   `json:"situation"`
	Emotions             Emotions `json:"emotions"`
	AutomaticThoughts    string   `json:"automaticThoughts"`
	CognitiveDistortions []string `json:"cognitiveDistortions"`
	RationalResponse     string   `json:"rationalResponse"`
}

func (e ThoughtRecord) RecordID() int64 { return e.ID }

type thoughtSummary struct {
	EmotionTotal float64 `json:"emotionTotal"`
	Distortions  int     `json:"distortions"`
}

// knownDistortions keeps listed distortions once each, in the order given.
func knownDistortions(in []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(in))
	for _, d := range in {
		d = strings.TrimSpace(d)
		if seen[d] {
			continue
		}
		for _, known := range Distortions {
			if d == known {
				out = append(out, d)
				seen[d] = true
				break
			}
		}
	}
	return out
}

func DysfunctionalThoughts() Schema[ThoughtRecord] {
	prepare := func(e ThoughtRecord) ThoughtRecord {
		e.Date = strings.TrimSpace(e.Date)
		e.Situation = strings.TrimSpace(e.Situation)
		e.AutomaticThoughts = strings.TrimSpace(e.AutomaticThoughts)
		e.RationalResponse = strings.TrimSpace(e.RationalResponse)
		e.CognitiveDistortions = knownDistortions(e.CognitiveDistortions)
		return e
	}
	return Schema[ThoughtRecord]{
		Name:        "dysfunctional",
		Title:       "Daily Record of Dysfunctional Thoughts",
		Description: "Record the situation, emotions, automatic thoughts, distortions and a rational response.",
		Key:         "dysfunctional.entries",
		Migrate: func(raw json.RawMessage) (ThoughtRecord, error) {
			e, err := decode(raw, ThoughtRecord{})
			if err != nil {
				return e, err
			}
			e.CognitiveDistortions = orEmpty(e.CognitiveDistortions)
			return e, nil
		},
		Prepare: prepare,
		Valid: func(e ThoughtRecord) bool {
			return e.Situation != "" || e.AutomaticThoughts != ""
		},
		WithID: func(e ThoughtRecord, id int64) ThoughtRecord { e.ID = id; return e },
		Summarize: func(e ThoughtRecord) any {
			em := e.Emotions
			return thoughtSummary{
				EmotionTotal: score.Sum(em.Joy, em.Anger, em.Fear, em.Sadness, em.Disgust),
				Distortions:  len(e.CognitiveDistortions),
			}
		},
	}
}
