package workbook

import (
	"encoding/json"
	"strings"

	"github.com/kalambet/workbook/internal/recordstore"
	"github.com/kalambet/workbook/internal/score"
)

// DefaultConfidence is assigned to wellness components that carry none.
const DefaultConfidence = 70

// WellnessComponent rates the impact of a decision on one area of wellness.
// Impact runs from -10 to 10 and confidence from 1 to 100 percent.
type WellnessComponent struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Impact      float64 `json:"impact"`
	Confidence  float64 `json:"confidence"`
}

// WellnessRisk rates a decision across the fixed wellness components.
type WellnessRisk struct {
	ID         int64               `json:"id"`
	Decision   string              `json:"decision"`
	Components []WellnessComponent `json:"components"`
}

func (e WellnessRisk) RecordID() int64 { return e.ID }

var wellnessAreas = []WellnessComponent{
	{ID: "physical", Label: "Physical Wellness", Description: "Impact on physical health, fitness, energy levels, nutrition, and overall bodily well-being"},
	{ID: "emotional", Label: "Emotional Wellness", Description: "Effect on mood, emotional regulation, stress management, and psychological well-being"},
	{ID: "intellectual", Label: "Intellectual Wellness", Description: "Influence on learning, creativity, critical thinking, and mental stimulation"},
	{ID: "social", Label: "Social Wellness", Description: "Impact on relationships, community connections, social skills, and interpersonal bonds"},
	{ID: "spiritual", Label: "Spiritual Wellness", Description: "Effect on sense of purpose, meaning, values, beliefs, and connection to something greater"},
	{ID: "environmental", Label: "Environmental Wellness", Description: "Impact on living/working spaces, nature connection, and environmental sustainability"},
	{ID: "occupational", Label: "Occupational Wellness", Description: "Effect on career satisfaction, work-life balance, professional growth, and financial security"},
	{ID: "financial", Label: "Financial Wellness", Description: "Impact on financial stability, money management, economic security, and financial stress"},
}

// wellnessComponentDecoder defaults confidence when the stored component has none.
type wellnessComponentDecoder WellnessComponent

func (d *wellnessComponentDecoder) UnmarshalJSON(data []byte) error {
	type plain WellnessComponent
	p := plain{Confidence: DefaultConfidence}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = wellnessComponentDecoder(p)
	return nil
}

func clampComponent(c WellnessComponent) WellnessComponent {
	c.Impact = min(max(c.Impact, -10), 10)
	c.Confidence = min(max(c.Confidence, 0), 100)
	return c
}

// completeComponents returns the fixed component set in canonical order, taking
// impact and confidence from stored components where present.
func completeComponents(stored []WellnessComponent) []WellnessComponent {
	byID := make(map[string]WellnessComponent, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}
	out := make([]WellnessComponent, len(wellnessAreas))
	for i, area := range wellnessAreas {
		c := area
		c.Confidence = DefaultConfidence
		if s, ok := byID[area.ID]; ok {
			c.Impact = s.Impact
			c.Confidence = s.Confidence
		}
		out[i] = clampComponent(c)
	}
	return out
}

func migrateWellness(raw json.RawMessage) (WellnessRisk, error) {
	var shape struct {
		ID         int64                      `json:"id"`
		Decision   string                     `json:"decision"`
		Components []wellnessComponentDecoder `json:"components"`
	}
	if _, err := decode(raw, struct{}{}); err != nil {
		return WellnessRisk{}, err
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return WellnessRisk{}, err
	}
	stored := make([]WellnessComponent, len(shape.Components))
	for i, c := range shape.Components {
		stored[i] = WellnessComponent(c)
	}
	return WellnessRisk{
		ID:         shape.ID,
		Decision:   shape.Decision,
		Components: completeComponents(stored),
	}, nil
}

type wellnessSummary struct {
	Overall         float64 `json:"overall"`
	WeightedAverage float64 `json:"weightedAverage"`
	Display         string  `json:"display"`
}

// OverallWellness sums each component's confidence-weighted impact, or 0 when no
// component carries any confidence.
func OverallWellness(e WellnessRisk) float64 {
	total := score.SumBy(e.Components, func(c WellnessComponent) float64 {
		return score.WeightedImpact(c.Impact, c.Confidence)
	})
	if score.SumBy(e.Components, func(c WellnessComponent) float64 { return c.Confidence }) <= 0 {
		return 0
	}
	return total
}

// AverageImpact is the confidence-weighted average impact across components.
func AverageImpact(e WellnessRisk) float64 {
	impacts := make([]float64, len(e.Components))
	weights := make([]float64, len(e.Components))
	for i, c := range e.Components {
		impacts[i] = c.Impact
		weights[i] = c.Confidence
	}
	return score.WeightedAverage(impacts, weights)
}

func WellnessRiskAssessment() Schema[WellnessRisk] {
	return Schema[WellnessRisk]{
		Name:        "wellnessrisk",
		Title:       "Wellness Risk Assessment",
		Description: "Rate a decision's impact on each area of wellness and how sure you are.",
		Key:         "wellnessrisk.entries",
		Migrate:     migrateWellness,
		Prepare: func(e WellnessRisk) WellnessRisk {
			e.Decision = strings.TrimSpace(e.Decision)
			e.Components = completeComponents(e.Components)
			return e
		},
		Valid:  func(e WellnessRisk) bool { return e.Decision != "" },
		WithID: func(e WellnessRisk, id int64) WellnessRisk { e.ID = id; return e },
		Lists: map[string]List[WellnessRisk]{
			"components": NewFixedList(recordstore.SubList[WellnessRisk, WellnessComponent, string]{
				Get: func(e WellnessRisk) []WellnessComponent { return e.Components },
				Set: func(e WellnessRisk, c []WellnessComponent) WellnessRisk { e.Components = c; return e },
				Key: func(c WellnessComponent) string { return c.ID },
			}, clampComponent),
		},
		Summarize: func(e WellnessRisk) any {
			overall := OverallWellness(e)
			return wellnessSummary{
				Overall:         overall,
				WeightedAverage: AverageImpact(e),
				Display:         score.FormatSigned(overall, 1),
			}
		},
	}
}
