package workbook

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/kalambet/workbook/internal/recordstore"
	"github.com/kalambet/workbook/internal/score"
)

// WeightedItem is a pro or con with an importance weight from 1 to 10.
type WeightedItem struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// ProsCons weighs the pros and cons of a decision.
type ProsCons struct {
	ID       int64          `json:"id"`
	Decision string         `json:"decision"`
	Pros     []WeightedItem `json:"pros"`
	Cons     []WeightedItem `json:"cons"`
}

func (e ProsCons) RecordID() int64 { return e.ID }

type prosConsSummary struct {
	Pros    float64 `json:"pros"`
	Cons    float64 `json:"cons"`
	Score   float64 `json:"score"`
	Display string  `json:"display"`
}

// ProsConsScore is the sum of pro weights minus the sum of con weights.
func ProsConsScore(e ProsCons) float64 {
	weight := func(it WeightedItem) float64 { return it.Weight }
	return score.SumBy(e.Pros, weight) - score.SumBy(e.Cons, weight)
}

func weightedList(get func(ProsCons) []WeightedItem, set func(ProsCons, []WeightedItem) ProsCons) List[ProsCons] {
	return NewList(recordstore.SubList[ProsCons, WeightedItem, int64]{
		Get: get,
		Set: set,
		Key: weightedKey,
	}, ItemRules[ProsCons, WeightedItem]{
		New: func() WeightedItem { return WeightedItem{Weight: 5} },
		Prepare: func(it WeightedItem) WeightedItem {
			it.Description = strings.TrimSpace(it.Description)
			return it
		},
		Valid:      func(it WeightedItem) bool { return it.Description != "" },
		WithID:     weightedWithID,
		SiblingIDs: prosConsIDs,
	})
}

func weightedKey(it WeightedItem) int64 { return it.ID }

func weightedWithID(it WeightedItem, id int64) WeightedItem { it.ID = id; return it }

func prosConsIDs(e ProsCons) []int64 {
	var ids []int64
	for _, it := range slices.Concat(e.Pros, e.Cons) {
		ids = append(ids, it.ID)
	}
	return ids
}

func ProsConsList() Schema[ProsCons] {
	normalize := func(e ProsCons) ProsCons {
		e.Decision = strings.TrimSpace(e.Decision)
		ids := newItemIDs(prosConsIDs(e)...)
		e.Pros = uniqueItems(ids, e.Pros, weightedKey, weightedWithID)
		e.Cons = uniqueItems(ids, e.Cons, weightedKey, weightedWithID)
		return e
	}
	return Schema[ProsCons]{
		Name:        "proscons",
		Title:       "Pros and Cons",
		Description: "Weigh a decision by its weighted pros and cons.",
		Key:         "proscons.entries",
		Migrate: func(raw json.RawMessage) (ProsCons, error) {
			e, err := decode(raw, ProsCons{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: normalize,
		Valid:   func(e ProsCons) bool { return e.Decision != "" },
		WithID:  func(e ProsCons, id int64) ProsCons { e.ID = id; return e },
		Lists: map[string]List[ProsCons]{
			"pros": weightedList(
				func(e ProsCons) []WeightedItem { return e.Pros },
				func(e ProsCons, items []WeightedItem) ProsCons { e.Pros = items; return e }),
			"cons": weightedList(
				func(e ProsCons) []WeightedItem { return e.Cons },
				func(e ProsCons, items []WeightedItem) ProsCons { e.Cons = items; return e }),
		},
		Summarize: func(e ProsCons) any {
			weight := func(it WeightedItem) float64 { return it.Weight }
			s := ProsConsScore(e)
			return prosConsSummary{
				Pros:    score.SumBy(e.Pros, weight),
				Cons:    score.SumBy(e.Cons, weight),
				Score:   s,
				Display: score.FormatSigned(s, 0),
			}
		},
	}
}

// RiskReward lists up to three risks and three rewards of a behavior, each side
// scaled by a weight from 1 to 10.
type RiskReward struct {
	ID           int64   `json:"id"`
	Behavior     string  `json:"behavior"`
	Risk1        string  `json:"risk1"`
	Risk2        string  `json:"risk2"`
	Risk3        string  `json:"risk3"`
	Reward1      string  `json:"reward1"`
	Reward2      string  `json:"reward2"`
	Reward3      string  `json:"reward3"`
	RiskWeight   float64 `json:"riskWeight"`
	RewardWeight float64 `json:"rewardWeight"`
}

func (e RiskReward) RecordID() int64 { return e.ID }

type riskRewardSummary struct {
	Risks       int     `json:"risks"`
	Rewards     int     `json:"rewards"`
	RiskScore   float64 `json:"riskScore"`
	RewardScore float64 `json:"rewardScore"`
	Net         float64 `json:"net"`
	Display     string  `json:"display"`
}

func countFilled(fields ...string) int {
	n := 0
	for _, f := range fields {
		if !blank(f) {
			n++
		}
	}
	return n
}

// RiskRewardNet is the weighted reward count minus the weighted risk count.
func RiskRewardNet(e RiskReward) float64 {
	risks := countFilled(e.Risk1, e.Risk2, e.Risk3)
	rewards := countFilled(e.Reward1, e.Reward2, e.Reward3)
	return float64(rewards)*e.RewardWeight - float64(risks)*e.RiskWeight
}

func RiskRewardAnalysis() Schema[RiskReward] {
	defaults := RiskReward{RiskWeight: 1, RewardWeight: 1}
	prepare := func(e RiskReward) RiskReward {
		for _, f := range []*string{&e.Behavior, &e.Risk1, &e.Risk2, &e.Risk3, &e.Reward1, &e.Reward2, &e.Reward3} {
			*f = strings.TrimSpace(*f)
		}
		e.RiskWeight = min(max(e.RiskWeight, 1), 10)
		e.RewardWeight = min(max(e.RewardWeight, 1), 10)
		return e
	}
	return Schema[RiskReward]{
		Name:        "riskreward",
		Title:       "Risk and Reward",
		Description: "List the risks and rewards of a behavior and weigh each side.",
		Key:         "riskreward.entries",
		Migrate: func(raw json.RawMessage) (RiskReward, error) {
			return decode(raw, defaults)
		},
		Prepare: prepare,
		Valid:   func(e RiskReward) bool { return e.Behavior != "" },
		WithID:  func(e RiskReward, id int64) RiskReward { e.ID = id; return e },
		Summarize: func(e RiskReward) any {
			risks := countFilled(e.Risk1, e.Risk2, e.Risk3)
			rewards := countFilled(e.Reward1, e.Reward2, e.Reward3)
			net := RiskRewardNet(e)
			return riskRewardSummary{
				Risks:       risks,
				Rewards:     rewards,
				RiskScore:   float64(risks) * e.RiskWeight,
				RewardScore: float64(rewards) * e.RewardWeight,
				Net:         net,
				Display:     score.FormatSigned(net, 0),
			}
		},
	}
}

// Outcome is a possible risk or reward with a value from -100 to 100 and a
// probability in percent.
type Outcome struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
	Probability float64 `json:"probability"`
}

// ExpectedOutcome weighs risks and rewards of an item by their expected value.
type ExpectedOutcome struct {
	ID      int64     `json:"id"`
	Item    string    `json:"item"`
	Risks   []Outcome `json:"risks"`
	Rewards []Outcome `json:"rewards"`
}

func (e ExpectedOutcome) RecordID() int64 { return e.ID }

type expectedOutcomeSummary struct {
	RiskExpected   float64 `json:"riskExpected"`
	RewardExpected float64 `json:"rewardExpected"`
	Net            float64 `json:"net"`
	Display        string  `json:"display"`
}

func outcomeEV(items []Outcome) float64 {
	return score.TotalExpectedValue(items,
		func(o Outcome) float64 { return o.Value },
		func(o Outcome) float64 { return o.Probability })
}

// ExpectedNet sums the expected value of every risk and reward.
func ExpectedNet(e ExpectedOutcome) float64 {
	return outcomeEV(e.Risks) + outcomeEV(e.Rewards)
}

func outcomeList(get func(ExpectedOutcome) []Outcome, set func(ExpectedOutcome, []Outcome) ExpectedOutcome, defaultValue float64) List[ExpectedOutcome] {
	return NewList(recordstore.SubList[ExpectedOutcome, Outcome, int64]{
		Get: get,
		Set: set,
		Key: outcomeKey,
	}, ItemRules[ExpectedOutcome, Outcome]{
		New: func() Outcome { return Outcome{Value: defaultValue, Probability: 50} },
		Prepare: func(o Outcome) Outcome {
			o.Description = strings.TrimSpace(o.Description)
			o.Value = min(max(o.Value, -100), 100)
			o.Probability = min(max(o.Probability, 1), 100)
			return o
		},
		Valid:      func(o Outcome) bool { return o.Description != "" },
		WithID:     outcomeWithID,
		SiblingIDs: outcomeIDs,
	})
}

func outcomeKey(o Outcome) int64 { return o.ID }

func outcomeWithID(o Outcome, id int64) Outcome { o.ID = id; return o }

func outcomeIDs(e ExpectedOutcome) []int64 {
	var ids []int64
	for _, o := range slices.Concat(e.Risks, e.Rewards) {
		ids = append(ids, o.ID)
	}
	return ids
}

func RiskRewardExpected() Schema[ExpectedOutcome] {
	normalize := func(e ExpectedOutcome) ExpectedOutcome {
		e.Item = strings.TrimSpace(e.Item)
		ids := newItemIDs(outcomeIDs(e)...)
		e.Risks = uniqueItems(ids, e.Risks, outcomeKey, outcomeWithID)
		e.Rewards = uniqueItems(ids, e.Rewards, outcomeKey, outcomeWithID)
		return e
	}
	return Schema[ExpectedOutcome]{
		Name:        "riskreward2",
		Title:       "Risk and Reward: Expected Value",
		Description: "Weigh risks and rewards by value and probability.",
		Key:         "riskreward2.entries",
		Migrate: func(raw json.RawMessage) (ExpectedOutcome, error) {
			e, err := decode(raw, ExpectedOutcome{})
			if err != nil {
				return e, err
			}
			return normalize(e), nil
		},
		Prepare: normalize,
		Valid:   func(e ExpectedOutcome) bool { return e.Item != "" },
		WithID:  func(e ExpectedOutcome, id int64) ExpectedOutcome { e.ID = id; return e },
		Lists: map[string]List[ExpectedOutcome]{
			"risks": outcomeList(
				func(e ExpectedOutcome) []Outcome { return e.Risks },
				func(e ExpectedOutcome, o []Outcome) ExpectedOutcome { e.Risks = o; return e },
				-10),
			"rewards": outcomeList(
				func(e ExpectedOutcome) []Outcome { return e.Rewards },
				func(e ExpectedOutcome, o []Outcome) ExpectedOutcome { e.Rewards = o; return e },
				10),
		},
		Summarize: func(e ExpectedOutcome) any {
			net := ExpectedNet(e)
			return expectedOutcomeSummary{
				RiskExpected:   outcomeEV(e.Risks),
				RewardExpected: outcomeEV(e.Rewards),
				Net:            net,
				Display:        score.FormatSigned(net, 1),
			}
		},
	}
}
