package workbook

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func TestProsConsScore(t *testing.T) {
	e := ProsCons{
		Pros: []WeightedItem{{Weight: 5}, {Weight: 3}},
		Cons: []WeightedItem{{Weight: 4}},
	}
	if got := ProsConsScore(e); got != 4 {
		t.Fatalf("score=%v, want 4", got)
	}
	sum := ProsConsList().Summarize(e).(prosConsSummary)
	if sum.Display != "+4" {
		t.Fatalf("display=%q, want +4", sum.Display)
	}
}

func TestRiskRewardNet(t *testing.T) {
	cases := []struct {
		e    RiskReward
		want float64
	}{
		{RiskReward{Risk1: "a", Risk2: " ", Reward1: "x", Reward2: "y", RiskWeight: 3, RewardWeight: 2}, 1},
		{RiskReward{Risk1: "a", Risk2: "b", Risk3: "c", RiskWeight: 1, RewardWeight: 1}, -3},
		{RiskReward{RiskWeight: 5, RewardWeight: 5}, 0},
	}
	for _, c := range cases {
		if got := RiskRewardNet(c.e); got != c.want {
			t.Fatalf("RiskRewardNet(%+v)=%v, want %v", c.e, got, c.want)
		}
	}
}

func TestExpectedNet(t *testing.T) {
	e := ExpectedOutcome{
		Risks:   []Outcome{{Value: -40, Probability: 50}},
		Rewards: []Outcome{{Value: 30, Probability: 100}},
	}
	if got := ExpectedNet(e); got != 10 {
		t.Fatalf("ExpectedNet=%v, want 10", got)
	}
	sum := RiskRewardExpected().Summarize(e).(expectedOutcomeSummary)
	if sum.RiskExpected != -20 || sum.Display != "+10.0" {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestWellnessScores(t *testing.T) {
	e := WellnessRisk{Components: []WellnessComponent{
		{ID: "physical", Impact: 6, Confidence: 50},
		{ID: "social", Impact: -2, Confidence: 100},
	}}
	if got := OverallWellness(e); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("OverallWellness=%v, want 1.0", got)
	}
	// (6*50 + -2*100) / 150
	if got := AverageImpact(e); math.Abs(got-100.0/150.0) > 1e-9 {
		t.Fatalf("AverageImpact=%v", got)
	}
	zero := WellnessRisk{Components: []WellnessComponent{{Impact: 8, Confidence: 0}}}
	if got := OverallWellness(zero); got != 0 {
		t.Fatalf("OverallWellness with no confidence=%v, want 0", got)
	}
	if got := AverageImpact(zero); got != 0 {
		t.Fatalf("AverageImpact with no confidence=%v, want 0", got)
	}
}

func TestAntiprocrastinationDeltas(t *testing.T) {
	e := Antiprocrastination{PredictedDifficulty: 8, PredictedSatisfaction: 3, ActualDifficulty: f64(5)}
	sum := AntiprocrastinationSheet().Summarize(e).(antiprocrastinationSummary)
	if sum.Difficulty.Value == nil || *sum.Difficulty.Value != -3 || sum.Difficulty.Display != "-3" {
		t.Errorf("difficulty delta = %+v", sum.Difficulty)
	}
	if sum.Satisfaction.Value != nil {
		t.Errorf("satisfaction delta should be unknown, got %v", *sum.Satisfaction.Value)
	}
}

func TestPleasureDraftRequiresPrediction(t *testing.T) {
	s := PleasurePredictionSheet()
	d, err := s.Draft(json.RawMessage(`{"activity":"Hike"}`))
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if s.Valid(s.Prepare(d)) {
		t.Error("draft without prediction should be invalid")
	}
	d, _ = s.Draft(json.RawMessage(`{"activity":"Hike","predicted":0}`))
	if !s.Valid(s.Prepare(d)) {
		t.Error("a prediction of 0 is still a prediction")
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"butrebuttal", ButRebuttals().Valid(ButRebuttals().Prepare(ButRebuttal{But: "x", Rebuttal: "  "}))},
		{"selfendorse", SelfEndorsements().Valid(SelfEndorsement{Downing: "a", Endorsing: "b"})},
		{"dysfunctional-thoughts-only", DysfunctionalThoughts().Valid(ThoughtRecord{AutomaticThoughts: "t"})},
		{"dysfunctional-empty", DysfunctionalThoughts().Valid(ThoughtRecord{})},
		{"visualize-pros-only", VisualizeSuccess().Valid(Visualization{Pros: []Note{{ID: 1, Text: "p"}}})},
		{"antiprocrastination-no-date", AntiprocrastinationSheet().Valid(Antiprocrastination{Task: "t"})},
		{"tictoc", TicTocs().Valid(TicToc{Thought: "t"})},
		{"schedule-empty-task", DailySchedule().Valid(ScheduleItem{Hour: 4})},
	}
	want := map[string]bool{
		"butrebuttal":                 false,
		"selfendorse":                 true,
		"dysfunctional-thoughts-only": true,
		"dysfunctional-empty":         false,
		"visualize-pros-only":         true,
		"antiprocrastination-no-date": false,
		"tictoc":                      true,
		"schedule-empty-task":         false,
	}
	for _, c := range cases {
		if c.valid != want[c.name] {
			t.Errorf("%s: valid=%v, want %v", c.name, c.valid, want[c.name])
		}
	}
	if DailyPlanner().Valid != nil {
		t.Error("planner blocks are seeded, not created")
	}
}

func TestNoteListAddAllocatesAcrossLists(t *testing.T) {
	s := CantLoseSystem()
	c := []CantLose{{ID: 1, Action: "a", Negatives: []Note{{ID: t0.UnixMilli(), Text: "n"}}, Positives: []Note{}}}

	c, item, ok, err := s.Lists["positives"].Add(c, 1, json.RawMessage(`"  gain  "`), t0)
	if err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}
	note := item.(Note)
	if note.ID != t0.UnixMilli()+1 || note.Text != "gain" {
		t.Errorf("added %+v, want id past the negative's id", note)
	}
	if _, _, ok, _ := s.Lists["positives"].Add(c, 1, json.RawMessage(`{"text":"   "}`), t0); ok {
		t.Error("blank note should be rejected")
	}
	if _, _, ok, _ := s.Lists["positives"].Add(c, 42, json.RawMessage(`"x"`), t0); ok {
		t.Error("missing parent should be a no-op")
	}
}

func TestProsConsItemsAppendWithDefaultWeight(t *testing.T) {
	s := ProsConsList()
	c := []ProsCons{{ID: 1, Decision: "d", Pros: []WeightedItem{{ID: 1, Description: "first", Weight: 2}}, Cons: []WeightedItem{}}}
	c, _, ok, err := s.Lists["pros"].Add(c, 1, json.RawMessage(`{"description":"second"}`), t0)
	if err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}
	if got := c[0].Pros[1]; got.Description != "second" || got.Weight != 5 {
		t.Errorf("appended pro = %+v", got)
	}

	id := c[0].Pros[1].ID
	c, _, ok, err = s.Lists["pros"].Patch(c, 1, jsonID(id), json.RawMessage(`{"weight":9}`))
	if err != nil || !ok {
		t.Fatalf("Patch: ok=%v err=%v", ok, err)
	}
	if got := ProsConsScore(c[0]); got != 11 {
		t.Errorf("score after patch = %v, want 11", got)
	}

	c, ok, err = s.Lists["pros"].Remove(c, 1, "1")
	if err != nil || !ok {
		t.Fatalf("Remove: ok=%v err=%v", ok, err)
	}
	if len(c[0].Pros) != 1 || c[0].Pros[0].ID != id {
		t.Errorf("pros after remove = %+v", c[0].Pros)
	}
	if _, _, err := s.Lists["pros"].Remove(c, 1, "abc"); err == nil {
		t.Error("non-numeric item id should error")
	}
}

func TestWellnessComponentPatch(t *testing.T) {
	s := WellnessRiskAssessment()
	e, err := s.Migrate(json.RawMessage(`{"id":1,"decision":"d"}`))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	c := []WellnessRisk{e}
	c, _, ok, err := s.Lists["components"].Patch(c, 1, "emotional", json.RawMessage(`{"impact":25,"confidence":40}`))
	if err != nil || !ok {
		t.Fatalf("Patch: ok=%v err=%v", ok, err)
	}
	got := c[0].Components[1]
	if got.ID != "emotional" || got.Impact != 10 || got.Confidence != 40 {
		t.Errorf("patched component = %+v, want impact clamped to 10", got)
	}
	if s.Lists["components"].Add != nil || s.Lists["components"].Remove != nil {
		t.Error("components are fixed")
	}
	if _, _, ok, _ := s.Lists["components"].Patch(c, 1, "nope", json.RawMessage(`{}`)); ok {
		t.Error("unknown component should be a no-op")
	}
}

func TestPlannerDetailsOnDemand(t *testing.T) {
	s := DailyPlanner()
	c := s.Seed()

	c, item, ok, err := s.Lists["todos"].Add(c, 7, json.RawMessage(`{"text":"pack"}`), t0)
	if err != nil || !ok {
		t.Fatalf("Add todo: ok=%v err=%v", ok, err)
	}
	if c[7].Details == nil {
		t.Fatal("details should be created on first item")
	}
	if c[7].Details.PleasurePrediction != 5 || c[7].Details.ID != "hour-7" {
		t.Errorf("details defaults = %+v", *c[7].Details)
	}
	if c[6].Details != nil {
		t.Error("other hours should stay untouched")
	}

	c, _, _, _ = s.Lists["proscons"].Add(c, 7, json.RawMessage(`{"type":"con"}`), t0)
	c, _, _, _ = s.Lists["tictocs"].Add(c, 7, json.RawMessage(`{"type":"bogus","text":"x"}`), t0)
	sum := s.Summarize(c[7]).(plannerSummary)
	want := plannerSummary{Cons: 1, Tics: 1, TodosTotal: 1,
		Pleasure:   Delta{Value: f64(0), Display: "+0"},
		Difficulty: Delta{Value: f64(0), Display: "+0"},
	}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	todo := item.(Todo)
	c, _, ok, _ = s.Lists["todos"].Patch(c, 7, jsonID(todo.ID), json.RawMessage(`{"completed":true}`))
	if !ok || !c[7].Details.Todos[0].Completed {
		t.Errorf("todo not completed: %+v", c[7].Details.Todos)
	}
}

func TestPlannerPatchMergesDetails(t *testing.T) {
	b := ScheduleBlock{Hour: 3}
	b, err := patchBlock(b, json.RawMessage(`{"activity":"Nap","details":{"actualPleasure":9}}`))
	if err != nil {
		t.Fatalf("patchBlock: %v", err)
	}
	if b.Activity != "Nap" || b.Details.ActualPleasure != 9 || b.Details.PleasurePrediction != 5 {
		t.Errorf("patched block = %+v / %+v", b, *b.Details)
	}
	b, err = patchBlock(b, json.RawMessage(`{"details":{"notes":"zz"}}`))
	if err != nil {
		t.Fatalf("patchBlock: %v", err)
	}
	if b.Details.ActualPleasure != 9 || b.Details.Notes != "zz" {
		t.Errorf("second patch lost fields: %+v", *b.Details)
	}
	b, _ = patchBlock(b, json.RawMessage(`{"details":null}`))
	if b.Details != nil {
		t.Error("null details should reset the hour")
	}
}

func TestScheduleOrderedByHour(t *testing.T) {
	s := DailySchedule()
	got := s.Normalize([]ScheduleItem{{ID: 3, Hour: 20}, {ID: 2, Hour: 6}, {ID: 1, Hour: 20}})
	want := []ScheduleItem{{ID: 2, Hour: 6}, {ID: 3, Hour: 20}, {ID: 1, Hour: 20}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestTicTocAggregate(t *testing.T) {
	got := TicTocs().Aggregate([]TicToc{{Type: "tic"}, {Type: "toc"}, {Type: "tic"}})
	b, _ := json.Marshal(got)
	if string(b) != `{"tics":2,"tocs":1}` {
		t.Errorf("aggregate = %s", b)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestProsConsRepeatedItemIDsRenumbered(t *testing.T) {
	s := ProsConsList()
	e, err := s.Migrate(json.RawMessage(`{"decision":"move","pros":[{"id":5,"description":"a"},{"id":5,"description":"b"}],"cons":[{"description":"c"},{"id":5,"description":"d"}]}`))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	e = s.Prepare(e)
	got := prosConsIDs(e)
	want := []int64{5, 6, 7, 8}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	c, ok, err := s.Lists["pros"].Remove([]ProsCons{s.WithID(e, 1)}, 1, "5")
	if err != nil || !ok {
		t.Fatalf("Remove: ok=%v err=%v", ok, err)
	}
	if len(c[0].Pros) != 1 || c[0].Pros[0].Description != "b" {
		t.Errorf("pros after remove = %+v, want only b", c[0].Pros)
	}
}

func TestNoteIDsUniqueAcrossLists(t *testing.T) {
	s := MotivationWithoutCoercion()
	e := s.Prepare(Motivation{Title: "Run", Pros: []Note{{ID: 3, Text: "air"}, {ID: 3, Text: "legs"}}, Cons: []Note{{ID: 3, Text: "cold"}, {Text: "rain"}}})
	want := []int64{3, 4, 5, 6}
	if diff := cmp.Diff(want, noteIDs(e.Pros, e.Cons)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestPlannerDetailIDsRenumbered(t *testing.T) {
	s := DailyPlanner()
	b := s.Prepare(ScheduleBlock{Hour: 0, Details: &ActivityDetails{
		ProsCons: []TaggedItem{{ID: 2, Text: "a", Type: "pro"}},
		TicTocs:  []TaggedItem{{ID: 2, Text: "b", Type: "tic"}},
		Todos:    []Todo{{Text: "c"}, {ID: 2, Text: "d"}},
	}})
	want := []int64{2, 3, 4, 5}
	if diff := cmp.Diff(want, detailIDs(*b.Details)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if b.Details.ID != "hour-0" {
		t.Errorf("details id = %q", b.Details.ID)
	}
}

func TestRiskRewardWeightsClamped(t *testing.T) {
	s := RiskRewardAnalysis()
	e := s.Prepare(RiskReward{Behavior: "b", RiskWeight: 40, RewardWeight: -3})
	if e.RiskWeight != 10 || e.RewardWeight != 1 {
		t.Errorf("weights = %v/%v, want 10/1", e.RiskWeight, e.RewardWeight)
	}
}
