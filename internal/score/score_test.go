package score

import (
	"math"
	"testing"
)

type weighted struct {
	kind   string
	weight int
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSum(t *testing.T) {
	if got := Sum(5, 3, -4); got != 4 {
		t.Fatalf("Sum=%d, want 4", got)
	}
	if got := Sum[float64](); got != 0 {
		t.Fatalf("empty Sum=%v, want 0", got)
	}
}

func TestSumTaggedProsMinusCons(t *testing.T) {
	items := []weighted{{"pro", 5}, {"pro", 3}, {"con", 4}}
	tag := func(w weighted) string { return w.kind }
	val := func(w weighted) int { return w.weight }

	pros := SumTagged(items, tag, "pro", val)
	cons := SumTagged(items, tag, "con", val)
	if pros-cons != 4 {
		t.Fatalf("score=%d, want 4", pros-cons)
	}
	if got := CountTagged(items, tag, "pro"); got != 2 {
		t.Fatalf("CountTagged=%d, want 2", got)
	}
	if got := CountTagged(items, tag, "tic"); got != 0 {
		t.Fatalf("CountTagged(tic)=%d, want 0", got)
	}
}

func TestExpectedValue(t *testing.T) {
	cases := []struct {
		value, prob, want float64
	}{
		{-40, 50, -20},
		{100, 100, 100},
		{80, 25, 20},
		{0, 90, 0},
		{-100, 1, -1},
	}
	for _, c := range cases {
		if got := ExpectedValue(c.value, c.prob); !approx(got, c.want) {
			t.Fatalf("ExpectedValue(%v,%v)=%v, want %v", c.value, c.prob, got, c.want)
		}
	}
}

func TestTotalExpectedValue(t *testing.T) {
	type outcome struct{ v, p float64 }
	items := []outcome{{-40, 50}, {60, 50}}
	got := TotalExpectedValue(items,
		func(o outcome) float64 { return o.v },
		func(o outcome) float64 { return o.p })
	if !approx(got, 10) {
		t.Fatalf("TotalExpectedValue=%v, want 10", got)
	}
}

func TestWeightedAverage(t *testing.T) {
	cases := []struct {
		name            string
		scores, weights []float64
		want            float64
	}{
		{"zero weights", []float64{5, -3}, []float64{0, 0}, 0},
		{"empty", nil, nil, 0},
		{"equal weights", []float64{4, 6}, []float64{1, 1}, 5},
		{"skewed", []float64{10, -10}, []float64{75, 25}, 5},
		{"length mismatch", []float64{2, 100}, []float64{1}, 2},
	}
	for _, c := range cases {
		if got := WeightedAverage(c.scores, c.weights); !approx(got, c.want) {
			t.Fatalf("%s: WeightedAverage=%v, want %v", c.name, got, c.want)
		}
	}
}

func TestWeightedImpact(t *testing.T) {
	if got := WeightedImpact(6, 50); !approx(got, 3.0) {
		t.Fatalf("WeightedImpact(6,50)=%v, want 3.0", got)
	}
	if got := WeightedImpact(-10, 70); !approx(got, -7) {
		t.Fatalf("WeightedImpact(-10,70)=%v, want -7", got)
	}
}

func TestDiffAndFormatSigned(t *testing.T) {
	cases := []struct {
		predicted, actual int
		want              string
	}{
		{5, 8, "+3"},
		{8, 5, "-3"},
		{5, 5, "+0"},
	}
	for _, c := range cases {
		if got := FormatSigned(Diff(c.predicted, c.actual), 0); got != c.want {
			t.Fatalf("FormatSigned(Diff(%d,%d))=%q, want %q", c.predicted, c.actual, got, c.want)
		}
	}
	if got := FormatSigned(-20.0, 1); got != "-20.0" {
		t.Fatalf("FormatSigned(-20.0,1)=%q", got)
	}
	if got := FormatSigned(3.0, 1); got != "+3.0" {
		t.Fatalf("FormatSigned(3.0,1)=%q", got)
	}
	zeros := []struct {
		x        float64
		decimals int
		want     string
	}{
		{math.Copysign(0, -1), 0, "+0"},
		{-0.04, 1, "+0.0"},
		{-0.4, 0, "+0"},
		{-0.05, 1, "-0.1"},
	}
	for _, c := range zeros {
		if got := FormatSigned(c.x, c.decimals); got != c.want {
			t.Errorf("FormatSigned(%v,%d)=%q, want %q", c.x, c.decimals, got, c.want)
		}
	}
}
