// Package journal owns the in-memory collections of every workbook section and
// persists each one after every successful mutation.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/workbook/internal/recordstore"
	"github.com/kalambet/workbook/internal/workbook"
)

// Option configures a Journal or Section.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock sets the time source used for new ids.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default().With("component", "journal")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Journal is the set of all sections.
type Journal struct {
	sections []Section
	byName   map[string]Section
	byKey    map[string]Section
}

// New builds every workbook section on top of kv.
func New(kv recordstore.KV, opts ...Option) *Journal {
	o := buildOptions(opts)
	return newJournal(
		NewSection(workbook.AntiprocrastinationSheet(), kv, opts...),
		NewSection(workbook.ButRebuttals(), kv, opts...),
		NewSection(workbook.CantLoseSystem(), kv, opts...),
		NewSection(workbook.CountWhatCounts(), kv, opts...),
		NewSection(workbook.DailyPlanner(), kv, opts...),
		NewSection(workbook.DailySchedule(), kv, opts...),
		NewSection(workbook.DisarmingTechnique(), kv, opts...),
		NewSection(workbook.DysfunctionalThoughts(), kv, opts...),
		NewSection(workbook.LittleSteps(o.now), kv, opts...),
		NewSection(workbook.MotivationWithoutCoercion(), kv, opts...),
		NewSection(workbook.PleasurePredictionSheet(), kv, opts...),
		NewSection(workbook.ProsConsList(), kv, opts...),
		NewSection(workbook.RiskRewardAnalysis(), kv, opts...),
		NewSection(workbook.RiskRewardExpected(), kv, opts...),
		NewSection(workbook.SelfEndorsements(), kv, opts...),
		NewSection(workbook.TestCants(), kv, opts...),
		NewSection(workbook.TicTocs(), kv, opts...),
		NewSection(workbook.VisualizeSuccess(), kv, opts...),
		NewSection(workbook.WellnessRiskAssessment(), kv, opts...),
	)
}

func newJournal(sections ...Section) *Journal {
	j := &Journal{
		sections: sections,
		byName:   make(map[string]Section, len(sections)),
		byKey:    make(map[string]Section, len(sections)),
	}
	for _, s := range sections {
		j.byName[s.Name()] = s
		j.byKey[s.Key()] = s
	}
	return j
}

// Load reads every section from storage concurrently.
func (j *Journal) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range j.sections {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Load()
			return nil
		})
	}
	return g.Wait()
}

// Sections returns all sections in name order.
func (j *Journal) Sections() []Section {
	return j.sections
}

func (j *Journal) Section(name string) (Section, bool) {
	s, ok := j.byName[name]
	return s, ok
}

// Snapshot serializes every section, keyed by storage slot.
func (j *Journal) Snapshot(ctx context.Context) (map[string]string, error) {
	encoded := make([]string, len(j.sections))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range j.sections {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := s.Encode()
			if err != nil {
				return fmt.Errorf("encoding %s: %w", s.Name(), err)
			}
			encoded[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(j.sections))
	for i, s := range j.sections {
		out[s.Key()] = encoded[i]
	}
	return out, nil
}

// RestoreResult reports how many records each restored section now holds.
type RestoreResult struct {
	Restored map[string]int `json:"restored"`
	Skipped  []string       `json:"skipped,omitempty"`
}

// Restore replaces the sections named by the snapshot's slot keys. Unknown keys
// are skipped. The first section that refuses its value aborts the restore;
// sections restored before it keep their new contents.
func (j *Journal) Restore(snapshot map[string]string) (RestoreResult, error) {
	res := RestoreResult{Restored: make(map[string]int)}
	for _, s := range j.sections {
		raw, ok := snapshot[s.Key()]
		if !ok {
			continue
		}
		n, err := s.Restore(raw)
		if err != nil {
			return res, err
		}
		res.Restored[s.Name()] = n
	}
	for key := range snapshot {
		if _, ok := j.byKey[key]; !ok {
			res.Skipped = append(res.Skipped, key)
		}
	}
	slices.Sort(res.Skipped)
	return res, nil
}
