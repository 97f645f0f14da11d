package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/workforcesim/workforcesim/pkg/irs"
)

// Stage is one event generator in the per-year pipeline. Generate must be a
// pure function of its input: the same input and seed yield the same events.
type Stage interface {
	// Name uniquely identifies the stage.
	Name() string

	// Requires lists the stages whose events this stage consumes.
	Requires() []string

	// Generate produces the stage's events for in.Year.
	Generate(ctx context.Context, in *StageInput) ([]Event, error)
}

// StageInput is the read-only input of a stage.
type StageInput struct {
	Year    int
	Config  *SimulationConfig
	Limits  *irs.Table
	Streams Streams

	// Prior is the snapshot the year starts from. Its active rows are the
	// starting workforce.
	Prior *Snapshot

	upstream map[string][]Event
}

// Upstream returns the events produced by a required stage, or nil if the
// stage is not an ancestor.
func (in *StageInput) Upstream(stage string) []Event {
	return in.upstream[stage]
}

// UpstreamAll returns every ancestor event.
func (in *StageInput) UpstreamAll() []Event {
	var out []Event
	for _, events := range in.upstream {
		out = append(out, events...)
	}
	return out
}

// NewStageInput builds an input with explicit upstream events. It is intended
// for exercising a single stage in isolation.
func NewStageInput(year int, cfg *SimulationConfig, limits *irs.Table, prior *Snapshot, upstream map[string][]Event) *StageInput {
	return &StageInput{
		Year:     year,
		Config:   cfg,
		Limits:   limits,
		Streams:  NewStreams(cfg.RandomSeed),
		Prior:    prior,
		upstream: upstream,
	}
}

// StageHooks observe stage execution. Either field may be nil.
type StageHooks struct {
	// OnStart may return a derived context, for example one carrying a span.
	OnStart func(ctx context.Context, year int, stage string) context.Context

	// OnDone receives the stage outcome.
	OnDone func(ctx context.Context, year int, stage string, events int, elapsed time.Duration, err error)
}

// Pipeline runs stages level by level. Stages on the same level run concurrently.
type Pipeline struct {
	graph *StageGraph
	hooks StageHooks
}

// NewPipeline validates stage declarations and builds the execution graph.
func NewPipeline(stages []Stage, hooks StageHooks) (*Pipeline, error) {
	graph, err := BuildStageGraph(stages)
	if err != nil {
		return nil, err
	}
	return &Pipeline{graph: graph, hooks: hooks}, nil
}

// Graph returns the stage graph.
func (p *Pipeline) Graph() *StageGraph {
	return p.graph
}

// Run executes every stage for year and returns the union of their events in
// stage execution order.
func (p *Pipeline) Run(ctx context.Context, year int, cfg *SimulationConfig, limits *irs.Table, prior *Snapshot) ([]Event, error) {
	var (
		mu      sync.Mutex
		results = make(map[string][]Event, len(p.graph.stages))
	)

	for _, level := range p.graph.levels {
		g, gctx := errgroup.WithContext(ctx)

		for _, name := range level {
			stage := p.graph.stages[name]

			upstream := make(map[string][]Event)
			mu.Lock()
			for _, dep := range p.graph.Ancestors(name) {
				upstream[dep] = results[dep]
			}
			mu.Unlock()

			in := &StageInput{
				Year:     year,
				Config:   cfg,
				Limits:   limits,
				Streams:  NewStreams(cfg.RandomSeed),
				Prior:    prior,
				upstream: upstream,
			}

			g.Go(func() error {
				stageCtx := gctx
				if p.hooks.OnStart != nil {
					stageCtx = p.hooks.OnStart(gctx, year, name)
				}

				start := time.Now()
				events, err := stage.Generate(stageCtx, in)
				if p.hooks.OnDone != nil {
					p.hooks.OnDone(stageCtx, year, name, len(events), time.Since(start), err)
				}
				if err != nil {
					return fmt.Errorf("stage %s: %w", name, err)
				}

				mu.Lock()
				results[name] = events
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var all []Event
	for _, name := range p.graph.Order() {
		all = append(all, results[name]...)
	}
	return all, nil
}
