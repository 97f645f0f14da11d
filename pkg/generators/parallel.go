package generators

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

// forEach runs fn over items on at most workers goroutines and concatenates
// the results in item order.
func forEach[T any](ctx context.Context, workers int, items []T, fn func(item T) ([]engine.Event, error)) ([]engine.Event, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([][]engine.Event, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, err := fn(item)
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []engine.Event
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
