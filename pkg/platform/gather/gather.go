// Package gather runs independent operations concurrently and aggregates
// their results all-or-nothing.
package gather

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Option tunes a gather call.
type Option func(*options)

type options struct {
	limit int
}

// WithLimit caps the number of operations in flight. Zero or negative means
// unbounded.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// All calls fn once per input concurrently and waits for every call to return.
// Results are positioned like their inputs. If any call fails, All returns the
// first error and no results: partial successes are discarded. The shared
// context is cancelled on the first failure so slower calls can stop early.
func All[In, Out any](ctx context.Context, inputs []In, fn func(context.Context, In) (Out, error), opts ...Option) ([]Out, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}

	results := make([]Out, len(inputs))
	for i, in := range inputs {
		g.Go(func() error {
			out, err := fn(gctx, in)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Map is All keyed by input: the result maps each input to its output.
// Duplicate inputs are executed once.
func Map[K comparable, V any](ctx context.Context, keys []K, fn func(context.Context, K) (V, error), opts ...Option) (map[K]V, error) {
	unique := make([]K, 0, len(keys))
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}

	values, err := All(ctx, unique, fn, opts...)
	if err != nil {
		return nil, err
	}

	out := make(map[K]V, len(unique))
	for i, k := range unique {
		out[k] = values[i]
	}
	return out, nil
}
