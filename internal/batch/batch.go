// Package batch runs a per-file operation over many files with bounded
// concurrency.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one input path.
type Result[T any] struct {
	Err   error
	Value T
	Path  string
}

// Run calls fn for every path with at most limit calls in flight (limit < 1
// means one). Results are returned in input order. A failing file does not
// stop the others; once ctx is done no new calls start and the remaining
// paths report the context error.
func Run[T any](ctx context.Context, paths []string, limit int, fn func(ctx context.Context, path string) (T, error)) []Result[T] {
	results := make([]Result[T], len(paths))
	if limit < 1 {
		limit = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		results[i].Path = path
		if err := gCtx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Value, results[i].Err = fn(gCtx, path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed[T any](results []Result[T]) []Result[T] {
	var out []Result[T]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
