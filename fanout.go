package dragonscale

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// queryFunc issues one source query.
type queryFunc[T any] func(ctx context.Context, source RetrievalSource) ([]T, error)

// fanOut queries every source and concatenates the batches in source order.
// The first failure discards everything gathered so far and is returned as
// a single retrieval error.
func fanOut[T any](ctx context.Context, stage string, sources []RetrievalSource, concurrent bool, query queryFunc[T]) ([]T, error) {
	if concurrent && len(sources) > 1 {
		return fanOutConcurrent(ctx, stage, sources, query)
	}

	var acc []T
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, contextError(stage, err)
		}
		batch, err := query(ctx, source)
		if err != nil {
			return nil, NewRetrievalError(stage, i, err)
		}
		acc = append(acc, batch...)
	}
	return acc, nil
}

// fanOutConcurrent issues all source queries at once. Batches land in
// per-source slots so the concatenation order is still the source order.
func fanOutConcurrent[T any](ctx context.Context, stage string, sources []RetrievalSource, query queryFunc[T]) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(stage, err)
	}

	batches := make([][]T, len(sources))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, source := range sources {
		eg.Go(func() error {
			batch, err := query(egCtx, source)
			if err != nil {
				return NewRetrievalError(stage, i, err)
			}
			batches[i] = batch
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var acc []T
	for _, batch := range batches {
		acc = append(acc, batch...)
	}
	return acc, nil
}

func topN(query string) queryFunc[RetrievedItem] {
	return func(ctx context.Context, source RetrievalSource) ([]RetrievedItem, error) {
		return source.Index.TopN(ctx, query, source.Samples)
	}
}

func topNIDs(query string) queryFunc[RetrievedID] {
	return func(ctx context.Context, source RetrievalSource) ([]RetrievedID, error) {
		return source.Index.TopNIDs(ctx, query, source.Samples)
	}
}
