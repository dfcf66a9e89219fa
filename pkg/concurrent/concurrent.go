package concurrent

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

type indexed[R any] struct {
	index int
	value R
}

// WorkerMap applies fn to every item on a fixed number of workers and returns
// the results in item order.
//
// Each worker appends to its own buffer, addressed by the worker id passed to
// fn, so workers never share an accumulator. The buffers are merged once every
// worker has returned. The first error cancels the context handed to fn and is
// returned; items not yet started are skipped.
func WorkerMap[T any, R any](
	ctx context.Context,
	items []T,
	workers int,
	fn func(ctx context.Context, worker int, item T) (R, error),
) ([]R, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}
	if len(items) == 0 {
		return nil, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	next := make(chan int)
	buffers := make([][]indexed[R], workers)

	g.Go(func() error {
		defer close(next)
		for i := range items {
			select {
			case next <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range next {
				r, err := fn(gctx, w, items[i])
				if err != nil {
					return err
				}
				buffers[w] = append(buffers[w], indexed[R]{index: i, value: r})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]indexed[R], 0, len(items))
	for _, buf := range buffers {
		merged = append(merged, buf...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].index < merged[j].index })

	out := make([]R, len(merged))
	for i, m := range merged {
		out[i] = m.value
	}
	return out, nil
}

// Merge merges multiple channels of T into a single output channel, closed
// once every input is drained.
func Merge[T any](chs ...<-chan T) <-chan T {
	out := make(chan T)
	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(c <-chan T) {
			defer wg.Done()
			for v := range c {
				out <- v
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
