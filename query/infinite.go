// Package query caches pages of a paginated source in memory. Pages are loaded
// in order, identical in-flight requests are shared and failures are retried.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type InfiniteQuery[P comparable, T any] struct {
	opts  Options[P, T]
	group singleflight.Group

	mu           sync.Mutex
	pages        []T
	params       []P
	generation   uint64
	fetching     bool
	fetchingNext bool
	err          error
}

func New[P comparable, T any](opts Options[P, T]) *InfiniteQuery[P, T] {
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if opts.NextParam == nil {
		opts.NextParam = func(T, []T, P) (P, bool) {
			var zero P
			return zero, false
		}
	}
	return &InfiniteQuery[P, T]{opts: opts}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // Bounded by the retry count instead
	return b
}

// Fetch loads the initial page. It is a no-op once the initial page is cached.
func (q *InfiniteQuery[P, T]) Fetch(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pages) > 0 {
		q.mu.Unlock()
		return nil
	}
	gen := q.generation
	q.mu.Unlock()

	return q.load(ctx, gen, 0, q.opts.InitialParam, false)
}

// FetchNextPage loads the page following the last cached one. It loads the
// initial page when nothing is cached yet and does nothing when NextParam
// reports there are no more pages.
func (q *InfiniteQuery[P, T]) FetchNextPage(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pages) == 0 {
		q.mu.Unlock()
		return q.Fetch(ctx)
	}
	param, ok := q.nextParamLocked()
	gen := q.generation
	index := len(q.pages)
	q.mu.Unlock()

	if !ok {
		return nil
	}

	return q.load(ctx, gen, index, param, true)
}

// Reset drops all cached pages. Requests still in flight are discarded when they complete.
func (q *InfiniteQuery[P, T]) Reset() {
	q.mu.Lock()
	q.generation++
	q.pages = nil
	q.params = nil
	q.fetching = false
	q.fetchingNext = false
	q.err = nil
	q.mu.Unlock()

	q.notify()
}

func (q *InfiniteQuery[P, T]) Result() Result[P, T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := Result[P, T]{
		IsFetching:         q.fetching,
		IsFetchingNextPage: q.fetchingNext,
		Err:                q.err,
	}

	if len(q.pages) > 0 {
		result.Pages = make([]T, len(q.pages))
		copy(result.Pages, q.pages)
		result.Params = make([]P, len(q.params))
		copy(result.Params, q.params)
		_, result.HasNextPage = q.nextParamLocked()
	}

	return result
}

func (q *InfiniteQuery[P, T]) nextParamLocked() (P, bool) {
	last := len(q.pages) - 1
	return q.opts.NextParam(q.pages[last], q.pages, q.params[last])
}

// load fetches the page at index. Concurrent calls for the same page share one request.
func (q *InfiniteQuery[P, T]) load(ctx context.Context, gen uint64, index int, param P, next bool) error {
	key := fmt.Sprintf("%d/%d/%v", gen, index, param)

	_, err, shared := q.group.Do(key, func() (interface{}, error) {
		q.start(gen, next)
		page, err := q.fetchWithRetry(ctx, param)
		q.finish(gen, index, param, page, err, next)
		return nil, err
	})

	if shared {
		log.WithFields(log.Fields{
			"param": param,
		}).Debug("Joined in-flight page request")
	}

	return err
}

func (q *InfiniteQuery[P, T]) fetchWithRetry(ctx context.Context, param P) (T, error) {
	var page T

	operation := func() error {
		var err error
		page, err = q.opts.Fetch(ctx, param)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(q.opts.NewBackOff(), uint64(q.opts.Retry)), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.WithFields(log.Fields{
			"param": param,
			"wait":  wait,
			"error": err,
		}).Warn("Page request failed, retrying")
	})

	return page, err
}

func (q *InfiniteQuery[P, T]) start(gen uint64, next bool) {
	q.mu.Lock()
	if gen != q.generation {
		q.mu.Unlock()
		return
	}
	q.fetching = true
	q.fetchingNext = next
	q.mu.Unlock()

	q.notify()
}

func (q *InfiniteQuery[P, T]) finish(gen uint64, index int, param P, page T, err error, next bool) {
	q.mu.Lock()
	if gen != q.generation {
		q.mu.Unlock()
		return
	}

	q.fetching = false
	if next {
		q.fetchingNext = false
	}

	if err != nil {
		q.err = err
	} else if len(q.pages) == index {
		q.pages = append(q.pages, page)
		q.params = append(q.params, param)
		q.err = nil
	}
	q.mu.Unlock()

	q.notify()
}

func (q *InfiniteQuery[P, T]) notify() {
	if q.opts.OnChange != nil {
		q.opts.OnChange()
	}
}
