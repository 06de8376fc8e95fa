package query_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"apodfeed/query"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextUntilEmpty(lastPage []string, _ [][]string, lastParam int) (int, bool) {
	if len(lastPage) == 0 {
		return 0, false
	}
	return lastParam + 1, true
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

// pagesFetcher serves fixed pages by param and counts calls
type pagesFetcher struct {
	mu    sync.Mutex
	pages map[int][]string
	calls []int
}

func (f *pagesFetcher) fetch(ctx context.Context, param int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, param)
	page, ok := f.pages[param]
	if !ok {
		return []string{}, nil
	}
	return page, nil
}

func (f *pagesFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newQuery(fetch query.PageFunc[int, []string], retry int) *query.InfiniteQuery[int, []string] {
	return query.New(query.Options[int, []string]{
		Fetch:        fetch,
		InitialParam: 0,
		NextParam:    nextUntilEmpty,
		Retry:        retry,
		NewBackOff:   zeroBackOff,
	})
}

func TestFetchCachesInitialPage(t *testing.T) {
	f := &pagesFetcher{pages: map[int][]string{0: {"a", "b"}}}
	q := newQuery(f.fetch, 0)

	require.NoError(t, q.Fetch(context.Background()))
	require.NoError(t, q.Fetch(context.Background()))

	result := q.Result()
	assert.Equal(t, [][]string{{"a", "b"}}, result.Pages)
	assert.Equal(t, []int{0}, result.Params)
	assert.True(t, result.HasNextPage)
	assert.False(t, result.IsFetching)
	assert.Equal(t, 1, f.callCount())
}

func TestFetchNextPageWalksParams(t *testing.T) {
	f := &pagesFetcher{pages: map[int][]string{0: {"a"}, 1: {"b"}}}
	q := newQuery(f.fetch, 0)

	// Loads the initial page when nothing is cached
	require.NoError(t, q.FetchNextPage(context.Background()))
	require.NoError(t, q.FetchNextPage(context.Background()))
	require.NoError(t, q.FetchNextPage(context.Background()))

	result := q.Result()
	assert.Equal(t, [][]string{{"a"}, {"b"}, {}}, result.Pages)
	assert.Equal(t, []int{0, 1, 2}, result.Params)
	assert.False(t, result.HasNextPage)

	// Last page was empty, no more requests
	require.NoError(t, q.FetchNextPage(context.Background()))
	require.NoError(t, q.FetchNextPage(context.Background()))
	assert.Equal(t, 3, f.callCount())
}

func TestErrorKeepsPages(t *testing.T) {
	failure := errors.New("boom")
	var calls atomic.Int32
	q := newQuery(func(ctx context.Context, param int) ([]string, error) {
		calls.Add(1)
		if param == 1 {
			return nil, failure
		}
		return []string{"a"}, nil
	}, 0)

	require.NoError(t, q.Fetch(context.Background()))
	err := q.FetchNextPage(context.Background())
	assert.ErrorIs(t, err, failure)

	result := q.Result()
	assert.Equal(t, [][]string{{"a"}}, result.Pages)
	assert.ErrorIs(t, result.Err, failure)
	assert.False(t, result.IsFetchingNextPage)
	assert.True(t, result.HasNextPage)
}

func TestRetry(t *testing.T) {
	var calls atomic.Int32
	q := newQuery(func(ctx context.Context, param int) ([]string, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("flaky")
		}
		return []string{"ok"}, nil
	}, 3)

	require.NoError(t, q.Fetch(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
	assert.NoError(t, q.Result().Err)
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	q := newQuery(func(ctx context.Context, param int) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("down")
	}, 2)

	assert.Error(t, q.Fetch(context.Background()))
	// One attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
	assert.Nil(t, q.Result().Pages)
}

func TestConcurrentFetchNextPageIsShared(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	q := newQuery(func(ctx context.Context, param int) ([]string, error) {
		calls.Add(1)
		if param == 1 {
			<-release
		}
		return []string{"x"}, nil
	}, 0)

	require.NoError(t, q.Fetch(context.Background()))
	require.Equal(t, int32(1), calls.Load())

	var wg sync.WaitGroup
	var ready sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ready.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			assert.NoError(t, q.FetchNextPage(context.Background()))
		}()
	}

	ready.Wait()
	assert.Eventually(t, func() bool {
		return q.Result().IsFetchingNextPage
	}, time.Second, time.Millisecond)
	// Give the remaining callers time to join the request in flight
	time.Sleep(50 * time.Millisecond)

	close(release)
	wg.Wait()

	result := q.Result()
	assert.Equal(t, []int{0, 1}, result.Params)
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, result.IsFetching)
}

func TestResetDropsLateResults(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := newQuery(func(ctx context.Context, param int) ([]string, error) {
		if param == 1 {
			close(started)
			<-release
			return []string{"stale"}, nil
		}
		return []string{"fresh"}, nil
	}, 0)

	require.NoError(t, q.Fetch(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.FetchNextPage(context.Background())
	}()

	<-started
	q.Reset()
	assert.Nil(t, q.Result().Pages)

	close(release)
	<-done

	assert.Nil(t, q.Result().Pages)
	assert.False(t, q.Result().IsFetchingNextPage)

	require.NoError(t, q.Fetch(context.Background()))
	assert.Equal(t, [][]string{{"fresh"}}, q.Result().Pages)
}

func TestOnChange(t *testing.T) {
	var changes atomic.Int32
	q := query.New(query.Options[int, []string]{
		Fetch: func(ctx context.Context, param int) ([]string, error) {
			return []string{"a"}, nil
		},
		NextParam: nextUntilEmpty,
		OnChange:  func() { changes.Add(1) },
	})

	require.NoError(t, q.Fetch(context.Background()))
	// Start and finish of the request
	assert.Equal(t, int32(2), changes.Load())
}

func TestWithoutNextParam(t *testing.T) {
	q := query.New(query.Options[int, []string]{
		Fetch: func(ctx context.Context, param int) ([]string, error) {
			return []string{"a"}, nil
		},
	})

	require.NoError(t, q.Fetch(context.Background()))
	assert.False(t, q.Result().HasNextPage)
	require.NoError(t, q.FetchNextPage(context.Background()))
	assert.Len(t, q.Result().Pages, 1)
}
