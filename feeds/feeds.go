package feeds

import (
	"context"
	"slices"
	"strings"
	"sync"

	"apodfeed/models"
	"apodfeed/query"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

type Feed struct {
	query *query.InfiniteQuery[int, []models.Entry]

	mu        sync.RWMutex
	listeners []func(State)
}

type feedOptions struct {
	retry      int
	newBackOff func() backoff.BackOff
}

type Option func(*feedOptions)

// WithRetry sets the number of extra attempts for a failing page
func WithRetry(retry int) Option {
	return func(o *feedOptions) {
		o.retry = retry
	}
}

func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *feedOptions) {
		o.newBackOff = newBackOff
	}
}

func New(fetcher PageFetcher, opts ...Option) *Feed {
	o := feedOptions{retry: query.DefaultRetry}
	for _, opt := range opts {
		opt(&o)
	}

	feed := &Feed{}
	feed.query = query.New(query.Options[int, []models.Entry]{
		Fetch:        fetcher.Fetch,
		InitialParam: 0,
		NextParam:    NextPage,
		Retry:        o.retry,
		NewBackOff:   o.newBackOff,
		OnChange:     feed.changed,
	})

	return feed
}

// NextPage continues with the following page index as long as the last page had entries
func NextPage(lastPage []models.Entry, _ [][]models.Entry, lastPageParam int) (int, bool) {
	if len(lastPage) == 0 {
		return 0, false
	}
	return lastPageParam + 1, true
}

// Activate loads the first page. Later calls return immediately once it is cached.
func (f *Feed) Activate(ctx context.Context) error {
	return f.query.Fetch(ctx)
}

// LoadMore loads the next page. It does nothing once an empty page was seen.
func (f *Feed) LoadMore(ctx context.Context) error {
	return f.query.FetchNextPage(ctx)
}

// Refresh drops every cached page and loads the first page again
func (f *Feed) Refresh(ctx context.Context) error {
	log.Info("Refreshing feed")
	f.query.Reset()
	return f.query.Fetch(ctx)
}

func (f *Feed) State() State {
	result := f.query.Result()

	state := State{
		IsLoadingInitial: result.IsFetching && !result.IsFetchingNextPage,
		IsLoadingMore:    result.IsFetchingNextPage,
		HasNextPage:      result.HasNextPage,
		Exhausted:        len(result.Pages) > 0 && !result.HasNextPage,
		Err:              result.Err,
	}

	if result.Pages != nil {
		state.Entries = Aggregate(result.Pages)
	}

	return state
}

// Entry looks up a fetched entry by its date
func (f *Feed) Entry(date string) (models.Entry, bool) {
	return lo.Find(f.State().Entries, func(e models.Entry) bool {
		return e.Date == date
	})
}

// Subscribe registers fn to receive the state after every change
func (f *Feed) Subscribe(fn func(State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *Feed) changed() {
	f.mu.RLock()
	listeners := slices.Clone(f.listeners)
	f.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	state := f.State()
	for _, listener := range listeners {
		listener(state)
	}
}

// Aggregate flattens pages into one list sorted by date, newest first.
// ISO dates sort chronologically as strings.
func Aggregate(pages [][]models.Entry) []models.Entry {
	entries := lo.Flatten(pages)
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return strings.Compare(b.Date, a.Date)
	})
	return entries
}
