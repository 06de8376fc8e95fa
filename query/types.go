package query

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetry is the number of extra attempts made for a failing page
const DefaultRetry = 3

// PageFunc loads the page identified by param
type PageFunc[P comparable, T any] func(ctx context.Context, param P) (T, error)

// NextParamFunc returns the param of the page following lastPage, or false when
// there are no more pages
type NextParamFunc[P comparable, T any] func(lastPage T, allPages []T, lastParam P) (P, bool)

// Options configure an InfiniteQuery
type Options[P comparable, T any] struct {
	Fetch        PageFunc[P, T]
	InitialParam P
	NextParam    NextParamFunc[P, T]

	// Retry is the number of extra attempts for a failing page, zero disables retries
	Retry int
	// NewBackOff creates the wait policy between attempts
	NewBackOff func() backoff.BackOff
	// OnChange is called after every state change, outside of any lock
	OnChange func()
}

// Result is a snapshot of the query state
type Result[P comparable, T any] struct {
	Pages              []T
	Params             []P
	IsFetching         bool
	IsFetchingNextPage bool
	HasNextPage        bool
	Err                error
}
