// Package feeds aggregates the pages of the picture feed into one list sorted
// by date, newest first.
package feeds

import (
	"context"

	"apodfeed/models"
)

// PageFetcher loads one page of entries by zero based index
type PageFetcher interface {
	Fetch(ctx context.Context, page int) ([]models.Entry, error)
}

// State is what the presentation layer renders
type State struct {
	// Entries is nil until the first page has arrived
	Entries          []models.Entry
	IsLoadingInitial bool
	IsLoadingMore    bool
	HasNextPage      bool
	// Exhausted is set once an empty page was fetched, LoadMore does nothing from then on
	Exhausted bool
	Err       error
}

func (s State) Response() models.FeedResponse {
	response := models.FeedResponse{
		Entries:          s.Entries,
		IsLoadingInitial: s.IsLoadingInitial,
		IsLoadingMore:    s.IsLoadingMore,
		HasNextPage:      s.HasNextPage,
	}
	if s.Err != nil {
		msg := s.Err.Error()
		response.Error = &msg
	}
	return response
}
