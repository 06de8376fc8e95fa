// Package pictures turns a page index into a date window and fetches the
// APOD entries published inside it.
package pictures

import (
	"context"
	"errors"
	"time"

	"apodfeed/models"

	log "github.com/sirupsen/logrus"
)

const (
	// PageSpanDays is how far each page moves the window into the past
	PageSpanDays = 31
	// WindowDays is the distance between the start and end date of a window
	WindowDays = 30

	day        = 24 * time.Hour
	dateLayout = "2006-01-02"
)

// ErrPageNotFound is the only error Fetch returns. The cause is logged, not wrapped.
var ErrPageNotFound = errors.New("feed page not found")

// Provider reads all entries between two dates, both inclusive
type Provider interface {
	GetRange(ctx context.Context, start, end time.Time) ([]models.Entry, error)
}

type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor computes the window of a page relative to now.
// Page 0 ends today, every following page ends 31 days earlier and spans 30 days back.
func WindowFor(page int, now time.Time) Window {
	end := now.UTC().Add(-time.Duration(page*PageSpanDays) * day)
	start := end.Add(-WindowDays * day)
	return Window{Start: start, End: end}
}

func (w Window) StartDate() string {
	return w.Start.UTC().Format(dateLayout)
}

func (w Window) EndDate() string {
	return w.End.UTC().Format(dateLayout)
}

type Fetcher struct {
	provider Provider
	now      func() time.Time
}

// NewFetcher creates a fetcher reading the current time from now, time.Now when nil
func NewFetcher(provider Provider, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		provider: provider,
		now:      now,
	}
}

// Fetch returns the entries of one page verbatim, in provider order
func (f *Fetcher) Fetch(ctx context.Context, page int) ([]models.Entry, error) {
	if page < 0 {
		log.WithFields(log.Fields{
			"page": page,
		}).Warn("Refusing to fetch negative page")
		return nil, ErrPageNotFound
	}

	window := WindowFor(page, f.now())

	entries, err := f.provider.GetRange(ctx, window.Start, window.End)
	if err != nil {
		log.WithFields(log.Fields{
			"page":  page,
			"start": window.StartDate(),
			"end":   window.EndDate(),
			"error": err,
		}).Error("Error fetching feed page")
		return nil, ErrPageNotFound
	}

	log.WithFields(log.Fields{
		"page":  page,
		"start": window.StartDate(),
		"end":   window.EndDate(),
		"count": len(entries),
	}).Info("Fetched feed page")

	return entries, nil
}
