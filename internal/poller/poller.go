// Package poller fetches a page of recent items for a stream and filters it
// against the stream's watermark.
package poller

import (
	"context"
	"fmt"

	"tower_bot/internal/models"
)

const DefaultPageSize = 25

// Fetcher returns up to limit of the most recent items. No ordering is assumed.
type Fetcher interface {
	FetchRecent(ctx context.Context, stream models.Stream, limit int) ([]models.FeedItem, error)
}

type Result struct {
	// Items are the fetched items strictly newer than the watermark, in fetch order.
	Items []models.FeedItem
	// Candidate is max(watermark, created_at of every fetched item).
	Candidate int64
	Fetched   int
}

// Advanced reports whether the candidate moved past the given watermark.
func (r Result) Advanced(watermark int64) bool {
	return r.Candidate > watermark
}

type Poller struct {
	fetcher  Fetcher
	pageSize int
}

func New(fetcher Fetcher, pageSize int) *Poller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Poller{fetcher: fetcher, pageSize: pageSize}
}

// Poll never advances the candidate on fetch failure.
func (p *Poller) Poll(ctx context.Context, stream models.Stream, watermark int64) (Result, error) {
	items, err := p.fetcher.FetchRecent(ctx, stream, p.pageSize)
	if err != nil {
		return Result{Candidate: watermark}, fmt.Errorf("fetch %s: %w", stream, err)
	}
	return Filter(items, watermark), nil
}

// Filter applies the strict created_at > watermark rule. Every item, kept or
// not, contributes to the candidate watermark, so an item delivered late with a
// timestamp already behind the watermark is never returned.
func Filter(items []models.FeedItem, watermark int64) Result {
	res := Result{Candidate: watermark, Fetched: len(items)}
	for _, item := range items {
		if item.CreatedAt > res.Candidate {
			res.Candidate = item.CreatedAt
		}
		if item.CreatedAt <= watermark {
			continue
		}
		res.Items = append(res.Items, item)
	}
	return res
}
