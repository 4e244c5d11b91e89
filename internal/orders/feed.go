package orders

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/web3pay/payer-svc/internal/data"
	"gitlab.com/distributed_lab/logan/v3"
)

// FeedEntry pairs a history record with the order it refers to, so the feed
// can render amounts and token metadata next to the event.
type FeedEntry struct {
	Item  data.HistoryItem
	Order data.Order
}

// DayBucket groups feed entries that happened on the same calendar day.
type DayBucket struct {
	Date    string
	Entries []FeedEntry
}

// Feed is the rendered history: day buckets in reverse chronological order,
// entries within a bucket newest first.
type Feed []DayBucket

// BuildFeed resolves every history record against its order and folds the
// result into day buckets. Records whose order cannot be loaded are dropped
// from the feed rather than failing the whole build.
func (r *Repository) BuildFeed(ctx context.Context, logs data.HistoryLogs) Feed {
	entries := make([]FeedEntry, 0,
		len(logs.Subscriptions)+len(logs.Cancellations)+len(logs.Executions))

	add := func(item data.HistoryItem) {
		o, err := r.historyOrder(ctx, item.OrderID())
		if err != nil {
			r.log.WithError(err).WithFields(logan.F{
				"order_id": item.OrderID().String(),
				"kind":     item.Kind(),
			}).Warn("skipping history record of unloadable order")
			return
		}
		entries = append(entries, FeedEntry{Item: item, Order: o})
	}

	for _, e := range logs.Executions {
		add(e)
	}
	for _, e := range logs.Cancellations {
		add(e)
	}
	for _, e := range logs.Subscriptions {
		add(e)
	}

	SortEntries(entries)
	return GroupByDay(entries)
}

// historyOrder reuses an already loaded order when possible; orders seen only
// through history are loaded once and cached separately from the active sets.
func (r *Repository) historyOrder(ctx context.Context, id *big.Int) (data.Order, error) {
	if o, ok := r.outcomes.Get(id); ok {
		return o, nil
	}
	if o, ok := r.incomes.Get(id); ok {
		return o, nil
	}
	if o, ok := r.historical.Get(id); ok {
		return o, nil
	}

	o, err := r.LoadOrder(ctx, id, time.Now())
	if err != nil {
		return data.Order{}, err
	}
	r.historical.Upsert(o)
	return o, nil
}

// SortEntries orders feed entries newest first; ties keep their relative
// order.
func SortEntries(entries []FeedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Item.Time().After(entries[j].Item.Time())
	})
}

// GroupByDay folds time-sorted entries into per-day buckets keyed by the
// entry's local calendar date.
func GroupByDay(entries []FeedEntry) Feed {
	var feed Feed
	for _, e := range entries {
		date := e.Item.Time().Local().Format("2006-01-02")
		if len(feed) == 0 || feed[len(feed)-1].Date != date {
			feed = append(feed, DayBucket{Date: date})
		}
		b := &feed[len(feed)-1]
		b.Entries = append(b.Entries, e)
	}
	return feed
}
