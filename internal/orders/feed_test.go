package orders_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/web3pay/payer-svc/internal/data"
	"github.com/web3pay/payer-svc/internal/orders"
)

func entryAt(t *testing.T, ts string, id int64) orders.FeedEntry {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04", ts, time.Local)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", ts, err)
	}
	return orders.FeedEntry{
		Item: data.SubscriptionEvent{HistoryEvent: data.HistoryEvent{
			Order:     big.NewInt(id),
			Timestamp: parsed,
		}},
		Order: data.Order{ID: big.NewInt(id)},
	}
}

func TestSortEntries_NewestFirst(t *testing.T) {
	entries := []orders.FeedEntry{
		entryAt(t, "2024-03-01 10:00", 1),
		entryAt(t, "2024-03-02 09:00", 2),
		entryAt(t, "2024-03-01 18:00", 3),
	}

	orders.SortEntries(entries)

	want := []int64{2, 3, 1}
	for i, w := range want {
		if got := entries[i].Item.OrderID().Int64(); got != w {
			t.Errorf("position %d: expected order %d, got %d", i, w, got)
		}
	}
}

func TestGroupByDay(t *testing.T) {
	entries := []orders.FeedEntry{
		entryAt(t, "2024-03-02 09:00", 2),
		entryAt(t, "2024-03-01 18:00", 3),
		entryAt(t, "2024-03-01 10:00", 1),
	}

	feed := orders.GroupByDay(entries)

	if len(feed) != 2 {
		t.Fatalf("expected 2 day buckets, got %d", len(feed))
	}
	if feed[0].Date != "2024-03-02" || len(feed[0].Entries) != 1 {
		t.Errorf("unexpected first bucket: %s with %d entries", feed[0].Date, len(feed[0].Entries))
	}
	if feed[1].Date != "2024-03-01" || len(feed[1].Entries) != 2 {
		t.Errorf("unexpected second bucket: %s with %d entries", feed[1].Date, len(feed[1].Entries))
	}
	if feed[1].Entries[0].Item.OrderID().Int64() != 3 {
		t.Errorf("entries within a bucket must stay newest first")
	}
}

func TestGroupByDay_Empty(t *testing.T) {
	if feed := orders.GroupByDay(nil); len(feed) != 0 {
		t.Errorf("expected empty feed, got %d buckets", len(feed))
	}
}
