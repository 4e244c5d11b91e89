package mem_test

import (
	"math/big"
	"testing"

	"github.com/web3pay/payer-svc/internal/data"
	"github.com/web3pay/payer-svc/internal/data/mem"
)

func order(id, nextTime int64) data.Order {
	return data.Order{ID: big.NewInt(id), NextTime: big.NewInt(nextTime)}
}

func TestOrders_UpsertIsIdempotent(t *testing.T) {
	set := mem.NewOrders()
	set.Upsert(order(1, 100))
	set.Upsert(order(2, 200))
	set.Upsert(order(1, 150))

	if set.Len() != 2 {
		t.Fatalf("expected 2 orders after re-upsert, got %d", set.Len())
	}
	got, ok := set.Get(big.NewInt(1))
	if !ok {
		t.Fatal("order 1 is missing")
	}
	if got.NextTime.Int64() != 150 {
		t.Errorf("re-upsert did not replace the order: nextTime %d", got.NextTime.Int64())
	}
}

func TestOrders_ListSortedByNextTime(t *testing.T) {
	set := mem.NewOrders()
	set.Upsert(order(1, 300))
	set.Upsert(order(2, 100))
	set.Upsert(order(3, 200))

	list := set.List()
	want := []int64{100, 200, 300}
	for i, w := range want {
		if got := list[i].NextTime.Int64(); got != w {
			t.Errorf("position %d: expected nextTime %d, got %d", i, w, got)
		}
	}
}

func TestOrders_Remove(t *testing.T) {
	set := mem.NewOrders()
	set.Upsert(order(1, 100))

	if !set.Remove(big.NewInt(1)) {
		t.Error("expected removal of a present order to report true")
	}
	if set.Remove(big.NewInt(1)) {
		t.Error("expected removal of a missing order to report false")
	}
	if set.Len() != 0 {
		t.Errorf("expected empty set, got %d", set.Len())
	}
}
