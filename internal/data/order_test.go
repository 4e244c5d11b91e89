package data_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/web3pay/payer-svc/internal/data"
)

func TestMissedAt(t *testing.T) {
	ref := time.Unix(1_700_000_000, 0)
	grace := int64(data.GraceWindow / time.Second)

	cases := []struct {
		name     string
		nextTime int64
		missed   bool
	}{
		{"future", ref.Unix() + 100, false},
		{"within grace", ref.Unix() - grace + 1, false},
		{"exact boundary", ref.Unix() - grace, false},
		{"past grace", ref.Unix() - grace - 1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := data.MissedAt(big.NewInt(tc.nextTime), ref); got != tc.missed {
				t.Errorf("MissedAt(%d) = %v, expected %v", tc.nextTime, got, tc.missed)
			}
		})
	}
}

func TestOrderCancelled(t *testing.T) {
	if (data.Order{CancelledAt: big.NewInt(0)}).Cancelled() {
		t.Error("zero cancelledAt must not count as cancelled")
	}
	if !(data.Order{CancelledAt: big.NewInt(1_700_000_000)}).Cancelled() {
		t.Error("non-zero cancelledAt must count as cancelled")
	}
}
