// Package mem holds the in-memory implementations of the data interfaces,
// scoped to one wallet/network session.
package mem

import (
	"math/big"
	"sort"
	"sync"

	"github.com/web3pay/payer-svc/internal/data"
)

type orders struct {
	mu   sync.Mutex
	list []data.Order
}

// NewOrders returns an empty in-memory order set.
func NewOrders() data.Orders {
	return &orders{}
}

func (s *orders) Upsert(o data.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(o.ID)
	if idx > -1 {
		s.list[idx] = o
	} else {
		s.list = append(s.list, o)
	}

	sort.SliceStable(s.list, func(i, j int) bool {
		return s.list[i].NextTime.Cmp(s.list[j].NextTime) < 0
	})
}

func (s *orders) Remove(id *big.Int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx == -1 {
		return false
	}

	s.list = append(s.list[:idx], s.list[idx+1:]...)
	return true
}

func (s *orders) Get(id *big.Int) (data.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx == -1 {
		return data.Order{}, false
	}
	return s.list[idx], true
}

func (s *orders) List() []data.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]data.Order, len(s.list))
	copy(out, s.list)
	return out
}

func (s *orders) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

func (s *orders) indexOf(id *big.Int) int {
	for i := range s.list {
		if s.list[i].ID.Cmp(id) == 0 {
			return i
		}
	}
	return -1
}
