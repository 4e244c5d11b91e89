package data

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// GraceWindow is how long after nextTime an order may stay unexecuted before
// it counts as missed.
const GraceWindow = 6 * time.Hour

// Order is one subscription as read from the contract, enriched with token
// metadata for display and fee math.
type Order struct {
	ID                *big.Int
	Spender           common.Address
	SpenderLinkIndex  *big.Int
	Receiver          common.Address
	ReceiverLinkIndex *big.Int
	Token             common.Address
	Amount            *big.Int
	Period            *big.Int
	NextTime          *big.Int
	Memo              string
	CreatedAt         *big.Int
	CancelledAt       *big.Int

	// Missed is frozen at load time against the caller's reference time.
	Missed bool
	// TokenInfo is shared by reference with every order of the same token.
	TokenInfo *TokenInfo
}

// Cancelled reports whether the order is terminal.
func (o Order) Cancelled() bool {
	return o.CancelledAt != nil && o.CancelledAt.Sign() != 0
}

// MissedAt reports whether nextTime fell behind the reference time by more
// than the grace window. The exact boundary is not missed.
func MissedAt(nextTime *big.Int, referenceTime time.Time) bool {
	if nextTime == nil {
		return false
	}
	return nextTime.Int64() < referenceTime.Add(-GraceWindow).Unix()
}

// Orders is a mutable set of orders keyed by id.
type Orders interface {
	// Upsert inserts or replaces by id and keeps the set sorted by
	// ascending nextTime. Applying the same order twice yields one entry.
	Upsert(Order)
	// Remove deletes by id, reporting whether the id was present.
	Remove(id *big.Int) bool
	// Get returns the order with the given id.
	Get(id *big.Int) (Order, bool)
	// List returns the orders sorted by ascending nextTime.
	List() []Order
	// Len returns the number of orders in the set.
	Len() int
}
