package data

import (
	"math/big"
	"time"
)

// HistoryKind discriminates the event types of the remote history feed.
type HistoryKind string

const (
	HistorySubscription HistoryKind = "subscription"
	HistoryCancellation HistoryKind = "cancellation"
	HistoryExecution    HistoryKind = "execution"
)

// HistoryItem is one event record of the remote history feed. The concrete
// types below are the only implementations.
type HistoryItem interface {
	Kind() HistoryKind
	OrderID() *big.Int
	Time() time.Time
}

// HistoryEvent carries the coordinates shared by every history record.
type HistoryEvent struct {
	ID               string
	ChainID          string
	Spender          string
	Receiver         string
	Order            *big.Int
	BlockNumber      uint64
	TransactionHash  string
	TransactionIndex uint
	Index            uint
	Timestamp        time.Time
}

func (e HistoryEvent) OrderID() *big.Int { return e.Order }
func (e HistoryEvent) Time() time.Time   { return e.Timestamp }

// SubscriptionEvent records an order creation.
type SubscriptionEvent struct {
	HistoryEvent
}

func (SubscriptionEvent) Kind() HistoryKind { return HistorySubscription }

// CancellationEvent records an order cancellation.
type CancellationEvent struct {
	HistoryEvent
}

func (CancellationEvent) Kind() HistoryKind { return HistoryCancellation }

// ExecutionEvent records one executed charge of an order.
type ExecutionEvent struct {
	HistoryEvent

	Executor         string
	ServiceFee       *big.Int
	ExecutorFee      *big.Int
	ExecutedInPoolID string
}

func (ExecutionEvent) Kind() HistoryKind { return HistoryExecution }

// HistoryLogs groups the three event lists as the remote API returns them.
type HistoryLogs struct {
	Subscriptions []SubscriptionEvent
	Cancellations []CancellationEvent
	Executions    []ExecutionEvent
}

// ProcessingState describes the batch-execution pool reported by the remote
// processing endpoint.
type ProcessingState struct {
	PoolBlockNumber *big.Int
	TotalRewards    map[string]*big.Int
	ExpectedRewards map[string]*big.Int
	Orders          []*big.Int
	Limit           int
}
