// Package history reads the remote history/processing API. The API is an
// external collaborator with a fixed plain-JSON contract.
package history

import (
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/data"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

type Client struct {
	connector config.History
}

func NewClient(connector config.History) *Client {
	return &Client{connector: connector}
}

type eventRecord struct {
	ID               string `json:"id"`
	ChainID          string `json:"chainId"`
	Spender          string `json:"spender"`
	Receiver         string `json:"receiver"`
	OrderID          string `json:"orderId"`
	BlockNumber      uint64 `json:"blockNumber"`
	TransactionHash  string `json:"transactionHash"`
	TransactionIndex uint   `json:"transactionIndex"`
	Index            uint   `json:"index"`
	Timestamp        string `json:"timestamp"`
}

type executionRecord struct {
	eventRecord
	Executor         *string `json:"executor"`
	ServiceFee       string  `json:"serviceFee"`
	ExecutorFee      string  `json:"executorFee"`
	ExecutedInPoolID *string `json:"executedInPoolId"`
}

type historyResponse struct {
	Subscriptions []eventRecord     `json:"subscriptions"`
	Cancellations []eventRecord     `json:"cancellations"`
	Executions    []executionRecord `json:"executions"`
}

type processingResponse struct {
	PoolBlockNumber string            `json:"poolBlockNumber"`
	TotalRewards    map[string]string `json:"totalRewards"`
	ExpectedRewards map[string]string `json:"expectedRewards"`
	Orders          []string          `json:"orders"`
	Limit           int               `json:"limit"`
}

// Outcomes fetches the event history of orders the address pays for.
func (c *Client) Outcomes(chainID, address string) (data.HistoryLogs, error) {
	return c.getHistory(fmt.Sprintf("/outcomes/%s/%s/history", chainID, address))
}

// Incomes fetches the event history of orders the address receives from.
func (c *Client) Incomes(chainID, address string) (data.HistoryLogs, error) {
	return c.getHistory(fmt.Sprintf("/incomes/%s/%s/history", chainID, address))
}

func (c *Client) getHistory(path string) (data.HistoryLogs, error) {
	u, err := url.Parse(path)
	if err != nil {
		return data.HistoryLogs{}, errors.Wrap(err, "failed to parse url")
	}

	var resp historyResponse
	if err = c.connector.Get(u, &resp); err != nil {
		return data.HistoryLogs{}, errors.Wrap(err, "failed to get history")
	}

	logs := data.HistoryLogs{
		Subscriptions: make([]data.SubscriptionEvent, 0, len(resp.Subscriptions)),
		Cancellations: make([]data.CancellationEvent, 0, len(resp.Cancellations)),
		Executions:    make([]data.ExecutionEvent, 0, len(resp.Executions)),
	}

	for _, r := range resp.Subscriptions {
		base, err := r.toEvent()
		if err != nil {
			return data.HistoryLogs{}, errors.Wrap(err, "failed to parse subscription record")
		}
		logs.Subscriptions = append(logs.Subscriptions, data.SubscriptionEvent{HistoryEvent: base})
	}
	for _, r := range resp.Cancellations {
		base, err := r.toEvent()
		if err != nil {
			return data.HistoryLogs{}, errors.Wrap(err, "failed to parse cancellation record")
		}
		logs.Cancellations = append(logs.Cancellations, data.CancellationEvent{HistoryEvent: base})
	}
	for _, r := range resp.Executions {
		base, err := r.toEvent()
		if err != nil {
			return data.HistoryLogs{}, errors.Wrap(err, "failed to parse execution record")
		}
		e := data.ExecutionEvent{HistoryEvent: base}
		if r.Executor != nil {
			e.Executor = *r.Executor
		}
		if r.ExecutedInPoolID != nil {
			e.ExecutedInPoolID = *r.ExecutedInPoolID
		}
		if e.ServiceFee, err = parseBig(r.ServiceFee); err != nil {
			return data.HistoryLogs{}, errors.Wrap(err, "failed to parse service fee")
		}
		if e.ExecutorFee, err = parseBig(r.ExecutorFee); err != nil {
			return data.HistoryLogs{}, errors.Wrap(err, "failed to parse executor fee")
		}
		logs.Executions = append(logs.Executions, e)
	}

	return logs, nil
}

// Processing fetches the batch-execution pool state of the chain.
func (c *Client) Processing(chainID string) (data.ProcessingState, error) {
	u, err := url.Parse("/processing/" + chainID)
	if err != nil {
		return data.ProcessingState{}, errors.Wrap(err, "failed to parse url")
	}

	var resp processingResponse
	if err = c.connector.Get(u, &resp); err != nil {
		return data.ProcessingState{}, errors.Wrap(err, "failed to get processing state")
	}

	state := data.ProcessingState{
		TotalRewards:    make(map[string]*big.Int, len(resp.TotalRewards)),
		ExpectedRewards: make(map[string]*big.Int, len(resp.ExpectedRewards)),
		Orders:          make([]*big.Int, 0, len(resp.Orders)),
		Limit:           resp.Limit,
	}

	if state.PoolBlockNumber, err = parseBig(resp.PoolBlockNumber); err != nil {
		return data.ProcessingState{}, errors.Wrap(err, "failed to parse pool block number")
	}
	for contract, amount := range resp.TotalRewards {
		if state.TotalRewards[contract], err = parseBig(amount); err != nil {
			return data.ProcessingState{}, errors.Wrap(err, "failed to parse total reward", logan.F{"contract": contract})
		}
	}
	for contract, amount := range resp.ExpectedRewards {
		if state.ExpectedRewards[contract], err = parseBig(amount); err != nil {
			return data.ProcessingState{}, errors.Wrap(err, "failed to parse expected reward", logan.F{"contract": contract})
		}
	}
	for _, id := range resp.Orders {
		parsed, err := parseBig(id)
		if err != nil {
			return data.ProcessingState{}, errors.Wrap(err, "failed to parse order id", logan.F{"order_id": id})
		}
		state.Orders = append(state.Orders, parsed)
	}

	return state, nil
}

func (r eventRecord) toEvent() (data.HistoryEvent, error) {
	orderID, err := parseBig(r.OrderID)
	if err != nil {
		return data.HistoryEvent{}, errors.Wrap(err, "failed to parse order id", logan.F{"order_id": r.OrderID})
	}
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return data.HistoryEvent{}, errors.Wrap(err, "failed to parse timestamp", logan.F{"timestamp": r.Timestamp})
	}

	return data.HistoryEvent{
		ID:               r.ID,
		ChainID:          r.ChainID,
		Spender:          r.Spender,
		Receiver:         r.Receiver,
		Order:            orderID,
		BlockNumber:      r.BlockNumber,
		TransactionHash:  r.TransactionHash,
		TransactionIndex: r.TransactionIndex,
		Index:            r.Index,
		Timestamp:        ts,
	}, nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("not a decimal integer: " + s)
	}
	return v, nil
}
