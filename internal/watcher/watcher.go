// Package watcher maintains a pseudo log-filter against an RPC endpoint that
// only offers polling and filter primitives, and turns matching raw logs into
// decoded contract events.
package watcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"gitlab.com/distributed_lab/logan/v3"
)

// State is the lifecycle phase of one watcher instance.
type State int32

const (
	StateIdle State = iota
	StateFilterPending
	StateFilterActive
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFilterPending:
		return "filter_pending"
	case StateFilterActive:
		return "filter_active"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	// DefaultLagLimit bounds redundant polling under rapid block
	// production: heads within the window re-arm the listener without a poll.
	DefaultLagLimit = 5
	// DefaultBackoff is the fixed delay between retries of failed
	// transport calls. Retries continue until Stop.
	DefaultBackoff = time.Second

	uninstallTimeout = 5 * time.Second
)

// Callback receives decoded events in the order the node returned raw logs.
type Callback func(Event)

// Opts configure a watcher instance.
type Opts struct {
	Log     *logan.Entry
	Client  *rpc.Client
	ABI     abi.ABI
	Address common.Address
	// Topics follow the eth_newFilter convention: one position per
	// indexed slot, nil meaning "any".
	Topics   [][]common.Hash
	Heads    <-chan uint64
	Callback Callback
	// FromBlock bounds the initial filter; the contract deploy block is a
	// natural choice. Recreated filters always start at "latest".
	FromBlock uint64
	LagLimit  uint64
	Backoff   time.Duration
}

// Watcher owns one node-side log filter. Construction immediately requests
// the filter and starts the polling loop; the caller must Stop it to release
// the filter id.
type Watcher struct {
	log    *logan.Entry
	client *rpc.Client

	contractAbi abi.ABI
	address     common.Address
	topics      [][]common.Hash
	heads       <-chan uint64
	clb         Callback

	fromBlock uint64
	lagLimit  uint64
	backoff   time.Duration

	state     int32
	filterID  string
	lastBlock uint64

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

func New(opts Opts) *Watcher {
	if opts.LagLimit == 0 {
		opts.LagLimit = DefaultLagLimit
	}
	if opts.Backoff == 0 {
		opts.Backoff = DefaultBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		log:         opts.Log.WithField("address", opts.Address.Hex()),
		client:      opts.Client,
		contractAbi: opts.ABI,
		address:     opts.Address,
		topics:      opts.Topics,
		heads:       opts.Heads,
		clb:         opts.Callback,
		fromBlock:   opts.FromBlock,
		lagLimit:    opts.LagLimit,
		backoff:     opts.Backoff,
		state:       int32(StateIdle),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go w.run()
	return w
}

// State reports the current lifecycle phase.
func (w *Watcher) State() State {
	return State(atomic.LoadInt32(&w.state))
}

// Stop terminates the loop, guarantees no further callbacks fire and issues
// a best-effort uninstall of the held filter id.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		<-w.done

		if id := w.filterID; id != "" {
			ctx, cancel := context.WithTimeout(context.Background(), uninstallTimeout)
			defer cancel()

			var ok bool
			if err := w.client.CallContext(ctx, &ok, "eth_uninstallFilter", id); err != nil {
				w.log.WithError(err).WithField("filter_id", id).Warn("failed to uninstall log filter")
			}
			w.filterID = ""
		}

		w.setState(StateStopped)
	})
}

func (w *Watcher) run() {
	defer close(w.done)

	w.setState(StateFilterPending)
	if !w.ensureFilter() {
		return
	}
	w.setState(StateFilterActive)

	for {
		select {
		case <-w.ctx.Done():
			return
		case head, ok := <-w.heads:
			if !ok {
				return
			}
			if w.lastBlock != 0 && head >= w.lastBlock && head-w.lastBlock < w.lagLimit {
				continue
			}
			if !w.poll() {
				return
			}
			w.lastBlock = head
			w.setState(StateFilterActive)
		}
	}
}

type filterArg struct {
	FromBlock string          `json:"fromBlock"`
	ToBlock   string          `json:"toBlock"`
	Address   common.Address  `json:"address"`
	Topics    [][]common.Hash `json:"topics"`
}

// ensureFilter requests a node-side filter id, retrying transport failures
// with a fixed backoff. A node-rejected request is terminal for the watcher.
func (w *Watcher) ensureFilter() bool {
	if w.filterID != "" {
		return true
	}

	from := "latest"
	if w.lastBlock == 0 {
		from = hexutil.EncodeUint64(w.fromBlock)
	}
	arg := filterArg{
		FromBlock: from,
		ToBlock:   "latest",
		Address:   w.address,
		Topics:    w.topics,
	}

	for {
		if w.stopped() {
			return false
		}

		var id string
		err := w.client.CallContext(w.ctx, &id, "eth_newFilter", arg)
		if w.stopped() {
			return false
		}
		if err == nil {
			if id == "" {
				w.log.Error("node returned an empty filter id")
				w.setState(StateStopped)
				return false
			}
			w.filterID = id
			return true
		}

		if _, protocol := err.(rpc.Error); protocol {
			w.log.WithError(err).Error("node rejected the log filter")
			w.setState(StateStopped)
			return false
		}

		w.log.WithError(err).Warn("failed to create log filter, retrying")
		if !w.sleep() {
			return false
		}
	}
}

// poll drains the filter changes accumulated since the previous poll. A
// node-side filter eviction transparently falls back to filter re-creation.
func (w *Watcher) poll() bool {
	for {
		if !w.ensureFilter() {
			return false
		}
		w.setState(StatePolling)

		var logs []types.Log
		err := w.client.CallContext(w.ctx, &logs, "eth_getFilterChanges", w.filterID)
		if w.stopped() {
			return false
		}
		if err != nil {
			if _, protocol := err.(rpc.Error); protocol {
				w.log.WithError(err).WithField("filter_id", w.filterID).Warn("log filter is gone, recreating")
				w.filterID = ""
				w.setState(StateFilterPending)
				continue
			}

			w.log.WithError(err).Warn("failed to poll filter changes, retrying")
			if !w.sleep() {
				return false
			}
			continue
		}

		for i := range logs {
			if w.stopped() {
				return false
			}
			event, err := w.decode(logs[i])
			if err != nil {
				w.log.WithError(err).Warn("skipping undecodable log")
				continue
			}
			w.clb(event)
		}

		return true
	}
}

func (w *Watcher) sleep() bool {
	select {
	case <-w.ctx.Done():
		return false
	case <-time.After(w.backoff):
		return true
	}
}

func (w *Watcher) stopped() bool {
	return w.ctx.Err() != nil
}

func (w *Watcher) setState(s State) {
	atomic.StoreInt32(&w.state, int32(s))
}
