package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"gitlab.com/distributed_lab/logan/v3"
)

// Heights polls the chain height through the shared eth client and fans new
// heads out to every subscribed watcher. One instance serves all watchers of
// an RPC endpoint.
type Heights struct {
	log    *logan.Entry
	client *ethclient.Client
	period time.Duration

	mu   sync.Mutex
	subs []chan uint64
}

func NewHeights(client *ethclient.Client, period time.Duration, log *logan.Entry) *Heights {
	return &Heights{
		log:    log,
		client: client,
		period: period,
	}
}

// Subscribe registers a head listener. The channel keeps only the freshest
// height: stale unconsumed heads are dropped, which the watchers' lag-window
// debounce absorbs.
func (h *Heights) Subscribe() <-chan uint64 {
	ch := make(chan uint64, 1)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Run polls until the context is cancelled, then closes all subscriptions.
func (h *Heights) Run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	defer h.closeAll()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := h.client.BlockNumber(ctx)
		if err != nil {
			h.log.WithError(err).Debug("failed to get chain height")
			continue
		}
		if n == last {
			continue
		}
		last = n

		h.mu.Lock()
		for _, ch := range h.subs {
			select {
			case ch <- n:
			default:
				select {
				case <-ch:
				default:
				}
				ch <- n
			}
		}
		h.mu.Unlock()
	}
}

func (h *Heights) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
