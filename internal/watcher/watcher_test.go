package watcher_test

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/web3pay/payer-svc/internal/gobind"
	"github.com/web3pay/payer-svc/internal/watcher"
	"gitlab.com/distributed_lab/logan/v3"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// stubNode scripts JSON-RPC responses per method and records the order of
// incoming calls.
type stubNode struct {
	t *testing.T

	mu      sync.Mutex
	calls   []string
	replies map[string][]func() (interface{}, *rpcError)
	counts  map[string]int
}

func newStubNode(t *testing.T) *stubNode {
	return &stubNode{
		t:       t,
		replies: make(map[string][]func() (interface{}, *rpcError)),
		counts:  make(map[string]int),
	}
}

func (s *stubNode) on(method string, reply func() (interface{}, *rpcError)) {
	s.replies[method] = append(s.replies[method], reply)
}

func (s *stubNode) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.t.Errorf("failed to decode rpc request: %v", err)
			return
		}

		s.mu.Lock()
		s.calls = append(s.calls, req.Method)
		idx := s.counts[req.Method]
		s.counts[req.Method]++
		queue := s.replies[req.Method]
		s.mu.Unlock()

		if idx >= len(queue) {
			s.t.Errorf("unexpected call %d of %s", idx+1, req.Method)
			return
		}

		result, rpcErr := queue[idx]()
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": json.RawMessage(req.ID)}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (s *stubNode) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method]
}

func (s *stubNode) callOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func result(v interface{}) func() (interface{}, *rpcError) {
	return func() (interface{}, *rpcError) { return v, nil }
}

func failure(code int, msg string) func() (interface{}, *rpcError) {
	return func() (interface{}, *rpcError) { return nil, &rpcError{Code: code, Message: msg} }
}

func subscriptionLog(contract common.Address, spender, receiver common.Address, orderID int64, block uint64) map[string]interface{} {
	contractAbi, _ := gobind.PaymentsMetaData.GetAbi()
	return map[string]interface{}{
		"address": contract.Hex(),
		"topics": []string{
			contractAbi.Events["Subscription"].ID.Hex(),
			common.BytesToHash(common.LeftPadBytes(spender.Bytes(), 32)).Hex(),
			common.BytesToHash(common.LeftPadBytes(receiver.Bytes(), 32)).Hex(),
		},
		"data":             "0x" + common.Bytes2Hex(big.NewInt(orderID).FillBytes(make([]byte, 32))),
		"blockNumber":      fmt.Sprintf("0x%x", block),
		"transactionHash":  common.HexToHash("0xaa").Hex(),
		"transactionIndex": "0x0",
		"blockHash":        common.HexToHash("0xbb").Hex(),
		"logIndex":         "0x0",
		"removed":          false,
	}
}

func startWatcher(t *testing.T, node *stubNode, heads <-chan uint64, clb watcher.Callback) *watcher.Watcher {
	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)

	client, err := rpc.Dial(srv.URL)
	if err != nil {
		t.Fatalf("failed to dial stub node: %v", err)
	}
	t.Cleanup(client.Close)

	contractAbi, err := gobind.PaymentsMetaData.GetAbi()
	if err != nil {
		t.Fatalf("failed to parse abi: %v", err)
	}

	return watcher.New(watcher.Opts{
		Log:      logan.New(),
		Client:   client,
		ABI:      *contractAbi,
		Address:  common.HexToAddress("0xf245a4396e23a1fde5c95a099a079cc513d63aee"),
		Topics:   [][]common.Hash{{contractAbi.Events["Subscription"].ID}},
		Heads:    heads,
		Callback: clb,
		Backoff:  10 * time.Millisecond,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcher_RecreatesExpiredFilter(t *testing.T) {
	node := newStubNode(t)
	contract := common.HexToAddress("0xf245a4396e23a1fde5c95a099a079cc513d63aee")
	spender := common.HexToAddress("0x01")
	receiver := common.HexToAddress("0x02")

	node.on("eth_newFilter", result("0x1"))
	node.on("eth_newFilter", result("0x2"))
	node.on("eth_getFilterChanges", result([]interface{}{}))
	node.on("eth_getFilterChanges", failure(-32000, "filter not found"))
	node.on("eth_getFilterChanges", result([]interface{}{
		subscriptionLog(contract, spender, receiver, 7, 200),
	}))
	node.on("eth_uninstallFilter", result(true))

	heads := make(chan uint64, 2)
	events := make(chan watcher.Event, 2)
	w := startWatcher(t, node, heads, func(ev watcher.Event) { events <- ev })
	defer w.Stop()

	heads <- 100
	waitFor(t, "first poll", func() bool { return node.callCount("eth_getFilterChanges") == 1 })

	heads <- 200
	var ev watcher.Event
	select {
	case ev = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted after filter recreation")
	}

	if ev.Name != "Subscription" {
		t.Errorf("expected Subscription event, got %s", ev.Name)
	}
	id, ok := ev.Data["id"].(*big.Int)
	if !ok || id.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("expected order id 7, got %v", ev.Data["id"])
	}
	if got := ev.Topics["spender"].(common.Address); got != spender {
		t.Errorf("expected spender %s, got %s", spender, got)
	}

	if node.callCount("eth_newFilter") != 2 {
		t.Errorf("expected a second eth_newFilter call, got %d", node.callCount("eth_newFilter"))
	}
	order := node.callOrder()
	last3 := order[len(order)-3:]
	if last3[0] != "eth_getFilterChanges" || last3[1] != "eth_newFilter" || last3[2] != "eth_getFilterChanges" {
		t.Errorf("recreation did not precede the retry poll: %v", order)
	}
}

func TestWatcher_StopSuppressesInFlightPoll(t *testing.T) {
	node := newStubNode(t)
	contract := common.HexToAddress("0xf245a4396e23a1fde5c95a099a079cc513d63aee")

	started := make(chan struct{})
	release := make(chan struct{})

	node.on("eth_newFilter", result("0x1"))
	node.on("eth_getFilterChanges", func() (interface{}, *rpcError) {
		close(started)
		<-release
		return []interface{}{
			subscriptionLog(contract, common.HexToAddress("0x01"), common.HexToAddress("0x02"), 1, 10),
		}, nil
	})
	node.on("eth_uninstallFilter", result(true))

	heads := make(chan uint64, 1)
	events := make(chan watcher.Event, 1)
	w := startWatcher(t, node, heads, func(ev watcher.Event) { events <- ev })

	heads <- 100
	<-started

	w.Stop()
	close(release)

	select {
	case ev := <-events:
		t.Fatalf("callback fired after stop: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}

	if w.State() != watcher.StateStopped {
		t.Errorf("expected stopped state, got %s", w.State())
	}
}

func TestWatcher_FatalOnRejectedFilter(t *testing.T) {
	node := newStubNode(t)
	node.on("eth_newFilter", failure(-32602, "invalid filter params"))

	heads := make(chan uint64, 1)
	w := startWatcher(t, node, heads, func(watcher.Event) {
		t.Error("no events expected from a rejected filter")
	})
	defer w.Stop()

	waitFor(t, "stopped state", func() bool { return w.State() == watcher.StateStopped })
	if node.callCount("eth_newFilter") != 1 {
		t.Errorf("protocol errors must not be retried, got %d creation calls", node.callCount("eth_newFilter"))
	}
}

func TestWatcher_DebouncesCloseHeads(t *testing.T) {
	node := newStubNode(t)
	node.on("eth_newFilter", result("0x1"))
	node.on("eth_getFilterChanges", result([]interface{}{}))
	node.on("eth_getFilterChanges", result([]interface{}{}))
	node.on("eth_uninstallFilter", result(true))

	heads := make(chan uint64, 3)
	w := startWatcher(t, node, heads, func(watcher.Event) {})
	defer w.Stop()

	heads <- 100
	waitFor(t, "first poll", func() bool { return node.callCount("eth_getFilterChanges") == 1 })

	// within the lag window: no poll, listener is just re-armed
	heads <- 102
	time.Sleep(100 * time.Millisecond)
	if got := node.callCount("eth_getFilterChanges"); got != 1 {
		t.Fatalf("head within lag window triggered a poll: %d calls", got)
	}

	heads <- 200
	waitFor(t, "second poll", func() bool { return node.callCount("eth_getFilterChanges") == 2 })
}
