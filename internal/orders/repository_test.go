package orders_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/gobind"
	"github.com/web3pay/payer-svc/internal/orders"
	"gitlab.com/distributed_lab/logan/v3"
)

// failingNetwork backs the shared clients with a node that rejects every
// call, so all contract reads fail.
func failingNetwork(t *testing.T, tokens ...config.Token) config.Network {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode rpc request: %v", err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      json.RawMessage(req.ID),
			"error":   map[string]interface{}{"code": 3, "message": "execution reverted"},
		})
	}))
	t.Cleanup(srv.Close)

	rpcCli, err := rpc.Dial(srv.URL)
	if err != nil {
		t.Fatalf("failed to dial stub node: %v", err)
	}
	t.Cleanup(rpcCli.Close)
	ethCli := ethclient.NewClient(rpcCli)

	contract := common.HexToAddress("0xf245a4396e23a1fde5c95a099a079cc513d63aee")
	payments, err := gobind.NewPayments(contract, ethCli)
	if err != nil {
		t.Fatalf("failed to create contract caller: %v", err)
	}

	return config.Network{
		Payments:        payments,
		EthClient:       ethCli,
		RPCClient:       rpcCli,
		ChainID:         "1",
		ContractAddress: contract,
		Tokens:          tokens,
	}
}

func TestRepository_TokenInfoDegradesToPlaceholder(t *testing.T) {
	owner := common.HexToAddress("0x01")
	token := common.HexToAddress("0x036cbd53842c5426634e7929541ec2318f3dcf7e")
	repo := orders.NewRepository(logan.New(), failingNetwork(t), owner)

	info := repo.TokenInfo(context.Background(), token)

	if info.Name != "Custom token: "+token.Hex() {
		t.Errorf("unexpected placeholder name: %q", info.Name)
	}
	if info.Denom != "$TOKEN" {
		t.Errorf("unexpected placeholder denom: %q", info.Denom)
	}
	if info.Decimals != 0 {
		t.Errorf("unexpected placeholder decimals: %d", info.Decimals)
	}
	if info.Logo != "/tokens/unknown.webp" {
		t.Errorf("unexpected placeholder logo: %q", info.Logo)
	}
	if info.ProcessingFee.Sign() != 0 {
		t.Errorf("processing fee must degrade to zero, got %s", info.ProcessingFee)
	}
	if info.ServiceFee.Div.Sign() != 0 {
		t.Errorf("service fee schedule must degrade to disabled, got div %s", info.ServiceFee.Div)
	}

	if again := repo.TokenInfo(context.Background(), token); again != info {
		t.Error("token info must be cached and shared by reference")
	}
}

func TestRepository_TokenInfoPrefersStaticList(t *testing.T) {
	owner := common.HexToAddress("0x01")
	token := common.HexToAddress("0x036cbd53842c5426634e7929541ec2318f3dcf7e")
	static := config.Token{
		Contract: token,
		Name:     "USD Coin",
		Denom:    "USDC",
		Decimals: 6,
		Logo:     "/tokens/usdc.webp",
	}
	repo := orders.NewRepository(logan.New(), failingNetwork(t, static), owner)

	info := repo.TokenInfo(context.Background(), token)

	if info.Name != static.Name || info.Denom != static.Denom ||
		info.Decimals != static.Decimals || info.Logo != static.Logo {
		t.Errorf("static list metadata not applied: %+v", info)
	}
	// commission reads still fail against this node
	if info.ServiceFee.Div.Sign() != 0 {
		t.Errorf("service fee schedule must degrade to disabled, got div %s", info.ServiceFee.Div)
	}
}
