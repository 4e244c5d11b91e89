package config

import (
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cast"
	"github.com/web3pay/payer-svc/internal/gobind"
	"gitlab.com/distributed_lab/figure/v3"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Token is a statically configured token of the active network.
type Token struct {
	Contract common.Address `fig:"contract,required"`
	Name     string         `fig:"name,required"`
	Denom    string         `fig:"denom,required"`
	Decimals uint8          `fig:"decimals,required"`
	Logo     string         `fig:"logo"`
}

// Links hold block-explorer URL prefixes of the active network.
type Links struct {
	Address string `fig:"address"`
	Tx      string `fig:"tx"`
	Token   string `fig:"token"`
}

// TxURL renders the explorer link of a transaction, or "" when the network
// has no explorer configured.
func (l Links) TxURL(hash common.Hash) string {
	if l.Tx == "" {
		return ""
	}
	return l.Tx + hash.Hex()
}

// AddressURL renders the explorer link of an account.
func (l Links) AddressURL(addr common.Address) string {
	if l.Address == "" {
		return ""
	}
	return l.Address + addr.Hex()
}

// Network owns the shared RPC connection of the process and the payments
// contract binding. It is memoized, so every component talks to the node
// through the same client instance.
type Network struct {
	*gobind.Payments
	EthClient *ethclient.Client
	RPCClient *rpc.Client

	ChainID         string
	ContractAddress common.Address
	DeployBlock     uint64
	Denom           string
	CoingeckoID     string
	Tokens          []Token
	Links           Links
	RequestTimeout  time.Duration
}

const defaultRequestTimeout = 10 * time.Second
const maxChainID int64 = math.MaxUint64/2 - 36

var tokenListHook = figure.Hooks{
	"[]config.Token": func(value interface{}) (reflect.Value, error) {
		raw, err := cast.ToSliceE(value)
		if err != nil {
			return reflect.Value{}, errors.Wrap(err, "failed to cast token list")
		}

		tokens := make([]Token, 0, len(raw))
		for _, item := range raw {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return reflect.Value{}, errors.Wrap(err, "failed to cast token entry")
			}

			var t Token
			err = figure.Out(&t).With(figure.BaseHooks, figure.EthereumHooks).From(m).Please()
			if err != nil {
				return reflect.Value{}, errors.Wrap(err, "failed to figure out token")
			}
			tokens = append(tokens, t)
		}

		return reflect.ValueOf(tokens), nil
	},
}

func (c *config) Network() Network {
	return c.networkOnce.Do(func() interface{} {
		var cfg struct {
			RPC            string         `fig:"rpc,required"`
			Contract       common.Address `fig:"contract,required"`
			ChainID        int64          `fig:"chain_id,required"`
			DeployBlock    uint64         `fig:"deploy_block"`
			Denom          string         `fig:"denom,required"`
			CoingeckoID    string         `fig:"coingecko_id"`
			Tokens         []Token        `fig:"tokens"`
			Links          Links          `fig:"links"`
			RequestTimeout time.Duration  `fig:"request_timeout"`
		}

		err := figure.Out(&cfg).
			With(figure.BaseHooks, figure.EthereumHooks, tokenListHook).
			From(kv.MustGetStringMap(c.getter, "network")).
			Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out network"))
		}

		if cfg.ChainID > maxChainID || cfg.ChainID <= 0 {
			panic("chain_id value out of range due to EIP 2294")
		}
		rpcCli, err := rpc.Dial(cfg.RPC)
		if err != nil {
			panic(errors.Wrap(err, "failed to connect to RPC provider"))
		}
		ethCli := ethclient.NewClient(rpcCli)
		p, err := gobind.NewPayments(cfg.Contract, ethCli)
		if err != nil {
			panic(errors.Wrap(err, "failed to create contract caller"))
		}

		if cfg.RequestTimeout == 0 {
			cfg.RequestTimeout = defaultRequestTimeout
		}

		return Network{
			Payments:        p,
			EthClient:       ethCli,
			RPCClient:       rpcCli,
			ChainID:         strconv.FormatInt(cfg.ChainID, 10),
			ContractAddress: cfg.Contract,
			DeployBlock:     cfg.DeployBlock,
			Denom:           cfg.Denom,
			CoingeckoID:     cfg.CoingeckoID,
			Tokens:          cfg.Tokens,
			Links:           cfg.Links,
			RequestTimeout:  cfg.RequestTimeout,
		}
	}).(Network)
}

// FindToken matches a token contract against the static token list.
func (n Network) FindToken(contract common.Address) (Token, bool) {
	for _, t := range n.Tokens {
		if t.Contract == contract {
			return t, true
		}
	}
	return Token{}, false
}
