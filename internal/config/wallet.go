package config

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/web3pay/payer-svc/internal/wallet"
	"gitlab.com/distributed_lab/figure/v3"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

func (c *config) Wallet() wallet.Wallet {
	return c.walletOnce.Do(func() interface{} {
		var cfg struct {
			Kind       string         `fig:"kind,required"`
			PrivateKey string         `fig:"private_key"`
			Address    common.Address `fig:"address"`
		}

		err := figure.Out(&cfg).
			With(figure.BaseHooks, figure.EthereumHooks).
			From(kv.MustGetStringMap(c.getter, "wallet")).
			Please()
		if err != nil {
			panic(errors.Wrap(err, "failed to figure out wallet"))
		}

		net := c.Network()
		switch cfg.Kind {
		case "keyed":
			chainID, ok := new(big.Int).SetString(net.ChainID, 10)
			if !ok {
				panic(errors.New("invalid chain id"))
			}
			w, err := wallet.NewKeyed(cfg.PrivateKey, chainID, net.EthClient)
			if err != nil {
				panic(errors.Wrap(err, "failed to create keyed wallet"))
			}
			return wallet.Wallet(w)
		case "node":
			if (cfg.Address == common.Address{}) {
				panic(errors.New("wallet address is required for the node wallet"))
			}
			return wallet.Wallet(wallet.NewNode(cfg.Address, net.RPCClient))
		default:
			panic(errors.From(errors.New("unknown wallet kind"), map[string]interface{}{"kind": cfg.Kind}))
		}
	}).(wallet.Wallet)
}
