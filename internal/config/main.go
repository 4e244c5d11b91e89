package config

import (
	"github.com/web3pay/payer-svc/internal/wallet"
	"gitlab.com/distributed_lab/kit/comfig"
	"gitlab.com/distributed_lab/kit/kv"
)

type Config interface {
	comfig.Logger

	Network() Network
	History() History
	Pricer() Pricer
	Wallet() wallet.Wallet
}

type config struct {
	comfig.Logger
	getter kv.Getter

	networkOnce comfig.Once
	historyOnce comfig.Once
	pricerOnce  comfig.Once
	walletOnce  comfig.Once
}

func New(getter kv.Getter) Config {
	return &config{
		getter: getter,
		Logger: comfig.NewLogger(getter, comfig.LoggerOpts{}),
	}
}
