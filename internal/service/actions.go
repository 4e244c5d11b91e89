package service

import (
	"context"
	"math/big"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/fees"
	"github.com/web3pay/payer-svc/internal/history"
	"github.com/web3pay/payer-svc/internal/invoice"
	"github.com/web3pay/payer-svc/internal/orders"
	"github.com/web3pay/payer-svc/internal/pool"
	"github.com/web3pay/payer-svc/internal/txflow"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Subscribe runs a one-shot order creation from an encoded invoice deep
// link. The payload may be a bare base64 blob or a full "#invoice=..."
// fragment.
func Subscribe(cfg config.Config, payload string) error {
	inv, err := parseInvoice(payload)
	if err != nil {
		return err
	}

	if !common.IsHexAddress(inv.Receiver) {
		return errors.From(errors.New("invoice receiver is not an address"), logan.F{"receiver": inv.Receiver})
	}
	if !common.IsHexAddress(inv.Token) {
		return errors.From(errors.New("invoice token is not an address"), logan.F{"token": inv.Token})
	}
	amount, err := parseUint(inv.Amount, "amount")
	if err != nil {
		return err
	}
	period, err := parseUint(inv.Period, "period")
	if err != nil {
		return err
	}
	startsAt := big.NewInt(time.Now().Unix())
	if inv.StartsAt != "" {
		if startsAt, err = parseUint(inv.StartsAt, "startsAt"); err != nil {
			return err
		}
	}

	return oneShot(cfg, func(ctx context.Context, flow *txflow.Flow) error {
		token := common.HexToAddress(inv.Token)
		repo := orders.NewRepository(cfg.Log(), cfg.Network(), cfg.Wallet().Address())
		info := repo.TokenInfo(ctx, token)
		fee := fees.Calc(amount, info.ServiceFee)
		cfg.Log().WithFields(logan.F{
			"amount":      pool.FormatUnits(amount, info.Decimals) + " " + info.Denom,
			"service_fee": pool.FormatUnits(fee, info.Decimals) + " " + info.Denom,
		}).Info("creating order")

		_, err := flow.Subscribe(ctx,
			common.HexToAddress(inv.Receiver), token,
			amount, period, startsAt, inv.Memo)
		return err
	})
}

// History prints the merged event history of the wallet, grouped by day.
func History(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := cfg.Log()
	net := cfg.Network()
	owner := cfg.Wallet().Address()
	repo := orders.NewRepository(log, net, owner)
	client := history.NewClient(cfg.History())

	outcomes, err := client.Outcomes(net.ChainID, owner.Hex())
	if err != nil {
		return errors.Wrap(err, "failed to get outcomes history")
	}
	incomes, err := client.Incomes(net.ChainID, owner.Hex())
	if err != nil {
		return errors.Wrap(err, "failed to get incomes history")
	}

	for _, feed := range []orders.Feed{
		repo.BuildFeed(ctx, outcomes),
		repo.BuildFeed(ctx, incomes),
	} {
		for _, day := range feed {
			for _, e := range day.Entries {
				log.WithFields(logan.F{
					"date":     day.Date,
					"kind":     e.Item.Kind(),
					"order_id": e.Item.OrderID().String(),
					"amount":   pool.FormatUnits(e.Order.Amount, e.Order.TokenInfo.Decimals) + " " + e.Order.TokenInfo.Denom,
				}).Info("history record")
			}
		}
	}
	return nil
}

// Execute runs a one-shot immediate charge of a due order.
func Execute(cfg config.Config, orderID string) error {
	id, err := parseUint(orderID, "order id")
	if err != nil {
		return err
	}
	return oneShot(cfg, func(ctx context.Context, flow *txflow.Flow) error {
		_, err := flow.Execute(ctx, id)
		return err
	})
}

// Cancel runs a one-shot order termination.
func Cancel(cfg config.Config, orderID string) error {
	id, err := parseUint(orderID, "order id")
	if err != nil {
		return err
	}
	return oneShot(cfg, func(ctx context.Context, flow *txflow.Flow) error {
		_, err := flow.Cancel(ctx, id)
		return err
	})
}

// Claim runs a one-shot batch execution of the current processing pool.
func Claim(cfg config.Config) error {
	state, err := history.NewClient(cfg.History()).Processing(cfg.Network().ChainID)
	if err != nil {
		return errors.Wrap(err, "failed to get processing state")
	}
	if len(state.Orders) == 0 {
		return errors.New("processing pool is empty")
	}

	return oneShot(cfg, func(ctx context.Context, flow *txflow.Flow) error {
		_, err := flow.ExecuteMany(ctx, state.PoolBlockNumber, state.Orders)
		return err
	})
}

func oneShot(cfg config.Config, action func(context.Context, *txflow.Flow) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return action(ctx, txflow.New(cfg.Log(), cfg.Network(), cfg.Wallet()))
}

func parseInvoice(payload string) (invoice.Invoice, error) {
	if strings.Contains(payload, invoice.FragmentKey+"=") {
		inv, ok, err := invoice.FromFragment(payload)
		if err != nil {
			return invoice.Invoice{}, errors.Wrap(err, "failed to parse invoice fragment")
		}
		if !ok {
			return invoice.Invoice{}, errors.New("fragment carries no invoice")
		}
		return inv, nil
	}

	inv, err := invoice.Decode(payload)
	if err != nil {
		return invoice.Invoice{}, errors.Wrap(err, "failed to decode invoice")
	}
	return inv, nil
}

func parseUint(s, what string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.From(errors.New("not a non-negative decimal integer"), logan.F{"field": what, "value": s})
	}
	return v, nil
}
