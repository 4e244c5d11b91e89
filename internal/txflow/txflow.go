// Package txflow drives contract write actions through their full lifecycle:
// build calldata, estimate, sign and submit through the wallet, then wait for
// the receipt to accumulate confirmations.
package txflow

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/gobind"
	"github.com/web3pay/payer-svc/internal/wallet"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

const (
	// DefaultConfirmations is how many blocks a receipt must age before an
	// action counts as settled.
	DefaultConfirmations = 3

	defaultPollPeriod = 2 * time.Second
)

type Flow struct {
	log    *logan.Entry
	net    config.Network
	wallet wallet.Wallet

	confirmations uint64
	pollPeriod    time.Duration
}

func New(log *logan.Entry, net config.Network, w wallet.Wallet) *Flow {
	return &Flow{
		log:           log,
		net:           net,
		wallet:        w,
		confirmations: DefaultConfirmations,
		pollPeriod:    defaultPollPeriod,
	}
}

// Subscribe creates a new order. The token allowance is topped up first when
// it cannot cover the order amount, as a separate settled transaction.
func (f *Flow) Subscribe(ctx context.Context, receiver, token common.Address, amount, period, startsAt *big.Int, memo string) (*types.Receipt, error) {
	if err := f.ensureAllowance(ctx, token, amount); err != nil {
		return nil, errors.Wrap(err, "failed to ensure token allowance")
	}

	calldata, err := f.net.PackSubscribe(receiver, token, amount, period, startsAt, memo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack subscribe calldata")
	}
	return f.run(ctx, "subscribe", f.net.ContractAddress, calldata)
}

// Execute charges a due order immediately.
func (f *Flow) Execute(ctx context.Context, orderID *big.Int) (*types.Receipt, error) {
	calldata, err := f.net.PackExecute(orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack execute calldata")
	}
	return f.run(ctx, "execute", f.net.ContractAddress, calldata)
}

// Cancel terminates an order.
func (f *Flow) Cancel(ctx context.Context, orderID *big.Int) (*types.Receipt, error) {
	calldata, err := f.net.PackCancel(orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack cancel calldata")
	}
	return f.run(ctx, "cancel", f.net.ContractAddress, calldata)
}

// ExecuteMany claims a batch-execution pool snapshot.
func (f *Flow) ExecuteMany(ctx context.Context, poolBlockNumber *big.Int, orderIDs []*big.Int) (*types.Receipt, error) {
	calldata, err := f.net.PackExecuteMany(poolBlockNumber, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack executeMany calldata")
	}
	return f.run(ctx, "execute_many", f.net.ContractAddress, calldata)
}

// Approve grants the payments contract an unlimited allowance on the token.
func (f *Flow) Approve(ctx context.Context, token common.Address) (*types.Receipt, error) {
	erc20, err := gobind.NewERC20(token, f.net.EthClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token caller")
	}

	calldata, err := erc20.PackApprove(f.net.ContractAddress, math.MaxBig256)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack approve calldata")
	}
	return f.run(ctx, "approve", token, calldata)
}

func (f *Flow) ensureAllowance(ctx context.Context, token common.Address, amount *big.Int) error {
	erc20, err := gobind.NewERC20(token, f.net.EthClient)
	if err != nil {
		return errors.Wrap(err, "failed to create token caller")
	}

	allowance, err := erc20.Allowance(&bind.CallOpts{Context: ctx}, f.wallet.Address(), f.net.ContractAddress)
	if err != nil {
		return errors.Wrap(err, "failed to get allowance")
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	if _, err = f.Approve(ctx, token); err != nil {
		return errors.Wrap(err, "failed to approve spending")
	}
	return nil
}

// run takes one action through build, submit and confirmation. Failures leave
// no local state behind; order views change only through chain events.
func (f *Flow) run(ctx context.Context, action string, to common.Address, calldata []byte) (*types.Receipt, error) {
	log := f.log.WithField("action", action)

	tx, err := f.buildTx(ctx, to, calldata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build transaction")
	}

	hash, err := f.wallet.SendTransaction(ctx, tx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send transaction")
	}
	log = log.WithField("tx", hash.Hex())
	if u := f.net.Links.TxURL(hash); u != "" {
		log = log.WithField("explorer", u)
	}
	log.Info("transaction submitted")

	receipt, err := f.WaitConfirmed(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to await confirmation", logan.F{"tx": hash.Hex()})
	}
	log.WithField("block", receipt.BlockNumber.Uint64()).Info("transaction confirmed")
	return receipt, nil
}

func (f *Flow) buildTx(ctx context.Context, to common.Address, calldata []byte) (*types.Transaction, error) {
	from := f.wallet.Address()

	nonce, err := f.net.EthClient.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pending nonce")
	}
	gasPrice, err := f.net.EthClient.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}
	gas, err := f.net.EthClient.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     calldata,
	}), nil
}

// WaitConfirmed polls for the receipt and returns it once it has aged the
// required number of confirmations. A reverted receipt is an error.
func (f *Flow) WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(f.pollPeriod)
	defer ticker.Stop()

	for {
		receipt, err := f.net.EthClient.TransactionReceipt(ctx, hash)
		switch {
		case err == ethereum.NotFound:
		case err != nil:
			f.log.WithError(err).Debug("failed to get receipt, retrying")
		case receipt.Status != types.ReceiptStatusSuccessful:
			return nil, errors.From(errors.New("transaction reverted"), logan.F{
				"tx":    hash.Hex(),
				"block": receipt.BlockNumber.Uint64(),
			})
		default:
			head, err := f.net.EthClient.BlockNumber(ctx)
			if err != nil {
				f.log.WithError(err).Debug("failed to get chain height, retrying")
				break
			}
			if head >= receipt.BlockNumber.Uint64() &&
				head-receipt.BlockNumber.Uint64()+1 >= f.confirmations {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
