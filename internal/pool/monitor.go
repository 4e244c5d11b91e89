// Package pool tracks the batch-execution processing pool: its fill level,
// the rewards it has accumulated per token, and what claiming it would cost.
package pool

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/data"
	"github.com/web3pay/payer-svc/internal/history"
	"github.com/web3pay/payer-svc/internal/pricer"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
	"gitlab.com/distributed_lab/running"
)

const (
	refreshPeriod  = time.Minute
	minRetryPeriod = time.Second
	maxRetryPeriod = refreshPeriod
)

// TokenInfoProvider resolves token metadata for reward rendering.
type TokenInfoProvider interface {
	TokenInfo(ctx context.Context, token common.Address) *data.TokenInfo
}

// RewardLine is one token's accumulated pool reward, formatted for display.
type RewardLine struct {
	Token common.Address
	Text  string
}

// Snapshot is one observation of the pool. Gas figures are zero when the
// estimate or the fiat quote was unavailable; the rest of the snapshot stays
// valid.
type Snapshot struct {
	State       data.ProcessingState
	FillPercent int
	Rewards     []RewardLine
	GasNative   decimal.Decimal
	GasUSD      decimal.Decimal
	UpdatedAt   time.Time
}

type Monitor struct {
	log      *logan.Entry
	net      config.Network
	history  *history.Client
	pricer   *pricer.Client
	tokens   TokenInfoProvider
	executor common.Address

	refresh chan struct{}

	mu       sync.Mutex
	snapshot Snapshot
}

func NewMonitor(log *logan.Entry, net config.Network, h *history.Client, p *pricer.Client, tokens TokenInfoProvider, executor common.Address) *Monitor {
	return &Monitor{
		log:      log,
		net:      net,
		history:  h,
		pricer:   p,
		tokens:   tokens,
		executor: executor,
		refresh:  make(chan struct{}, 1),
	}
}

// Run refreshes the snapshot once a minute until the context is cancelled,
// backing off on failures. Event-driven refreshes run in between.
func (m *Monitor) Run(ctx context.Context) {
	go m.listenRefresh(ctx)
	running.WithBackOff(ctx, m.log, "pool-monitor", m.refreshOnce,
		refreshPeriod, minRetryPeriod, maxRetryPeriod)
}

// RefreshNow schedules an out-of-band refresh, collapsing bursts into one. A
// pool event arriving between ticks should show up without waiting a minute.
func (m *Monitor) RefreshNow() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest observation.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *Monitor) listenRefresh(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.refresh:
		}
		if err := m.refreshOnce(ctx); err != nil {
			m.log.WithError(err).Warn("event-driven pool refresh failed")
		}
	}
}

func (m *Monitor) refreshOnce(ctx context.Context) error {
	state, err := m.history.Processing(m.net.ChainID)
	if err != nil {
		return errors.Wrap(err, "failed to get processing state")
	}

	snapshot := Snapshot{
		State:       state,
		FillPercent: FillPercent(len(state.Orders), state.Limit),
		Rewards:     m.rewards(ctx, state),
		UpdatedAt:   time.Now(),
	}

	// gas figures degrade independently of the pool state
	if len(state.Orders) > 0 {
		native, usd, err := m.estimateClaim(ctx, state)
		if err != nil {
			m.log.WithError(err).Warn("failed to estimate claim cost")
		} else {
			snapshot.GasNative = native
			snapshot.GasUSD = usd
		}
	}

	m.mu.Lock()
	m.snapshot = snapshot
	m.mu.Unlock()

	m.log.WithFields(logan.F{
		"orders":       len(state.Orders),
		"fill_percent": snapshot.FillPercent,
		"gas_usd":      snapshot.GasUSD.String(),
	}).Info("processing pool refreshed")
	return nil
}

func (m *Monitor) rewards(ctx context.Context, state data.ProcessingState) []RewardLine {
	lines := make([]RewardLine, 0, len(state.TotalRewards))
	for contract, total := range state.TotalRewards {
		token := common.HexToAddress(contract)
		info := m.tokens.TokenInfo(ctx, token)
		lines = append(lines, RewardLine{
			Token: token,
			Text:  FormatReward(state.ExpectedRewards[contract], total, info),
		})
	}
	return lines
}

func (m *Monitor) estimateClaim(ctx context.Context, state data.ProcessingState) (native, usd decimal.Decimal, err error) {
	calldata, err := m.net.PackExecuteMany(state.PoolBlockNumber, state.Orders)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "failed to pack executeMany calldata")
	}

	gasPrice, err := m.net.EthClient.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "failed to get gas price")
	}
	gas, err := m.net.EthClient.EstimateGas(ctx, ethereum.CallMsg{
		From:     m.executor,
		To:       &m.net.ContractAddress,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "failed to estimate gas")
	}

	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	native = decimal.NewFromBigInt(fee, -18)

	quote, err := m.pricer.NativeUSD(m.net.CoingeckoID)
	if err != nil {
		// keep the native figure, the fiat one degrades alone
		m.log.WithError(err).Warn("failed to get fiat quote")
		return native, decimal.Zero, nil
	}
	return native, native.Mul(quote), nil
}

// FillPercent reports pool occupancy in whole percents, capped at 100. A
// non-positive limit counts as an unbounded pool.
func FillPercent(orders, limit int) int {
	if limit <= 0 {
		return 0
	}
	p := orders * 100 / limit
	if p > 100 {
		return 100
	}
	return p
}

// FormatReward renders a per-token reward amount. When the expected reward
// diverges from the accumulated total, both are shown as a range.
func FormatReward(expected, total *big.Int, info *data.TokenInfo) string {
	totalStr := FormatUnits(total, info.Decimals)
	if expected != nil && expected.Cmp(bigOrZero(total)) != 0 {
		return FormatUnits(expected, info.Decimals) + ".." + totalStr + " " + info.Denom
	}
	return totalStr + " " + info.Denom
}

// FormatUnits scales a raw token amount by the token's decimals.
func FormatUnits(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(bigOrZero(amount), -int32(decimals)).String()
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
