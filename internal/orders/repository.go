// Package orders maintains the per-wallet view of subscription orders: the
// "outcomes" set (wallet pays) and the "incomes" set (wallet receives), kept
// in sync by bulk contract reads and live watcher events.
package orders

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/data"
	"github.com/web3pay/payer-svc/internal/data/mem"
	"github.com/web3pay/payer-svc/internal/gobind"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Repository is scoped to one wallet/network session; switching either means
// building a fresh instance, which also resets the token info cache.
type Repository struct {
	log   *logan.Entry
	net   config.Network
	owner common.Address

	outcomes data.Orders
	incomes  data.Orders
	// extra orders referenced only by the history feed
	historical data.Orders

	mu            sync.Mutex
	tokens        map[common.Address]*data.TokenInfo
	totalOutcomes int64
	totalIncomes  int64
}

func NewRepository(log *logan.Entry, net config.Network, owner common.Address) *Repository {
	return &Repository{
		log:        log.WithField("owner", owner.Hex()),
		net:        net,
		owner:      owner,
		outcomes:   mem.NewOrders(),
		incomes:    mem.NewOrders(),
		historical: mem.NewOrders(),
		tokens:     make(map[common.Address]*data.TokenInfo),
	}
}

// Totals returns the contract-reported list lengths; they may exceed the
// loaded member counts while the bulk load is in progress.
func (r *Repository) Totals() (outcomes, incomes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalOutcomes, r.totalIncomes
}

// Outcomes lists the loaded outgoing orders sorted by ascending nextTime.
func (r *Repository) Outcomes() []data.Order {
	return r.outcomes.List()
}

// Incomes lists the loaded incoming orders sorted by ascending nextTime.
func (r *Repository) Incomes() []data.Order {
	return r.incomes.List()
}

// LoadOrder reads the immutable order fields from the contract and enriches
// them with token metadata. Metadata failures degrade to placeholder values
// rather than failing the load.
func (r *Repository) LoadOrder(ctx context.Context, id *big.Int, referenceTime time.Time) (data.Order, error) {
	o, err := r.net.Orders(r.callOpts(ctx), id)
	if err != nil {
		return data.Order{}, errors.Wrap(err, "failed to get order from contract", logan.F{"order_id": id.String()})
	}

	return data.Order{
		ID:                id,
		Spender:           o.Spender,
		SpenderLinkIndex:  o.SpenderLinkIndex,
		Receiver:          o.Receiver,
		ReceiverLinkIndex: o.ReceiverLinkIndex,
		Token:             o.Token,
		Amount:            o.Amount,
		Period:            o.Period,
		NextTime:          o.NextTime,
		Memo:              o.Memo,
		CreatedAt:         o.CreatedAt,
		CancelledAt:       o.CancelledAt,
		Missed:            data.MissedAt(o.NextTime, referenceTime),
		TokenInfo:         r.tokenInfo(ctx, o.Token),
	}, nil
}

// AddOutcome loads the order and upserts it into the outgoing set. Applying
// the same id twice yields one entry, so live events may race the bulk load.
func (r *Repository) AddOutcome(ctx context.Context, id *big.Int, referenceTime time.Time) error {
	return r.add(ctx, r.outcomes, id, referenceTime)
}

// AddIncome loads the order and upserts it into the incoming set.
func (r *Repository) AddIncome(ctx context.Context, id *big.Int, referenceTime time.Time) error {
	return r.add(ctx, r.incomes, id, referenceTime)
}

func (r *Repository) add(ctx context.Context, set data.Orders, id *big.Int, referenceTime time.Time) error {
	o, err := r.LoadOrder(ctx, id, referenceTime)
	if err != nil {
		return err
	}
	if o.Cancelled() {
		// terminal orders never enter the active view
		set.Remove(id)
		return nil
	}

	set.Upsert(o)
	return nil
}

// RemoveOutcome drops a cancelled order from the outgoing set and decrements
// its total counter.
func (r *Repository) RemoveOutcome(id *big.Int) {
	r.outcomes.Remove(id)
	r.decTotal(&r.totalOutcomes)
}

// RemoveIncome drops a cancelled order from the incoming set and decrements
// its total counter.
func (r *Repository) RemoveIncome(id *big.Int) {
	r.incomes.Remove(id)
	r.decTotal(&r.totalIncomes)
}

// IncTotalOutcomes bumps the outgoing total on a live subscription event.
func (r *Repository) IncTotalOutcomes() {
	r.mu.Lock()
	r.totalOutcomes++
	r.mu.Unlock()
}

// IncTotalIncomes bumps the incoming total on a live subscription event.
func (r *Repository) IncTotalIncomes() {
	r.mu.Lock()
	r.totalIncomes++
	r.mu.Unlock()
}

func (r *Repository) decTotal(total *int64) {
	r.mu.Lock()
	if *total > 0 {
		*total--
	}
	r.mu.Unlock()
}

// BulkLoad fetches the contract-reported totals and then every member order
// id by index, sequentially, to bound concurrent RPC load and keep the token
// info population order deterministic. Orders become visible one by one.
func (r *Repository) BulkLoad(ctx context.Context) error {
	counter, err := r.net.Counter(r.callOpts(ctx), r.owner)
	if err != nil {
		return errors.Wrap(err, "failed to get orders counter")
	}

	r.mu.Lock()
	r.totalOutcomes = counter.Outcomes.Int64()
	r.totalIncomes = counter.Incomes.Int64()
	r.mu.Unlock()

	referenceTime := time.Now()

	for i := int64(0); i < counter.Outcomes.Int64(); i++ {
		id, err := r.net.Outcomes(r.callOpts(ctx), r.owner, big.NewInt(i))
		if err != nil {
			return errors.Wrap(err, "failed to get outcome order id", logan.F{"index": i})
		}
		if err = r.AddOutcome(ctx, id, referenceTime); err != nil {
			return errors.Wrap(err, "failed to load outcome order", logan.F{"order_id": id.String()})
		}
	}

	for i := int64(0); i < counter.Incomes.Int64(); i++ {
		id, err := r.net.Incomes(r.callOpts(ctx), r.owner, big.NewInt(i))
		if err != nil {
			return errors.Wrap(err, "failed to get income order id", logan.F{"index": i})
		}
		if err = r.AddIncome(ctx, id, referenceTime); err != nil {
			return errors.Wrap(err, "failed to load income order", logan.F{"order_id": id.String()})
		}
	}

	return nil
}

// TokenInfo resolves token metadata through the session cache, for callers
// outside the order sets (the pool monitor renders rewards per token).
func (r *Repository) TokenInfo(ctx context.Context, token common.Address) *data.TokenInfo {
	return r.tokenInfo(ctx, token)
}

// tokenInfo resolves metadata for a token address: session cache first, then
// the static token list, then the token contract itself. It never fails;
// unreachable metadata degrades to placeholder values.
func (r *Repository) tokenInfo(ctx context.Context, token common.Address) *data.TokenInfo {
	r.mu.Lock()
	if info, ok := r.tokens[token]; ok {
		r.mu.Unlock()
		return info
	}
	r.mu.Unlock()

	log := r.log.WithField("token", token.Hex())
	log.Debug("loading token info")

	info := &data.TokenInfo{
		Name:          "Custom token: " + token.Hex(),
		Denom:         "$TOKEN",
		Decimals:      0,
		Logo:          "/tokens/unknown.webp",
		ProcessingFee: big.NewInt(0),
		ServiceFee: data.FeeSchedule{
			Min:     big.NewInt(0),
			Max:     big.NewInt(0),
			Percent: big.NewInt(0),
			Div:     big.NewInt(0),
		},
	}

	if static, ok := r.net.FindToken(token); ok {
		info.Name = static.Name
		info.Denom = static.Denom
		info.Decimals = static.Decimals
		info.Logo = static.Logo
	} else if err := r.fillFromContract(ctx, token, info); err != nil {
		log.WithError(err).Warn("failed to load token metadata, using placeholders")
	}

	if err := r.fillCommissions(ctx, token, info); err != nil {
		log.WithError(err).Warn("failed to load commission info, using zero fees")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tokens[token]; ok {
		return existing
	}
	r.tokens[token] = info
	return info
}

func (r *Repository) fillFromContract(ctx context.Context, token common.Address, info *data.TokenInfo) error {
	erc20, err := gobind.NewERC20(token, r.net.EthClient)
	if err != nil {
		return errors.Wrap(err, "failed to create token caller")
	}

	name, err := erc20.Name(r.callOpts(ctx))
	if err != nil {
		return errors.Wrap(err, "failed to get token name")
	}
	denom, err := erc20.Symbol(r.callOpts(ctx))
	if err != nil {
		return errors.Wrap(err, "failed to get token symbol")
	}
	decimals, err := erc20.Decimals(r.callOpts(ctx))
	if err != nil {
		return errors.Wrap(err, "failed to get token decimals")
	}

	info.Name = name
	info.Denom = denom
	info.Decimals = decimals
	return nil
}

func (r *Repository) fillCommissions(ctx context.Context, token common.Address, info *data.TokenInfo) error {
	processingFee, err := r.net.ExecutorCommissions(r.callOpts(ctx), token)
	if err != nil {
		return errors.Wrap(err, "failed to get executor commission")
	}
	schedule, err := r.net.ServiceCommissions(r.callOpts(ctx), token)
	if err != nil {
		return errors.Wrap(err, "failed to get service commission")
	}

	info.ProcessingFee = processingFee
	info.ServiceFee = data.FeeSchedule{
		Min:     schedule.Min,
		Max:     schedule.Max,
		Percent: schedule.Percent,
		Div:     schedule.PercentDiv,
	}
	return nil
}

func (r *Repository) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}
