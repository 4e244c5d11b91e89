package service

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/web3pay/payer-svc/internal/watcher"
	"gitlab.com/distributed_lab/logan/v3"
)

func (s *service) onSubscriptionOut(ev watcher.Event) {
	id, ok := s.orderID(ev)
	if !ok {
		return
	}
	s.repo.IncTotalOutcomes()
	if err := s.repo.AddOutcome(s.ctx, id, time.Now()); err != nil {
		s.logEventErr(ev, id, err)
	}
}

func (s *service) onSubscriptionIn(ev watcher.Event) {
	id, ok := s.orderID(ev)
	if !ok {
		return
	}
	s.repo.IncTotalIncomes()
	if err := s.repo.AddIncome(s.ctx, id, time.Now()); err != nil {
		s.logEventErr(ev, id, err)
	}
}

// executions advance nextTime on chain, so the order is reloaded in place
func (s *service) onExecutionOut(ev watcher.Event) {
	id, ok := s.orderID(ev)
	if !ok {
		return
	}
	if err := s.repo.AddOutcome(s.ctx, id, time.Now()); err != nil {
		s.logEventErr(ev, id, err)
	}
}

func (s *service) onExecutionIn(ev watcher.Event) {
	id, ok := s.orderID(ev)
	if !ok {
		return
	}
	if err := s.repo.AddIncome(s.ctx, id, time.Now()); err != nil {
		s.logEventErr(ev, id, err)
	}
}

func (s *service) onCancellation(ev watcher.Event) {
	id, ok := s.orderID(ev)
	if !ok {
		return
	}

	if spender, ok := ev.Topics["spender"].(common.Address); ok && spender == s.owner {
		s.repo.RemoveOutcome(id)
	}
	if receiver, ok := ev.Topics["receiver"].(common.Address); ok && receiver == s.owner {
		s.repo.RemoveIncome(id)
	}
}

func (s *service) onExecutionPool(watcher.Event) {
	s.monitor.RefreshNow()
}

func (s *service) orderID(ev watcher.Event) (*big.Int, bool) {
	id, ok := ev.Data["id"].(*big.Int)
	if !ok {
		s.log.WithFields(logan.F{
			"event": ev.Name,
			"tx":    ev.TxHash.Hex(),
		}).Warn("event carries no order id")
		return nil, false
	}
	return id, true
}

func (s *service) logEventErr(ev watcher.Event, id *big.Int, err error) {
	s.log.WithError(err).WithFields(logan.F{
		"event":    ev.Name,
		"order_id": id.String(),
		"tx":       ev.TxHash.Hex(),
	}).Error("failed to apply chain event")
}
