package service

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/history"
	"github.com/web3pay/payer-svc/internal/orders"
	"github.com/web3pay/payer-svc/internal/pool"
	"github.com/web3pay/payer-svc/internal/pricer"
	"github.com/web3pay/payer-svc/internal/txflow"
	"github.com/web3pay/payer-svc/internal/watcher"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/running"
)

const headsPollPeriod = 5 * time.Second

type service struct {
	log   *logan.Entry
	net   config.Network
	owner common.Address

	repo    *orders.Repository
	flow    *txflow.Flow
	monitor *pool.Monitor

	ctx      context.Context
	watchers []*watcher.Watcher
}

func Run(cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	newService(cfg).run(ctx)
}

func newService(cfg config.Config) *service {
	log := cfg.Log()
	net := cfg.Network()
	w := cfg.Wallet()

	repo := orders.NewRepository(log, net, w.Address())
	hist := history.NewClient(cfg.History())
	quotes := pricer.NewClient(cfg.Pricer())

	return &service{
		log:     log,
		net:     net,
		owner:   w.Address(),
		repo:    repo,
		flow:    txflow.New(log, net, w),
		monitor: pool.NewMonitor(log, net, hist, quotes, repo, w.Address()),
	}
}

func (s *service) run(ctx context.Context) {
	s.ctx = ctx
	s.log.WithFields(logan.F{
		"owner":    s.owner.Hex(),
		"chain_id": s.net.ChainID,
	}).Info("starting service")

	heights := watcher.NewHeights(s.net.EthClient, headsPollPeriod, s.log)
	go heights.Run(ctx)
	go s.monitor.Run(ctx)

	// the live watchers start before the bulk load so no event falls into
	// the gap; upserts make the two sources converge
	s.startWatchers(heights)
	defer s.stopWatchers()

	running.UntilSuccess(ctx, s.log, "bulk-load", func(ctx context.Context) (bool, error) {
		if err := s.repo.BulkLoad(ctx); err != nil {
			return false, err
		}
		outcomes, incomes := s.repo.Totals()
		s.log.WithFields(logan.F{
			"outcomes": outcomes,
			"incomes":  incomes,
		}).Info("orders loaded")
		return true, nil
	}, time.Second, 30*time.Second)

	<-ctx.Done()
	s.log.Info("shutting down")
}

func (s *service) startWatchers(heights *watcher.Heights) {
	contractAbi := s.net.ABI()
	ownerTopic := common.BytesToHash(common.LeftPadBytes(s.owner.Bytes(), 32))

	watch := func(name string, topics [][]common.Hash, clb watcher.Callback) {
		s.watchers = append(s.watchers, watcher.New(watcher.Opts{
			Log:       s.log.WithField("watcher", name),
			Client:    s.net.RPCClient,
			ABI:       contractAbi,
			Address:   s.net.ContractAddress,
			Topics:    topics,
			Heads:     heights.Subscribe(),
			Callback:  clb,
			FromBlock: s.net.DeployBlock,
		}))
	}

	subscription := s.net.EventTopic("Subscription")
	cancellation := s.net.EventTopic("Cancellation")
	execution := s.net.EventTopic("Execution")
	executionPool := s.net.EventTopic("ExecutionPool")

	watch("subscription-out", [][]common.Hash{{subscription}, {ownerTopic}}, s.onSubscriptionOut)
	watch("subscription-in", [][]common.Hash{{subscription}, nil, {ownerTopic}}, s.onSubscriptionIn)
	watch("execution-out", [][]common.Hash{{execution}, {ownerTopic}}, s.onExecutionOut)
	watch("execution-in", [][]common.Hash{{execution}, nil, {ownerTopic}}, s.onExecutionIn)
	// cancellations are filtered in the handler: one order may touch the
	// owner as spender or receiver
	watch("cancellation", [][]common.Hash{{cancellation}}, s.onCancellation)
	watch("execution-pool", [][]common.Hash{{executionPool}}, s.onExecutionPool)
}

func (s *service) stopWatchers() {
	for _, w := range s.watchers {
		w.Stop()
	}
}
