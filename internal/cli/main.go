package cli

import (
	"github.com/alecthomas/kingpin"
	"github.com/web3pay/payer-svc/internal/config"
	"github.com/web3pay/payer-svc/internal/service"
	"gitlab.com/distributed_lab/kit/kv"
	"gitlab.com/distributed_lab/logan/v3"
)

func Run(args []string) bool {
	log := logan.New()

	defer func() {
		if rvr := recover(); rvr != nil {
			log.WithRecover(rvr).Error("app panicked")
		}
	}()

	cfg := config.New(kv.MustFromEnv())
	log = cfg.Log()

	app := kingpin.New("payer-svc", "")

	runCmd := app.Command("run", "run command")
	serviceCmd := runCmd.Command("service", "run service")

	subscribeCmd := app.Command("subscribe", "create an order from an invoice link")
	subscribeInvoice := subscribeCmd.Arg("invoice", "encoded invoice payload").Required().String()

	executeCmd := app.Command("execute", "charge a due order immediately")
	executeID := executeCmd.Arg("order-id", "order id").Required().String()

	cancelCmd := app.Command("cancel", "terminate an order")
	cancelID := cancelCmd.Arg("order-id", "order id").Required().String()

	claimCmd := app.Command("claim", "batch-execute the processing pool")

	historyCmd := app.Command("history", "print the wallet's event history")

	cmd, err := app.Parse(args[1:])
	if err != nil {
		log.WithError(err).Error("failed to parse arguments")
		return false
	}

	switch cmd {
	case serviceCmd.FullCommand():
		service.Run(cfg)
	case subscribeCmd.FullCommand():
		err = service.Subscribe(cfg, *subscribeInvoice)
	case executeCmd.FullCommand():
		err = service.Execute(cfg, *executeID)
	case cancelCmd.FullCommand():
		err = service.Cancel(cfg, *cancelID)
	case claimCmd.FullCommand():
		err = service.Claim(cfg)
	case historyCmd.FullCommand():
		err = service.History(cfg)
	default:
		log.Errorf("unknown command %s", cmd)
		return false
	}

	if err != nil {
		log.WithError(err).Error("command failed")
		return false
	}

	return true
}
