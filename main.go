package main

import (
	"os"

	"github.com/web3pay/payer-svc/internal/cli"
)

func main() {
	if !cli.Run(os.Args) {
		os.Exit(1)
	}
}
