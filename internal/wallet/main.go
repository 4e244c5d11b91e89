// Package wallet abstracts transaction signing and submission behind a small
// interface with one concrete variant per supported signer.
package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wallet signs and submits prepared transactions on behalf of one account.
type Wallet interface {
	// Address returns the account the wallet signs for.
	Address() common.Address
	// SendTransaction signs tx and hands it to the network, returning the
	// transaction hash on success.
	SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}
