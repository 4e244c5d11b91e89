package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Node delegates signing to an account managed by the connected node via
// eth_sendTransaction.
type Node struct {
	address common.Address
	rpc     *rpc.Client
}

func NewNode(address common.Address, client *rpc.Client) *Node {
	return &Node{address: address, rpc: client}
}

func (w *Node) Address() common.Address {
	return w.address
}

type sendTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Gas      hexutil.Uint64  `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Nonce    hexutil.Uint64  `json:"nonce"`
	Data     hexutil.Bytes   `json:"data"`
}

func (w *Node) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	args := sendTxArgs{
		From:     w.address,
		To:       tx.To(),
		Gas:      hexutil.Uint64(tx.Gas()),
		GasPrice: (*hexutil.Big)(tx.GasPrice()),
		Value:    (*hexutil.Big)(tx.Value()),
		Nonce:    hexutil.Uint64(tx.Nonce()),
		Data:     tx.Data(),
	}

	var hash common.Hash
	if err := w.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to send transaction via node account")
	}

	return hash, nil
}
