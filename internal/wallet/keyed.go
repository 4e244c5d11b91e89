package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

// Keyed signs locally with a raw ECDSA key and broadcasts through the shared
// eth client.
type Keyed struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	backend *ethclient.Client
}

func NewKeyed(privateKeyHex string, chainID *big.Int, backend *ethclient.Client) (*Keyed, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	return &Keyed{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		backend: backend,
	}, nil
}

func (w *Keyed) Address() common.Address {
	return w.address
}

func (w *Keyed) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}

	if err = w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to broadcast transaction")
	}

	return signed.Hash(), nil
}
