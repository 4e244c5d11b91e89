package data

import "math/big"

// FeeSchedule is the service commission schedule of one token.
type FeeSchedule struct {
	Min     *big.Int
	Max     *big.Int
	Percent *big.Int
	Div     *big.Int
}

// TokenInfo is the cached per-token metadata attached to orders. The cache
// entry is shared by reference and lives for the wallet/network session.
type TokenInfo struct {
	Name          string
	Denom         string
	Decimals      uint8
	Logo          string
	ProcessingFee *big.Int
	ServiceFee    FeeSchedule
}
