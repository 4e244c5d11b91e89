// Package pricer quotes the fiat price of a network's native currency
// through a coingecko-compatible API.
package pricer

import (
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/web3pay/payer-svc/internal/config"
	"gitlab.com/distributed_lab/logan/v3"
	"gitlab.com/distributed_lab/logan/v3/errors"
)

type Client struct {
	connector config.Pricer
}

func NewClient(connector config.Pricer) *Client {
	return &Client{connector: connector}
}

// NativeUSD returns the USD quote for the given coingecko asset id.
func (c *Client) NativeUSD(coingeckoID string) (decimal.Decimal, error) {
	u := &url.URL{
		Path:     "/api/v3/simple/price",
		RawQuery: url.Values{"ids": {coingeckoID}, "vs_currencies": {"usd"}}.Encode(),
	}

	var resp map[string]map[string]decimal.Decimal
	if err := c.connector.Get(u, &resp); err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get price quote")
	}

	quote, ok := resp[coingeckoID]["usd"]
	if !ok {
		return decimal.Zero, errors.From(errors.New("quote is missing in response"), logan.F{"id": coingeckoID})
	}

	return quote, nil
}
