package coingecko

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/pkg/httpclient"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Client fetches ETH spot prices from the CoinGecko public API.
type Client struct {
	client *httpclient.Client
}

func New(baseURL ...string) (*Client, error) {
	u := defaultBaseURL
	if len(baseURL) > 0 && baseURL[0] != "" {
		u = baseURL[0]
	}
	client, err := httpclient.New(u)
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	return &Client{client: client}, nil
}

type simplePriceResponse struct {
	Ethereum struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"ethereum"`
}

// GetETHPriceUSD returns the current ETH price in USD.
func (c *Client) GetETHPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("ids", "ethereum")
	query.Set("vs_currencies", "usd")

	resp, err := c.client.Get(ctx, "/simple/price", httpclient.RequestOptions{Query: query})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "can't get spot price")
	}
	if resp.StatusCode() != 200 {
		return decimal.Zero, errors.Wrapf(errs.SomethingWentWrong, "coingecko returned status %d", resp.StatusCode())
	}

	var body simplePriceResponse
	if err := resp.UnmarshalBody(&body); err != nil {
		return decimal.Zero, errors.WithStack(err)
	}
	if body.Ethereum.USD.IsZero() {
		return decimal.Zero, errors.Wrap(errs.NotFound, "spot price missing from response")
	}

	return body.Ethereum.USD, nil
}
