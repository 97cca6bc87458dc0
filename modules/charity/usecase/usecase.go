package usecase

import (
	"context"

	"github.com/standard-charity/indexer/modules/charity/datagateway"
	"github.com/standard-charity/indexer/pkg/coingecko"
)

// RefundSweepTrigger kicks off one refund sweep run. Implemented by the
// reconciliation engine's sweeper.
type RefundSweepTrigger interface {
	Sweep(ctx context.Context) error
}

type Usecase struct {
	cache     datagateway.CacheStorage
	ledger    datagateway.LedgerDataGateway
	sweeper   RefundSweepTrigger
	priceFeed *coingecko.Client
}

func New(cache datagateway.CacheStorage, ledger datagateway.LedgerDataGateway, sweeper RefundSweepTrigger, priceFeed *coingecko.Client) *Usecase {
	return &Usecase{
		cache:     cache,
		ledger:    ledger,
		sweeper:   sweeper,
		priceFeed: priceFeed,
	}
}
