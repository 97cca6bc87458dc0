package usecase

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

func (u *Usecase) GetContractBalance(ctx context.Context) (*big.Int, error) {
	balance, err := u.cache.GetContractBalance(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetContractBalance")
	}
	return balance, nil
}

func (u *Usecase) GetNextDonationToExpend(ctx context.Context) (uint64, error) {
	pointer, err := u.cache.GetNextDonationToExpend(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "error during GetNextDonationToExpend")
	}
	return pointer, nil
}

func (u *Usecase) GetPendingRefunds(ctx context.Context) ([]entity.PendingRefund, error) {
	refunds, err := u.cache.GetAllPendingRefunds(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetAllPendingRefunds")
	}
	return refunds, nil
}

// GetGasPrice returns the node's live gas price suggestion in wei; this is
// the one read endpoint served from the ledger instead of the cache.
func (u *Usecase) GetGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := u.ledger.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during SuggestGasPrice")
	}
	return gasPrice, nil
}

// GetETHPriceUSD returns the current ETH spot price in USD.
func (u *Usecase) GetETHPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	price, err := u.priceFeed.GetETHPriceUSD(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "error during GetETHPriceUSD")
	}
	return price, nil
}
