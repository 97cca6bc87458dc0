package usecase

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

func (u *Usecase) GetExpenditures(ctx context.Context) ([]entity.Expenditure, error) {
	expenditures, err := u.cache.GetAllExpenditures(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetAllExpenditures")
	}
	return expenditures, nil
}

func (u *Usecase) GetTotalNumExpenditures(ctx context.Context) (uint64, error) {
	total, err := u.cache.GetTotalNumExpenditures(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "error during GetTotalNumExpenditures")
	}
	return total, nil
}

func (u *Usecase) GetTotalExpendedETH(ctx context.Context) (*big.Int, error) {
	total, err := u.cache.GetTotalExpendedETH(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetTotalExpendedETH")
	}
	return total, nil
}

func (u *Usecase) GetTotalExpendedUSD(ctx context.Context) (int64, error) {
	total, err := u.cache.GetTotalExpendedUSD(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "error during GetTotalExpendedUSD")
	}
	return total, nil
}

func (u *Usecase) GetTotalPlatesDeployed(ctx context.Context) (uint64, error) {
	total, err := u.cache.GetTotalPlatesDeployed(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "error during GetTotalPlatesDeployed")
	}
	return total, nil
}

func (u *Usecase) GetExpendedDonations(ctx context.Context) ([]entity.ExpendedDonation, error) {
	expendedDonations, err := u.cache.GetAllExpendedDonations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetAllExpendedDonations")
	}
	return expendedDonations, nil
}

func (u *Usecase) GetPendingExpendedDonations(ctx context.Context) ([]entity.PendingExpendedDonation, error) {
	items, err := u.cache.GetAllPendingExpendedDonations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetAllPendingExpendedDonations")
	}
	return items, nil
}
