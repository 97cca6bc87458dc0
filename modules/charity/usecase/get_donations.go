package usecase

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/standard-charity/indexer/modules/charity/entity"
)

func (u *Usecase) GetDonations(ctx context.Context) ([]entity.Donation, error) {
	donations, err := u.cache.GetAllDonations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetAllDonations")
	}
	return donations, nil
}

// GetDonationsGroupedByDonator buckets all cached donations per donator
// address (hex, checksummed).
func (u *Usecase) GetDonationsGroupedByDonator(ctx context.Context) (map[string][]entity.Donation, error) {
	donations, err := u.cache.GetAllDonations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetAllDonations")
	}
	return lo.GroupBy(donations, func(donation entity.Donation) string {
		return donation.Donator.Hex()
	}), nil
}

func (u *Usecase) GetMaxDonation(ctx context.Context) (entity.SpotlightDonation, error) {
	donation, err := u.cache.GetMaxDonation(ctx)
	if err != nil {
		return entity.SpotlightDonation{}, errors.Wrap(err, "error during GetMaxDonation")
	}
	return donation, nil
}

func (u *Usecase) GetLatestDonation(ctx context.Context) (entity.SpotlightDonation, error) {
	donation, err := u.cache.GetLatestDonation(ctx)
	if err != nil {
		return entity.SpotlightDonation{}, errors.Wrap(err, "error during GetLatestDonation")
	}
	return donation, nil
}

func (u *Usecase) GetTotalNumDonations(ctx context.Context) (uint64, error) {
	total, err := u.cache.GetTotalNumDonations(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "error during GetTotalNumDonations")
	}
	return total, nil
}

func (u *Usecase) GetTotalDonationsETH(ctx context.Context) (*big.Int, error) {
	total, err := u.cache.GetTotalDonationsETH(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during GetTotalDonationsETH")
	}
	return total, nil
}
