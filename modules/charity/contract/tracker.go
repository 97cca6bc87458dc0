package contract

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// ParseDonationTracker decodes the contract's donationTracker mapping value,
// a string of the form "<addressDonationNum>-<hex address without 0x>".
func ParseDonationTracker(overallDonationNum uint64, raw string) (entity.DonationTrackerItem, error) {
	if raw == "" {
		return entity.DonationTrackerItem{}, errors.Wrapf(errs.NotFound, "no tracker item at index %d", overallDonationNum)
	}

	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return entity.DonationTrackerItem{}, errors.Wrapf(errs.InvalidArgument, "malformed tracker value %q", raw)
	}

	addressDonationNum, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return entity.DonationTrackerItem{}, errors.Wrapf(errs.InvalidArgument, "malformed tracker donation number %q", parts[0])
	}
	if !common.IsHexAddress(parts[1]) {
		return entity.DonationTrackerItem{}, errors.Wrapf(errs.InvalidArgument, "malformed tracker address %q", parts[1])
	}

	return entity.DonationTrackerItem{
		OverallDonationNum: overallDonationNum,
		AddressDonationNum: addressDonationNum,
		Address:            common.HexToAddress(parts[1]),
	}, nil
}
