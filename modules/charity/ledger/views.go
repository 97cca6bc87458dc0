package ledger

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/standard-charity/indexer/common/errs"
	"github.com/standard-charity/indexer/modules/charity/contract"
	"github.com/standard-charity/indexer/modules/charity/entity"
)

// Raw output shapes of the contract's view functions. Field names must line
// up with the ABI output names for unpacking.

type rawDonation struct {
	Donator          common.Address
	Value            *big.Int
	Timestamp        *big.Int
	ValueExpendedETH *big.Int
	ValueExpendedUSD *big.Int
	ValueRefundedETH *big.Int
	DonationNumber   *big.Int
	NumExpenditures  *big.Int
}

type rawExpenditure struct {
	ValueExpendedETH         *big.Int
	ValueExpendedUSD         *big.Int
	VideoHash                string
	ReceiptHash              string
	Timestamp                *big.Int
	NumExpendedDonations     *big.Int
	ValueExpendedByDonations *big.Int
	PlatesDeployed           *big.Int
}

type rawExpendedDonation struct {
	Donator           common.Address
	ValueExpendedETH  *big.Int
	ValueExpendedUSD  *big.Int
	ExpenditureNumber *big.Int
	DonationNumber    *big.Int
	PlatesDeployed    *big.Int
}

type rawSpotlight struct {
	Donator   common.Address
	Value     *big.Int
	Timestamp *big.Int
}

func (c *Client) GetDonation(ctx context.Context, donator common.Address, donationNumber uint64) (entity.Donation, error) {
	var raw rawDonation
	if err := c.call(ctx, &raw, "donations", donator, new(big.Int).SetUint64(donationNumber)); err != nil {
		return entity.Donation{}, errors.Wrap(err, "can't get donation")
	}
	return entity.Donation{
		Donator:          raw.Donator,
		Value:            raw.Value,
		Timestamp:        raw.Timestamp.Int64(),
		ValueExpendedETH: raw.ValueExpendedETH,
		ValueExpendedUSD: raw.ValueExpendedUSD.Int64(),
		ValueRefundedETH: raw.ValueRefundedETH,
		DonationNumber:   raw.DonationNumber.Uint64(),
		NumExpenditures:  raw.NumExpenditures.Uint64(),
	}, nil
}

func (c *Client) GetDonationTracker(ctx context.Context, overallDonationNum uint64) (entity.DonationTrackerItem, error) {
	var raw string
	if err := c.call(ctx, &raw, "donationTracker", new(big.Int).SetUint64(overallDonationNum)); err != nil {
		return entity.DonationTrackerItem{}, errors.Wrap(err, "can't get donation tracker entry")
	}
	item, err := contract.ParseDonationTracker(overallDonationNum, raw)
	if err != nil {
		return entity.DonationTrackerItem{}, errors.Wrap(err, "can't parse donation tracker entry")
	}
	return item, nil
}

func (c *Client) GetExpenditure(ctx context.Context, expenditureNumber uint64) (entity.Expenditure, error) {
	var raw rawExpenditure
	if err := c.call(ctx, &raw, "expenditures", new(big.Int).SetUint64(expenditureNumber)); err != nil {
		return entity.Expenditure{}, errors.Wrap(err, "can't get expenditure")
	}
	return entity.Expenditure{
		ExpenditureNumber:        expenditureNumber,
		ValueExpendedETH:         raw.ValueExpendedETH,
		ValueExpendedUSD:         raw.ValueExpendedUSD.Int64(),
		VideoHash:                raw.VideoHash,
		ReceiptHash:              raw.ReceiptHash,
		Timestamp:                raw.Timestamp.Int64(),
		NumExpendedDonations:     raw.NumExpendedDonations.Uint64(),
		ValueExpendedByDonations: raw.ValueExpendedByDonations,
		PlatesDeployed:           raw.PlatesDeployed.Uint64(),
	}, nil
}

func (c *Client) GetExpendedDonation(ctx context.Context, expendedDonationNumber uint64) (entity.ExpendedDonation, error) {
	var raw rawExpendedDonation
	if err := c.call(ctx, &raw, "expendedDonations", new(big.Int).SetUint64(expendedDonationNumber)); err != nil {
		return entity.ExpendedDonation{}, errors.Wrap(err, "can't get expended donation")
	}
	return entity.ExpendedDonation{
		ExpendedDonationNumber: expendedDonationNumber,
		Donator:                raw.Donator,
		ValueExpendedETH:       raw.ValueExpendedETH,
		ValueExpendedUSD:       raw.ValueExpendedUSD.Int64(),
		ExpenditureNumber:      raw.ExpenditureNumber.Uint64(),
		DonationNumber:         raw.DonationNumber.Uint64(),
		PlatesDeployed:         raw.PlatesDeployed.Uint64(),
	}, nil
}

func (c *Client) getUint256(ctx context.Context, method string) (*big.Int, error) {
	var out *big.Int
	if err := c.call(ctx, &out, method); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.Wrapf(errs.NotFound, "nil result from %q", method)
	}
	return out, nil
}

func (c *Client) GetTotalNumDonations(ctx context.Context) (uint64, error) {
	value, err := c.getUint256(ctx, "getTotalNumDonations")
	if err != nil {
		return 0, errors.Wrap(err, "can't get total donation count")
	}
	return value.Uint64(), nil
}

func (c *Client) GetTotalNumExpenditures(ctx context.Context) (uint64, error) {
	value, err := c.getUint256(ctx, "getTotalNumExpenditures")
	if err != nil {
		return 0, errors.Wrap(err, "can't get total expenditure count")
	}
	return value.Uint64(), nil
}

func (c *Client) GetTotalNumExpendedDonations(ctx context.Context) (uint64, error) {
	value, err := c.getUint256(ctx, "getTotalNumExpendedDonations")
	if err != nil {
		return 0, errors.Wrap(err, "can't get total expended donation count")
	}
	return value.Uint64(), nil
}

func (c *Client) GetContractBalance(ctx context.Context) (*big.Int, error) {
	value, err := c.getUint256(ctx, "getContractBalance")
	if err != nil {
		return nil, errors.Wrap(err, "can't get contract balance")
	}
	return value, nil
}

func (c *Client) GetMaxDonation(ctx context.Context) (entity.SpotlightDonation, error) {
	var raw rawSpotlight
	if err := c.call(ctx, &raw, "maxDonation"); err != nil {
		return entity.SpotlightDonation{}, errors.Wrap(err, "can't get max donation")
	}
	return entity.SpotlightDonation{
		Donator:   raw.Donator,
		Value:     raw.Value,
		Timestamp: raw.Timestamp.Int64(),
	}, nil
}

func (c *Client) GetLatestDonation(ctx context.Context) (entity.SpotlightDonation, error) {
	var raw rawSpotlight
	if err := c.call(ctx, &raw, "latestDonation"); err != nil {
		return entity.SpotlightDonation{}, errors.Wrap(err, "can't get latest donation")
	}
	return entity.SpotlightDonation{
		Donator:   raw.Donator,
		Value:     raw.Value,
		Timestamp: raw.Timestamp.Int64(),
	}, nil
}

func (c *Client) GetNextDonationToExpend(ctx context.Context) (uint64, error) {
	value, err := c.getUint256(ctx, "nextDonationToExpend")
	if err != nil {
		return 0, errors.Wrap(err, "can't get next donation to expend")
	}
	return value.Uint64(), nil
}

func (c *Client) GetTotalDonationsETH(ctx context.Context) (*big.Int, error) {
	value, err := c.getUint256(ctx, "totalDonationsETH")
	if err != nil {
		return nil, errors.Wrap(err, "can't get total donated wei")
	}
	return value, nil
}

func (c *Client) GetTotalExpendedETH(ctx context.Context) (*big.Int, error) {
	value, err := c.getUint256(ctx, "totalExpendedETH")
	if err != nil {
		return nil, errors.Wrap(err, "can't get total expended wei")
	}
	return value, nil
}

func (c *Client) GetTotalExpendedUSD(ctx context.Context) (int64, error) {
	value, err := c.getUint256(ctx, "totalExpendedUSD")
	if err != nil {
		return 0, errors.Wrap(err, "can't get total expended cents")
	}
	return value.Int64(), nil
}

func (c *Client) GetTotalPlatesDeployed(ctx context.Context) (uint64, error) {
	value, err := c.getUint256(ctx, "totalPlatesDeployed")
	if err != nil {
		return 0, errors.Wrap(err, "can't get total plates deployed")
	}
	return value.Uint64(), nil
}

func (c *Client) CreateExpenditure(ctx context.Context, valueWei *big.Int, valueUSD int64, videoHash, receiptHash string, platesDeployed uint64) (common.Hash, error) {
	txHash, err := c.submit(ctx, valueWei, "createExpenditure",
		big.NewInt(valueUSD),
		videoHash,
		receiptHash,
		new(big.Int).SetUint64(platesDeployed),
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't create expenditure")
	}
	return txHash, nil
}

func (c *Client) CreateExpendedDonation(ctx context.Context, item entity.PendingExpendedDonation) (common.Hash, error) {
	txHash, err := c.submit(ctx, nil, "createExpendedDonation",
		item.Donator,
		item.ValueExpendedETH,
		big.NewInt(item.ValueExpendedUSD),
		new(big.Int).SetUint64(item.ExpenditureNumber),
		new(big.Int).SetUint64(item.DonationNumber),
		new(big.Int).SetUint64(item.PlatesDeployed),
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't create expended donation")
	}
	return txHash, nil
}

func (c *Client) SetNextDonationToExpend(ctx context.Context, overallDonationNum uint64) (common.Hash, error) {
	txHash, err := c.submit(ctx, nil, "setNextDonationToExpend", new(big.Int).SetUint64(overallDonationNum))
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't set next donation to expend")
	}
	return txHash, nil
}

func (c *Client) RefundDonation(ctx context.Context, refund entity.PendingRefund) (common.Hash, error) {
	txHash, err := c.submit(ctx, nil, "refundDonation",
		refund.Address,
		new(big.Int).SetUint64(refund.DonationNumber),
		refund.ValueETHToRefund,
	)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "can't refund donation")
	}
	return txHash, nil
}
