package contract

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/standard-charity/indexer/common/errs"
)

// Event payloads are carried ABI-encoded in the log data, none of the
// arguments are indexed. The contract numbers donations, expenditures and
// expended donations starting at 1, so a zero sequence in a decoded payload
// means the field was absent or garbage.

type NewDonationEvent struct {
	Donator            common.Address
	DonationNumber     *big.Int
	Value              *big.Int
	OverallDonationNum *big.Int
}

type NewExpenditureEvent struct {
	ExpenditureNumber *big.Int
	ValueExpendedETH  *big.Int
}

type NewExpendedDonationEvent struct {
	Donator                common.Address
	DonationNumber         *big.Int
	ExpenditureNumber      *big.Int
	ExpendedDonationNumber *big.Int
}

type NewRefundEvent struct {
	Donator          common.Address
	DonationNumber   *big.Int
	ValueETHRefunded *big.Int
}

func (b *Binding) DecodeNewDonation(log types.Log) (NewDonationEvent, error) {
	var event NewDonationEvent
	if err := b.abi.UnpackIntoInterface(&event, EventNewDonation, log.Data); err != nil {
		return NewDonationEvent{}, errors.Wrap(err, "can't unpack LogNewDonation")
	}
	if event.Donator == (common.Address{}) || isZero(event.DonationNumber) || isZero(event.OverallDonationNum) {
		return NewDonationEvent{}, errors.Wrap(errs.InvalidArgument, "LogNewDonation payload missing donator or donation number")
	}
	return event, nil
}

func (b *Binding) DecodeNewExpenditure(log types.Log) (NewExpenditureEvent, error) {
	var event NewExpenditureEvent
	if err := b.abi.UnpackIntoInterface(&event, EventNewExpenditure, log.Data); err != nil {
		return NewExpenditureEvent{}, errors.Wrap(err, "can't unpack LogNewExpenditure")
	}
	if isZero(event.ExpenditureNumber) {
		return NewExpenditureEvent{}, errors.Wrap(errs.InvalidArgument, "LogNewExpenditure payload missing expenditure number")
	}
	return event, nil
}

func (b *Binding) DecodeNewExpendedDonation(log types.Log) (NewExpendedDonationEvent, error) {
	var event NewExpendedDonationEvent
	if err := b.abi.UnpackIntoInterface(&event, EventNewExpendedDonation, log.Data); err != nil {
		return NewExpendedDonationEvent{}, errors.Wrap(err, "can't unpack LogNewExpendedDonation")
	}
	if event.Donator == (common.Address{}) || isZero(event.DonationNumber) || isZero(event.ExpendedDonationNumber) {
		return NewExpendedDonationEvent{}, errors.Wrap(errs.InvalidArgument, "LogNewExpendedDonation payload missing donation identity")
	}
	return event, nil
}

func (b *Binding) DecodeNewRefund(log types.Log) (NewRefundEvent, error) {
	var event NewRefundEvent
	if err := b.abi.UnpackIntoInterface(&event, EventNewRefund, log.Data); err != nil {
		return NewRefundEvent{}, errors.Wrap(err, "can't unpack LogNewRefund")
	}
	if event.Donator == (common.Address{}) || isZero(event.DonationNumber) {
		return NewRefundEvent{}, errors.Wrap(errs.InvalidArgument, "LogNewRefund payload missing donation identity")
	}
	return event, nil
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
