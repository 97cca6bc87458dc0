package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Donation mirrors one on-chain donation record. Identity is
// (Donator, DonationNumber), where DonationNumber is the donator's own
// donation sequence, not the global one.
type Donation struct {
	Donator          common.Address `json:"donator"`
	Value            *big.Int       `json:"value"`
	Timestamp        int64          `json:"timestamp"`
	ValueExpendedETH *big.Int       `json:"valueExpendedETH"`
	ValueExpendedUSD int64          `json:"valueExpendedUSD"`
	ValueRefundedETH *big.Int       `json:"valueRefundedETH"`
	DonationNumber   uint64         `json:"donationNumber"`
	NumExpenditures  uint64         `json:"numExpenditures"`
}

// Available returns the donation's unexpended, unrefunded remainder in wei.
func (d Donation) Available() *big.Int {
	available := new(big.Int).Set(d.Value)
	available.Sub(available, d.ValueExpendedETH)
	available.Sub(available, d.ValueRefundedETH)
	return available
}

// Is reports whether the donation matches the given identity.
func (d Donation) Is(donator common.Address, donationNumber uint64) bool {
	return d.Donator == donator && d.DonationNumber == donationNumber
}

// SpotlightDonation is the reduced record kept for the max and latest
// donation scalars.
type SpotlightDonation struct {
	Donator   common.Address `json:"donator"`
	Value     *big.Int       `json:"value"`
	Timestamp int64          `json:"timestamp"`
}

// DonationTrackerItem maps the global, gap-free donation index to a
// donation's (address, per-address number) identity. Immutable once created.
type DonationTrackerItem struct {
	OverallDonationNum uint64         `json:"overallDonationNum"`
	AddressDonationNum uint64         `json:"addressDonationNum"`
	Address            common.Address `json:"address"`
}
