package entity

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Expenditure mirrors one on-chain expenditure record. Immutable once
// created; allocation of its value across donations produces 1..N
// ExpendedDonation records.
type Expenditure struct {
	ExpenditureNumber        uint64   `json:"expenditureNumber"`
	ValueExpendedETH         *big.Int `json:"valueExpendedETH"`
	ValueExpendedUSD         int64    `json:"valueExpendedUSD"`
	VideoHash                string   `json:"videoHash"`
	ReceiptHash              string   `json:"receiptHash"`
	Timestamp                int64    `json:"timestamp"`
	NumExpendedDonations     uint64   `json:"numExpendedDonations"`
	ValueExpendedByDonations *big.Int `json:"valueExpendedByDonations"`
	PlatesDeployed           uint64   `json:"platesDeployed"`
}

// ExpendedDonation records one donation's contribution to one expenditure.
type ExpendedDonation struct {
	ExpendedDonationNumber uint64         `json:"expendedDonationNumber"`
	Donator                common.Address `json:"donator"`
	ValueExpendedETH       *big.Int       `json:"valueExpendedETH"`
	ValueExpendedUSD       int64          `json:"valueExpendedUSD"`
	ExpenditureNumber      uint64         `json:"expenditureNumber"`
	DonationNumber         uint64         `json:"donationNumber"`
	PlatesDeployed         uint64         `json:"platesDeployed"`
}

// PendingExpendedDonation is the not-yet-submitted intention to create one
// ExpendedDonation on-chain. Queue items are consumed strictly in creation
// order, one at a time.
type PendingExpendedDonation struct {
	Donator           common.Address `json:"donator"`
	ValueExpendedETH  *big.Int       `json:"valueExpendedETH"`
	ValueExpendedUSD  int64          `json:"valueExpendedUSD"`
	ExpenditureNumber uint64         `json:"expenditureNumber"`
	DonationNumber    uint64         `json:"donationNumber"`
	PlatesDeployed    uint64         `json:"platesDeployed"`
}

// Is reports whether the pending item targets the given donation identity.
func (p PendingExpendedDonation) Is(donator common.Address, donationNumber uint64) bool {
	return p.Donator == donator && p.DonationNumber == donationNumber
}

// PendingRefund is the not-yet-submitted intention to refund one donation's
// remainder.
type PendingRefund struct {
	Address          common.Address `json:"address"`
	DonationNumber   uint64         `json:"donationNumber"`
	ValueETHToRefund *big.Int       `json:"valueETHToRefund"`
}

// Is reports whether the pending refund targets the given donation identity.
func (p PendingRefund) Is(address common.Address, donationNumber uint64) bool {
	return p.Address == address && p.DonationNumber == donationNumber
}
